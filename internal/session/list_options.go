package session

import (
	"sort"
	"strings"
	"time"
)

// SortOrder defines how results should be ordered when listing sessions.
type SortOrder int

const (
	// SortByStartedDesc orders sessions by StartedAt descending (most recent first).
	SortByStartedDesc SortOrder = iota
	// SortByStartedAsc orders sessions by StartedAt ascending (oldest first).
	SortByStartedAsc
)

// ListOptions controls how sessions are selected when querying the correlator.
type ListOptions struct {
	Limit       int
	Offset      int
	QueryTypes  []string
	Specialists []string
	StartedGTE  int64
	StartedLTE  int64
	Order       SortOrder
	Query       string
}

// applyDefaults sanitizes the options and fills in default values.
func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Order != SortByStartedAsc {
		opts.Order = SortByStartedDesc
	}
	opts.Query = strings.TrimSpace(opts.Query)
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of sessions returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset skips the first n matching sessions before returning results.
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// WithQueryTypes filters sessions by the provided query types.
func WithQueryTypes(types ...string) ListOption {
	return func(opts *ListOptions) {
		opts.QueryTypes = append(opts.QueryTypes[:0], types...)
	}
}

// WithSpecialists filters sessions by the specialist they were routed to.
func WithSpecialists(specialists ...string) ListOption {
	return func(opts *ListOptions) {
		opts.Specialists = append(opts.Specialists[:0], specialists...)
	}
}

// WithStartedSince filters sessions started after the provided instant (inclusive).
func WithStartedSince(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.StartedGTE = 0
			return
		}
		opts.StartedGTE = ts.Unix()
	}
}

// WithStartedUntil filters sessions started before the provided instant (inclusive).
func WithStartedUntil(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.StartedLTE = 0
			return
		}
		opts.StartedLTE = ts.Unix()
	}
}

// WithSortOrder changes the returned order of sessions.
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

// WithQuery filters sessions by fuzzy matching across query text and addresses.
func WithQuery(query string) ListOption {
	return func(opts *ListOptions) {
		opts.Query = query
	}
}

// BuildListOptions applies option functions on top of defaults.
func BuildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

// Select filters, sorts and paginates the provided sessions according to the
// options. The input slice is not mutated.
func Select(sessions []Session, opts ...ListOption) []Session {
	options := BuildListOptions(opts)

	matched := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if !options.matches(s) {
			continue
		}
		matched = append(matched, s)
	}

	sort.Slice(matched, func(i, j int) bool {
		if options.Order == SortByStartedAsc {
			return matched[i].StartedAt.Before(matched[j].StartedAt)
		}
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	if options.Offset >= len(matched) {
		return nil
	}
	matched = matched[options.Offset:]
	if len(matched) > options.Limit {
		matched = matched[:options.Limit]
	}
	return matched
}

func (opts ListOptions) matches(s Session) bool {
	if len(opts.QueryTypes) > 0 && !containsFold(opts.QueryTypes, s.QueryType) {
		return false
	}
	if len(opts.Specialists) > 0 && !containsFold(opts.Specialists, s.Specialist) {
		return false
	}
	started := s.StartedAt.Unix()
	if opts.StartedGTE > 0 && started < opts.StartedGTE {
		return false
	}
	if opts.StartedLTE > 0 && started > opts.StartedLTE {
		return false
	}
	if opts.Query != "" {
		needle := strings.ToLower(opts.Query)
		if !strings.Contains(strings.ToLower(s.Query), needle) &&
			!strings.Contains(strings.ToLower(s.UserAddress), needle) &&
			!strings.Contains(strings.ToLower(s.Specialist), needle) {
			return false
		}
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}
	return false
}
