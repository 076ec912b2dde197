package luminyield

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Yield queries fan out to several protocol APIs server side, so it is more
// generous than a typical REST call would need.
const DefaultHTTPTimeout = 60 * time.Second

// Client wraps the HTTP interactions with the LuminYield gateway API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// QuerySubmission is the payload for submitting a natural language query.
type QuerySubmission struct {
	Query          string `json:"query"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// QueryResult is the routed reply to a submitted query.
type QueryResult struct {
	Reply    string            `json:"reply"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Session mirrors the gateway's active session records.
type Session struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	QueryType   string    `json:"query_type"`
	Specialist  string    `json:"specialist"`
	UserAddress string    `json:"user_address"`
	StartedAt   time.Time `json:"started_at"`
}

// SessionStats aggregates the active sessions by query type and specialist.
type SessionStats struct {
	Total           int            `json:"total"`
	ByQueryType     map[string]int `json:"by_query_type,omitempty"`
	BySpecialist    map[string]int `json:"by_specialist,omitempty"`
	OldestStartedAt int64          `json:"oldest_started_at,omitempty"`
	NewestStartedAt int64          `json:"newest_started_at,omitempty"`
}

// SessionFilter narrows the session listing. Zero values are omitted.
type SessionFilter struct {
	Limit       int
	Offset      int
	QueryTypes  []string
	Specialists []string
	Contains    string
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("luminyield api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the LuminYield gateway. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAccessToken stores the bearer token sent with subsequent calls. Leave it
// unset when the gateway runs without authentication.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SubmitQuery routes a natural language yield question through the agent
// network and returns the specialist's reply.
func (c *Client) SubmitQuery(ctx context.Context, submission QuerySubmission) (QueryResult, error) {
	var result QueryResult
	if err := c.post(ctx, "/api/v1/queries", submission, &result); err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// ListSessions returns the active sessions matching the filter.
func (c *Client) ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	endpoint := "/api/v1/sessions"
	if encoded := filter.encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var sessions []Session
	if err := c.get(ctx, endpoint, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionStats returns aggregate statistics over the active sessions.
func (c *Client) SessionStats(ctx context.Context) (SessionStats, error) {
	var stats SessionStats
	if err := c.get(ctx, "/api/v1/sessions/stats", &stats); err != nil {
		return SessionStats{}, err
	}
	return stats, nil
}

func (f SessionFilter) encode() string {
	values := url.Values{}
	if f.Limit > 0 {
		values.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		values.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(f.QueryTypes) > 0 {
		values.Set("query_type", strings.Join(f.QueryTypes, ","))
	}
	if len(f.Specialists) > 0 {
		values.Set("specialist", strings.Join(f.Specialists, ","))
	}
	if f.Contains != "" {
		values.Set("q", f.Contains)
	}
	return values.Encode()
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parts := strings.SplitN(endpoint, "?", 2)
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parts[0])}
	if len(parts) == 2 {
		rel.RawQuery = parts[1]
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
