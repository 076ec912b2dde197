package analyzer

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// SourcePlugin 标记由插件推送的收益数据。
const SourcePlugin = "plugin"

// PluginStore 汇集收益数据源插件推送的机会记录，供 PluginFetcher 读取。
// Sink 返回的函数可直接注册为插件管理器的 yield-source:sink 资源。
type PluginStore struct {
	mu            sync.RWMutex
	opportunities []Opportunity
	now           func() time.Time
}

// NewPluginStore 构造空的插件数据仓。
func NewPluginStore() *PluginStore {
	return &PluginStore{now: time.Now}
}

// Sink 返回插件推送记录的回调。记录字段: source, protocol, token,
// token_pair, pool_address, apy, tvl, risk_level。无法解析的数值字段按
// 缺失处理，整条记录不会被丢弃。
func (s *PluginStore) Sink() func(context.Context, map[string]any) error {
	return func(_ context.Context, record map[string]any) error {
		opp := Opportunity{
			Source:      stringField(record, "source"),
			Protocol:    stringField(record, "protocol"),
			Token:       stringField(record, "token"),
			TokenPair:   stringField(record, "token_pair"),
			PoolAddress: stringField(record, "pool_address"),
			APY:         numberField(record, "apy"),
			TVL:         numberField(record, "tvl"),
			RiskLevel:   stringField(record, "risk_level"),
			LastUpdated: s.now().UTC(),
		}
		if opp.Source == "" {
			opp.Source = SourcePlugin
		}
		if opp.RiskLevel == "" {
			opp.RiskLevel = "medium"
		}

		s.mu.Lock()
		s.opportunities = append(s.opportunities, opp)
		s.mu.Unlock()
		return nil
	}
}

// Snapshot 返回当前已收集记录的副本。
func (s *PluginStore) Snapshot() []Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Opportunity, len(s.opportunities))
	copy(out, s.opportunities)
	return out
}

// Reset 清空已收集的记录。
func (s *PluginStore) Reset() {
	s.mu.Lock()
	s.opportunities = nil
	s.mu.Unlock()
}

// PluginFetcher 把插件数据仓适配成普通的 Fetcher。
type PluginFetcher struct {
	store *PluginStore
}

// NewPluginFetcher 构造基于插件数据仓的抓取器。
func NewPluginFetcher(store *PluginStore) *PluginFetcher {
	return &PluginFetcher{store: store}
}

// Name 实现 Fetcher。
func (f *PluginFetcher) Name() string { return SourcePlugin }

// Fetch 实现 Fetcher，直接返回仓内快照，不产生网络请求。
func (f *PluginFetcher) Fetch(context.Context) ([]Opportunity, error) {
	return f.store.Snapshot(), nil
}

func stringField(record map[string]any, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

func numberField(record map[string]any, key string) *float64 {
	switch v := record[key].(type) {
	case float64:
		return f64(v)
	case int:
		return f64(float64(v))
	case json.Number:
		if parsed, err := v.Float64(); err == nil {
			return f64(parsed)
		}
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return f64(parsed)
		}
	}
	return nil
}
