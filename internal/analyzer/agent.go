package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"LuminYield/internal/chat"
	xerrors "LuminYield/internal/errors"
	"LuminYield/internal/observability/metrics"
	"LuminYield/pkg/logger"
)

const capabilitiesText = "LuminYield Yield Analyzer ready! I can analyze and compare Solana yield opportunities."

const sourcesChecked = "orca,raydium,kamino,jupiter,marginfi,solend"

// 命中任一关键词时走对比路径而不是综合分析。
var comparisonKeywords = []string{"compare", "vs", "versus", "between"}

// Agent 是收益分析代理：从多个数据源抓取收益机会，
// 归一化排序后渲染成 markdown 回复。
type Agent struct {
	address  string
	bus      chat.Sender
	fetchers []Fetcher
	logger   *slog.Logger
	now      func() time.Time
}

// Option 定义分析代理的可选配置。
type Option func(*Agent)

// WithFetchers 替换默认的数据源集合。
func WithFetchers(fetchers ...Fetcher) Option {
	return func(a *Agent) { a.fetchers = fetchers }
}

// WithExtraFetchers 在默认数据源之外追加数据源，插件提供的源走这里。
func WithExtraFetchers(fetchers ...Fetcher) Option {
	return func(a *Agent) { a.fetchers = append(a.fetchers, fetchers...) }
}

// WithLogger 指定代理使用的日志器。
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock 覆盖时间来源，测试用。
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New 创建分析代理。raydiumEnabled 控制是否抓取 Raydium 全量数据。
func New(address string, bus chat.Sender, raydiumEnabled bool, opts ...Option) *Agent {
	a := &Agent{
		address: address,
		bus:     bus,
		fetchers: []Fetcher{
			NewOrcaFetcher(),
			NewRaydiumFetcher(raydiumEnabled),
			NewKaminoFetcher(),
			NewJupiterFetcher(),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logger == nil {
		a.logger = logger.Named("analyzer")
	}
	return a
}

// Run 订阅代理自身地址并阻塞消费。
func (a *Agent) Run(ctx context.Context, receiver chat.Receiver, workers int) error {
	return receiver.Subscribe(ctx, a.address, workers, a.HandleIncoming)
}

// HandleIncoming 处理一条到达分析代理的消息，确认回执永远最先发出。
func (a *Agent) HandleIncoming(ctx context.Context, msg chat.Message) error {
	if msg.IsAcknowledgement() {
		a.logger.Debug("收到确认回执", slog.String("sender", msg.Sender))
		return nil
	}

	ack := chat.NewAcknowledgement(a.address, msg.ID)
	if err := a.bus.Send(ctx, msg.Sender, ack); err != nil {
		a.logger.Warn("发送确认回执失败", slog.String("sender", msg.Sender), "error", err)
	}

	for _, item := range msg.Content {
		metrics.ObserveMessage("analyzer", string(item.Type))
		switch item.Type {
		case chat.ItemStartSession:
			a.logger.Info("新的分析会话开始", slog.String("sender", msg.Sender))
			reply := chat.NewTextMessage(a.address, capabilitiesText, map[string]string{
				"capabilities": "yield_analysis,yield_comparison",
				"sources":      sourcesChecked,
			})
			if err := a.bus.Send(ctx, msg.Sender, reply); err != nil {
				return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "发送能力介绍失败")
			}
		case chat.ItemText:
			if err := a.answer(ctx, msg.Sender, item.Text); err != nil {
				return err
			}
		case chat.ItemEndSession:
			a.logger.Info("分析会话结束", slog.String("sender", msg.Sender))
		}
	}
	return nil
}

func (a *Agent) answer(ctx context.Context, sender, text string) error {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil
	}
	a.logger.Info("收到分析查询",
		slog.String("sender", sender),
		slog.String("query", preview(query)),
	)

	queryLower := strings.ToLower(query)
	comparison := false
	for _, keyword := range comparisonKeywords {
		if strings.Contains(queryLower, keyword) {
			comparison = true
			break
		}
	}

	var result string
	if comparison {
		result = a.compare(ctx, query)
	} else {
		result = a.analyze(ctx)
	}

	analysisType := "yield_analysis"
	if strings.Contains(queryLower, "compare") {
		analysisType = "yield_comparison"
	}
	reply := chat.NewTextMessage(a.address, result, map[string]string{
		"analysis_type":   analysisType,
		"timestamp":       a.now().Format(time.RFC3339),
		"sources_checked": sourcesChecked,
	})
	if err := a.bus.Send(ctx, sender, reply); err != nil {
		return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "发送分析结果失败")
	}
	return nil
}

// analyze 抓取全部数据源，不足时用演示数据补齐，排序后渲染。
func (a *Agent) analyze(ctx context.Context) string {
	real := a.collect(ctx, nil)
	opportunities := PadWithDemo(real, DemoOpportunities(a.now()))
	Rank(opportunities)
	return FormatAnalysis(opportunities)
}

// compare 抓取池类数据源并始终并入演示数据，按查询内容筛选后渲染。
func (a *Agent) compare(ctx context.Context, query string) string {
	real := a.collect(ctx, func(f Fetcher) bool { return f.Name() != SourceJupiter })
	candidates := append(real, DemoOpportunities(a.now())...)
	return FormatComparison(SelectForComparison(query, candidates))
}

// collect 依次抓取各数据源，单个源失败只记日志，返回其余结果。
func (a *Agent) collect(ctx context.Context, keep func(Fetcher) bool) []Opportunity {
	var all []Opportunity
	for _, fetcher := range a.fetchers {
		if keep != nil && !keep(fetcher) {
			continue
		}
		opportunities, err := fetcher.Fetch(ctx)
		if err != nil {
			a.logger.Warn("数据源抓取失败",
				slog.String("source", fetcher.Name()),
				"error", err,
			)
			continue
		}
		all = append(all, opportunities...)
	}
	return all
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > 100 {
		return string(runes[:100])
	}
	return text
}
