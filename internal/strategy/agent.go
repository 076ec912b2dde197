package strategy

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

const capabilitiesText = "LuminYield Strategy Agent ready! I can recommend optimal yield strategies and assess risks."

// 命中任一关键词时直接返回静态风险评估。
var riskKeywords = []string{"risk", "safe", "dangerous", "secure", "risky"}

// Agent 是策略代理：提取约束、运行推理器并渲染策略推荐，
// 风险类问题返回固定的风险评估文本。
type Agent struct {
	address  string
	bus      chat.Sender
	reasoner *Reasoner
	logger   *slog.Logger
	now      func() time.Time
}

// Option 定义策略代理的可选配置。
type Option func(*Agent)

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

// New 创建策略代理。
func New(address string, bus chat.Sender, reasoner *Reasoner, opts ...Option) *Agent {
	a := &Agent{
		address:  address,
		bus:      bus,
		reasoner: reasoner,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logger == nil {
		a.logger = logger.Named("strategy")
	}
	return a
}

// Run 订阅代理自身地址并阻塞消费。
func (a *Agent) Run(ctx context.Context, receiver chat.Receiver, workers int) error {
	return receiver.Subscribe(ctx, a.address, workers, a.HandleIncoming)
}

// HandleIncoming 处理一条到达策略代理的消息，确认回执永远最先发出。
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
		metrics.ObserveMessage("strategy", string(item.Type))
		switch item.Type {
		case chat.ItemStartSession:
			a.logger.Info("新的策略会话开始", slog.String("sender", msg.Sender))
			reply := chat.NewTextMessage(a.address, capabilitiesText, map[string]string{
				"capabilities": "strategy_recommendation,risk_assessment",
				"reasoning":    "graph_fallback",
			})
			if err := a.bus.Send(ctx, msg.Sender, reply); err != nil {
				return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "发送能力介绍失败")
			}
		case chat.ItemText:
			if err := a.answer(ctx, msg.Sender, item.Text); err != nil {
				return err
			}
		case chat.ItemEndSession:
			a.logger.Info("策略会话结束", slog.String("sender", msg.Sender))
		}
	}
	return nil
}

func (a *Agent) answer(ctx context.Context, sender, text string) error {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil
	}
	a.logger.Info("收到策略查询", slog.String("sender", sender))

	queryLower := strings.ToLower(query)
	isRisk := false
	for _, keyword := range riskKeywords {
		if strings.Contains(queryLower, keyword) {
			isRisk = true
			break
		}
	}

	var result, method string
	if isRisk {
		result = RiskAssessmentText
		method = "static"
	} else {
		constraints := ExtractConstraints(query)
		a.logger.Info("约束提取完成",
			slog.String("risk", string(constraints.RiskTolerance)),
			slog.Any("tokens", constraints.PreferredTokens),
		)
		chain := a.reasoner.Reason(ctx, constraints)
		result = FormatRecommendation(constraints, chain)
		method = chain.Method
	}

	analysisType := "strategy_recommendation"
	if strings.Contains(queryLower, "risk") {
		analysisType = "risk_assessment"
	}
	reply := chat.NewTextMessage(a.address, result, map[string]string{
		"analysis_type":    analysisType,
		"timestamp":        a.now().Format(time.RFC3339),
		"reasoning_method": method,
	})
	if err := a.bus.Send(ctx, sender, reply); err != nil {
		return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "发送策略结果失败")
	}
	return nil
}
