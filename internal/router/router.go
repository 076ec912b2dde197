package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"LuminYield/internal/chat"
	"LuminYield/internal/classify"
	xerrors "LuminYield/internal/errors"
	"LuminYield/internal/observability/alerting"
	"LuminYield/internal/observability/metrics"
	"LuminYield/internal/session"
	"LuminYield/internal/storage/mysql"
	"LuminYield/pkg/logger"
)

// 路由元数据中 routed_by 的固定取值。
const routedBy = "luminyield_router_agent"

// 回复归档时保留的预览长度（按 rune 截断）。
const replyPreviewLimit = 200

const welcomeText = "Welcome to LuminYield! I can help you optimize yields on Solana DeFi. " +
	"Ask me about yields, strategies, or risk assessment!"

const outOfScopeText = `🚫 **Query Out of Scope**

I'm specialized in **Solana DeFi yield optimization** only. I can help with:

✅ **Yield Analysis**: "What's the best yield for SOL?"
✅ **Yield Comparison**: "Compare Orca vs Raydium APYs"
✅ **Strategy Recommendations**: "Best strategy for $1000 USDC"
✅ **Risk Assessment**: "What are the risks of staking SOL?"

Please ask about Solana DeFi yields, and I'll route your query to the appropriate specialist agent!`

// Config 描述路由器自身与两个专家代理的总线地址。
type Config struct {
	Address         string
	AnalyzerAddress string
	StrategyAddress string
}

// Router 是消息分派状态机：确认收件、分类用户查询、转发给专家、
// 把专家的回复转回原始用户。
type Router struct {
	cfg        Config
	bus        chat.Sender
	classifier *classify.Classifier
	correlator *Correlator
	archive    mysql.SessionRepository
	alerts     alerting.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// Option 定义路由器的可选配置。
type Option func(*Router)

// WithArchive 挂接会话归档仓库，归档失败只记日志不影响路由。
func WithArchive(archive mysql.SessionRepository) Option {
	return func(r *Router) { r.archive = archive }
}

// WithAlerts 挂接告警分发器，用于无法回投的专家回复等异常。
func WithAlerts(alerts alerting.Dispatcher) Option {
	return func(r *Router) { r.alerts = alerts }
}

// WithLogger 指定路由器使用的日志器。
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock 覆盖时间来源，测试用。
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New 创建路由器。
func New(cfg Config, bus chat.Sender, classifier *classify.Classifier, correlator *Correlator, opts ...Option) *Router {
	r := &Router{
		cfg:        cfg,
		bus:        bus,
		classifier: classifier,
		correlator: correlator,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = logger.Named("router")
	}
	return r
}

// Run 订阅路由器自身地址并阻塞消费，ctx 取消后返回。
func (r *Router) Run(ctx context.Context, receiver chat.Receiver, workers int) error {
	return receiver.Subscribe(ctx, r.cfg.Address, workers, r.HandleIncoming)
}

// HandleIncoming 处理一条到达路由器地址的消息。
// 确认回执永远最先发出；单条消息的处理失败不会向外传播 panic。
func (r *Router) HandleIncoming(ctx context.Context, msg chat.Message) error {
	if msg.IsAcknowledgement() {
		// 对回执不再回执，否则两个代理会无限互相确认。
		r.logger.Debug("收到确认回执",
			slog.String("sender", msg.Sender),
			slog.String("msg_id", msg.ID),
		)
		return nil
	}

	ack := chat.NewAcknowledgement(r.cfg.Address, msg.ID)
	if err := r.bus.Send(ctx, msg.Sender, ack); err != nil {
		r.logger.Warn("发送确认回执失败", slog.String("sender", msg.Sender), "error", err)
	}

	fromSpecialist := msg.Sender == r.cfg.AnalyzerAddress || msg.Sender == r.cfg.StrategyAddress

	for _, item := range msg.Content {
		metrics.ObserveMessage("router", string(item.Type))
		switch item.Type {
		case chat.ItemStartSession:
			if err := r.announceCapabilities(ctx, msg.Sender); err != nil {
				return err
			}
		case chat.ItemText:
			if fromSpecialist {
				if err := r.forwardReply(ctx, msg.Sender, item.Text); err != nil {
					return err
				}
				continue
			}
			if err := r.routeQuery(ctx, msg.Sender, item.Text); err != nil {
				return err
			}
		case chat.ItemEndSession:
			removed := r.correlator.ForgetAllFor(msg.Sender)
			r.logger.Info("会话结束，清理绑定",
				slog.String("sender", msg.Sender),
				slog.Int("removed_bindings", removed),
			)
		case chat.ItemAcknowledgement:
			r.logger.Debug("混合内容中的确认项", slog.String("sender", msg.Sender))
		}
	}
	return nil
}

func (r *Router) announceCapabilities(ctx context.Context, to string) error {
	r.logger.Info("新会话开始", slog.String("sender", to))
	reply := chat.NewTextMessage(r.cfg.Address, welcomeText, map[string]string{
		"capabilities":      "yield_optimization",
		"supported_queries": "yield_analysis,yield_comparison,strategy_recommendation,risk_assessment",
	})
	if err := r.bus.Send(ctx, to, reply); err != nil {
		return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "发送能力介绍失败")
	}
	return nil
}

// routeQuery 分类用户查询并分派给专家。空白查询直接忽略。
func (r *Router) routeQuery(ctx context.Context, sender, text string) error {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil
	}

	sessionID := uuid.NewString()
	category := r.classifier.Classify(ctx, query)
	r.logger.Info("查询分类完成",
		slog.String("session_id", sessionID),
		slog.String("query_type", string(category)),
		slog.String("sender", sender),
	)

	metadata := map[string]string{
		chat.MetaSessionID: sessionID,
		chat.MetaQueryType: string(category),
		chat.MetaRoutedBy:  routedBy,
		chat.MetaTimestamp: r.now().Format(time.RFC3339),
	}

	if category == classify.CategoryOutOfScope {
		reply := chat.NewTextMessage(r.cfg.Address, outOfScopeText, metadata)
		if err := r.bus.Send(ctx, sender, reply); err != nil {
			return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "发送超范围提示失败")
		}
		return nil
	}

	target := r.targetFor(category)
	if target == "" {
		r.alert(ctx, alerting.Event{
			Code:       xerrors.CodeRouteUnresolved,
			Message:    "专家地址未配置，查询被丢弃",
			Severity:   xerrors.SeverityCritical,
			SessionID:  sessionID,
			Metadata:   map[string]string{"query_type": string(category)},
			OccurredAt: r.now(),
		})
		return xerrors.New(xerrors.CodeRouteUnresolved, "专家地址未配置",
			xerrors.WithMetadata("query_type", string(category)))
	}

	r.correlator.Bind(target, sender)
	sess := session.Session{
		ID:          sessionID,
		Query:       query,
		QueryType:   string(category),
		Specialist:  target,
		UserAddress: sender,
		StartedAt:   r.now(),
	}
	r.correlator.CreateSession(sess)
	r.archiveEvent(ctx, mysql.SessionRecord{
		SessionID:   sessionID,
		Event:       mysql.EventCreated,
		Query:       query,
		QueryType:   string(category),
		Specialist:  target,
		UserAddress: sender,
		CreatedAt:   r.now().Unix(),
	})

	forward := chat.NewTextMessage(r.cfg.Address, query, metadata)
	if err := r.bus.Send(ctx, target, forward); err != nil {
		return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "转发查询到专家失败",
			xerrors.WithMetadata("specialist", target))
	}
	metrics.ObserveRouted(string(category))
	r.logger.Info("查询已转发",
		slog.String("session_id", sessionID),
		slog.String("specialist", target),
	)
	return nil
}

// forwardReply 把专家的回复转回最近一次绑定的用户。
// 空白回复与空白查询一样直接忽略；无绑定时按约定丢弃：
// 记日志并发告警事件，不向总线报错。
func (r *Router) forwardReply(ctx context.Context, specialist, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	user, ok := r.correlator.Resolve(specialist)
	if !ok {
		metrics.ObserveReplyDropped()
		r.logger.Warn("专家回复找不到对应用户，丢弃",
			slog.String("specialist", specialist),
		)
		r.alert(ctx, alerting.Event{
			Code:       xerrors.CodeRouteUnresolved,
			Message:    "专家回复无法回投，已丢弃",
			Severity:   xerrors.SeverityWarning,
			Specialist: specialist,
			OccurredAt: r.now(),
		})
		return nil
	}

	forward := chat.NewTextMessage(r.cfg.Address, text, map[string]string{
		chat.MetaForwardedFrom: specialist,
		chat.MetaTimestamp:     r.now().Format(time.RFC3339),
	})
	if err := r.bus.Send(ctx, user, forward); err != nil {
		return xerrors.Wrap(xerrors.CodeRouteDispatchFailure, err, "回投专家回复失败",
			xerrors.WithMetadata("user", user))
	}
	r.logger.Info("专家回复已回投",
		slog.String("specialist", specialist),
		slog.String("user", user),
	)
	r.archiveEvent(ctx, mysql.SessionRecord{
		Event:        mysql.EventReplied,
		Specialist:   specialist,
		UserAddress:  user,
		ReplyPreview: previewOf(text),
		CreatedAt:    r.now().Unix(),
	})
	return nil
}

func (r *Router) targetFor(category classify.Category) string {
	switch category {
	case classify.CategoryYieldAnalysis, classify.CategoryYieldComparison:
		return r.cfg.AnalyzerAddress
	case classify.CategoryStrategyRecommendation, classify.CategoryRiskAssessment:
		return r.cfg.StrategyAddress
	default:
		return ""
	}
}

func (r *Router) archiveEvent(ctx context.Context, record mysql.SessionRecord) {
	if r.archive == nil {
		return
	}
	if err := r.archive.Save(ctx, record); err != nil {
		r.logger.Warn("会话归档写入失败", "error", err)
	}
}

func (r *Router) alert(ctx context.Context, event alerting.Event) {
	if r.alerts == nil {
		return
	}
	if err := r.alerts.Notify(ctx, event); err != nil {
		r.logger.Warn("告警发送失败", "error", err)
	}
}

func previewOf(text string) string {
	runes := []rune(text)
	if len(runes) <= replyPreviewLimit {
		return text
	}
	return string(runes[:replyPreviewLimit])
}
