package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LuminYield/internal/chat"
	"LuminYield/internal/classify"
	xerrors "LuminYield/internal/errors"
	"LuminYield/internal/observability/alerting"
	"LuminYield/internal/session"
)

const (
	routerAddr   = "agent://router"
	analyzerAddr = "agent://analyzer"
	strategyAddr = "agent://strategy"
	userAddr     = "agent://user-1"
)

type sendCall struct {
	to  string
	msg chat.Message
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sendCall
}

func (f *fakeSender) Send(_ context.Context, to string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{to: to, msg: msg})
	return nil
}

func (f *fakeSender) Close() error { return nil }

func (f *fakeSender) sent() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sendCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeAlerts struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (f *fakeAlerts) Notify(_ context.Context, event alerting.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func newTestRouter(bus chat.Sender, opts ...Option) (*Router, *Correlator) {
	correlator := NewCorrelator()
	cfg := Config{
		Address:         routerAddr,
		AnalyzerAddress: analyzerAddr,
		StrategyAddress: strategyAddr,
	}
	opts = append(opts, WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}))
	return New(cfg, bus, classify.New(nil), correlator, opts...), correlator
}

func TestHandleIncomingAcksFirst(t *testing.T) {
	bus := &fakeSender{}
	r, _ := newTestRouter(bus)

	msg := chat.NewTextMessage(userAddr, "What is the APY for SOL staking?", nil)
	if err := r.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) == 0 {
		t.Fatal("应至少发送一条消息")
	}
	first := calls[0]
	if first.to != userAddr {
		t.Fatalf("确认回执应发给发送者, got %s", first.to)
	}
	if !first.msg.IsAcknowledgement() {
		t.Fatal("第一条发出的消息应是确认回执")
	}
	if first.msg.Content[0].AcknowledgedID != msg.ID {
		t.Fatalf("确认的消息 ID 不匹配: %s", first.msg.Content[0].AcknowledgedID)
	}
}

func TestRouteYieldQueryBindsAndForwards(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)

	msg := chat.NewTextMessage(userAddr, "What is the APY for SOL staking?", nil)
	if err := r.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 2 {
		t.Fatalf("期望 ack + 转发两条消息, got %d", len(calls))
	}
	forward := calls[1]
	if forward.to != analyzerAddr {
		t.Fatalf("收益查询应转发给分析代理, got %s", forward.to)
	}
	if forward.msg.Text() != "What is the APY for SOL staking?" {
		t.Fatalf("转发文本不匹配: %q", forward.msg.Text())
	}

	meta := forward.msg.Metadata()
	if meta[chat.MetaQueryType] != string(classify.CategoryYieldAnalysis) {
		t.Fatalf("query_type 元数据错误: %s", meta[chat.MetaQueryType])
	}
	if meta[chat.MetaRoutedBy] != routedBy {
		t.Fatalf("routed_by 元数据错误: %s", meta[chat.MetaRoutedBy])
	}
	if meta[chat.MetaSessionID] == "" {
		t.Fatal("缺少 session_id 元数据")
	}
	if meta[chat.MetaTimestamp] == "" {
		t.Fatal("缺少 timestamp 元数据")
	}

	if user, ok := correlator.Resolve(analyzerAddr); !ok || user != userAddr {
		t.Fatalf("分析代理应绑定到提问用户, got %q ok=%v", user, ok)
	}
	sessions := correlator.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("应登记一个会话, got %d", len(sessions))
	}
	if sessions[0].ID != meta[chat.MetaSessionID] {
		t.Fatal("会话 ID 应与转发元数据一致")
	}
}

func TestRouteStrategyQuery(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)

	msg := chat.NewTextMessage(userAddr, "What staking strategy should I use for $1000?", nil)
	if err := r.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 2 {
		t.Fatalf("期望 ack + 转发两条消息, got %d", len(calls))
	}
	if calls[1].to != strategyAddr {
		t.Fatalf("策略查询应转发给策略代理, got %s", calls[1].to)
	}
	if _, ok := correlator.Resolve(strategyAddr); !ok {
		t.Fatal("策略代理应建立绑定")
	}
}

func TestOutOfScopeRepliesDirectly(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)

	msg := chat.NewTextMessage(userAddr, "What's the weather today?", nil)
	if err := r.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 2 {
		t.Fatalf("期望 ack + 直接回复两条消息, got %d", len(calls))
	}
	reply := calls[1]
	if reply.to != userAddr {
		t.Fatalf("超范围回复应直接发给用户, got %s", reply.to)
	}
	if reply.msg.Text() != outOfScopeText {
		t.Fatal("超范围回复文本不匹配")
	}
	if reply.msg.Metadata()[chat.MetaQueryType] != string(classify.CategoryOutOfScope) {
		t.Fatal("超范围回复应携带路由元数据")
	}

	if _, ok := correlator.Resolve(analyzerAddr); ok {
		t.Fatal("超范围查询不应建立绑定")
	}
	if len(correlator.Sessions()) != 0 {
		t.Fatal("超范围查询不应登记会话")
	}
}

func TestEmptyQueryIgnored(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)

	msg := chat.NewTextMessage(userAddr, "   \n\t ", nil)
	if err := r.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 1 {
		t.Fatalf("空白查询只应发送确认回执, got %d 条", len(calls))
	}
	if len(correlator.Sessions()) != 0 {
		t.Fatal("空白查询不应登记会话")
	}
}

func TestSpecialistReplyForwarded(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)
	correlator.Bind(analyzerAddr, userAddr)

	reply := chat.NewTextMessage(analyzerAddr, "Compare Orca vs Raydium: Orca wins.", nil)
	if err := r.HandleIncoming(context.Background(), reply); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 2 {
		t.Fatalf("期望 ack + 回投两条消息, got %d", len(calls))
	}
	forward := calls[1]
	if forward.to != userAddr {
		t.Fatalf("专家回复应回投给绑定用户, got %s", forward.to)
	}
	meta := forward.msg.Metadata()
	if meta[chat.MetaForwardedFrom] != analyzerAddr {
		t.Fatalf("forwarded_from 元数据错误: %s", meta[chat.MetaForwardedFrom])
	}
	// 专家回复即使命中分类关键词也绝不重新分类。
	if len(correlator.Sessions()) != 0 {
		t.Fatal("专家回复不应创建新会话")
	}
}

func TestBlankSpecialistReplyIgnored(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)
	correlator.Bind(analyzerAddr, userAddr)

	reply := chat.NewTextMessage(analyzerAddr, "  \n\t ", nil)
	if err := r.HandleIncoming(context.Background(), reply); err != nil {
		t.Fatalf("处理消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 1 {
		t.Fatalf("空白回复只应发送确认回执, got %d 条", len(calls))
	}
	// 绑定保留，等待专家的下一条有效回复。
	if user, ok := correlator.Resolve(analyzerAddr); !ok || user != userAddr {
		t.Fatalf("空白回复不应消耗绑定, got %q ok=%v", user, ok)
	}
}

func TestUnresolvedSpecialistReplyDropped(t *testing.T) {
	bus := &fakeSender{}
	alerts := &fakeAlerts{}
	r, _ := newTestRouter(bus, WithAlerts(alerts))

	reply := chat.NewTextMessage(analyzerAddr, "orphan reply", nil)
	if err := r.HandleIncoming(context.Background(), reply); err != nil {
		t.Fatalf("无绑定的专家回复应被静默丢弃: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 1 {
		t.Fatalf("丢弃时只应发送确认回执, got %d 条", len(calls))
	}
	if len(alerts.events) != 1 {
		t.Fatalf("应产生一条告警事件, got %d", len(alerts.events))
	}
	if alerts.events[0].Specialist != analyzerAddr {
		t.Fatalf("告警应标记专家地址: %s", alerts.events[0].Specialist)
	}
}

func TestAckMessagesNotReAcked(t *testing.T) {
	bus := &fakeSender{}
	r, _ := newTestRouter(bus)

	ack := chat.NewAcknowledgement(analyzerAddr, "some-msg-id")
	if err := r.HandleIncoming(context.Background(), ack); err != nil {
		t.Fatalf("处理回执失败: %v", err)
	}
	if len(bus.sent()) != 0 {
		t.Fatal("对确认回执不应再发送任何消息")
	}
}

func TestStartSessionAnnouncesCapabilities(t *testing.T) {
	bus := &fakeSender{}
	r, _ := newTestRouter(bus)

	if err := r.HandleIncoming(context.Background(), chat.NewStartSession(userAddr)); err != nil {
		t.Fatalf("处理会话开始消息失败: %v", err)
	}

	calls := bus.sent()
	if len(calls) != 2 {
		t.Fatalf("期望 ack + 能力介绍两条消息, got %d", len(calls))
	}
	welcome := calls[1]
	if welcome.msg.Text() != welcomeText {
		t.Fatal("能力介绍文本不匹配")
	}
	if welcome.msg.Metadata()["supported_queries"] == "" {
		t.Fatal("能力介绍应携带 supported_queries 元数据")
	}
}

// failingSender 对非回执消息返回固定错误，回执正常发出。
type failingSender struct {
	fakeSender
	err error
}

func (f *failingSender) Send(ctx context.Context, to string, msg chat.Message) error {
	if !msg.IsAcknowledgement() {
		return f.err
	}
	return f.fakeSender.Send(ctx, to, msg)
}

func TestAnnounceCapabilitiesSendFailure(t *testing.T) {
	busErr := errors.New("bus down")
	bus := &failingSender{err: busErr}
	r, _ := newTestRouter(bus)

	err := r.HandleIncoming(context.Background(), chat.NewStartSession(userAddr))
	if err == nil {
		t.Fatal("发送能力介绍失败应向上返回错误")
	}
	if !errors.Is(err, busErr) {
		t.Fatalf("应保留底层错误: %v", err)
	}
	if xerrors.CodeOf(err) != xerrors.CodeRouteDispatchFailure {
		t.Fatalf("错误码应为 ROUTE_DISPATCH_FAILURE, got %s", xerrors.CodeOf(err))
	}
}

func TestEndSessionForgetsBindings(t *testing.T) {
	bus := &fakeSender{}
	r, correlator := newTestRouter(bus)
	correlator.Bind(analyzerAddr, userAddr)
	correlator.Bind(strategyAddr, userAddr)
	correlator.Bind("agent://other-specialist", "agent://user-2")

	if err := r.HandleIncoming(context.Background(), chat.NewEndSession(userAddr)); err != nil {
		t.Fatalf("处理会话结束消息失败: %v", err)
	}

	if _, ok := correlator.Resolve(analyzerAddr); ok {
		t.Fatal("结束会话后分析代理绑定应被清除")
	}
	if _, ok := correlator.Resolve(strategyAddr); ok {
		t.Fatal("结束会话后策略代理绑定应被清除")
	}
	if _, ok := correlator.Resolve("agent://other-specialist"); !ok {
		t.Fatal("其他用户的绑定不应受影响")
	}
}

func TestBindOverwriteLastWriteWins(t *testing.T) {
	correlator := NewCorrelator()
	correlator.Bind(analyzerAddr, "agent://user-1")
	correlator.Bind(analyzerAddr, "agent://user-2")

	user, ok := correlator.Resolve(analyzerAddr)
	if !ok || user != "agent://user-2" {
		t.Fatalf("后写绑定应覆盖先写, got %q ok=%v", user, ok)
	}
}

func TestSweepRemovesExpiredSessionsAndOrphanBindings(t *testing.T) {
	correlator := NewCorrelator()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	correlator.CreateSession(session.Session{
		ID: "stale", UserAddress: "agent://user-stale", Specialist: analyzerAddr,
		StartedAt: now.Add(-2 * time.Hour),
	})
	correlator.CreateSession(session.Session{
		ID: "fresh", UserAddress: "agent://user-fresh", Specialist: strategyAddr,
		StartedAt: now.Add(-time.Minute),
	})
	correlator.Bind(analyzerAddr, "agent://user-stale")
	correlator.Bind(strategyAddr, "agent://user-fresh")

	removed := correlator.Sweep(now, time.Hour)
	if removed != 1 {
		t.Fatalf("应清理一个过期会话, got %d", removed)
	}
	if _, ok := correlator.Resolve(analyzerAddr); ok {
		t.Fatal("过期用户的绑定应被一并清除")
	}
	if _, ok := correlator.Resolve(strategyAddr); !ok {
		t.Fatal("未过期用户的绑定应保留")
	}
	if correlator.Sweep(now, 0) != 0 {
		t.Fatal("ttl 为零时 Sweep 不应清理任何会话")
	}
}
