package strategy

import (
	"context"
	"strings"
	"sync"
	"testing"

	"LuminYield/internal/chat"
	"LuminYield/internal/knowledge"
	"LuminYield/internal/llm"
)

func TestExtractConstraintsAmountPrecedence(t *testing.T) {
	cases := []struct {
		query string
		want  float64
	}{
		{"Best strategy for $1,000.00 please", 1000.00},
		{"I have 500 dollars to invest", 500},
		{"allocate 250 usdc for me", 250},
		{"put $2000 or maybe 900 dollars", 2000},
	}
	for _, tc := range cases {
		got := ExtractConstraints(tc.query)
		if got.Amount == nil || *got.Amount != tc.want {
			t.Fatalf("查询 %q 金额提取错误: %+v", tc.query, got.Amount)
		}
	}

	if got := ExtractConstraints("what is a good strategy"); got.Amount != nil {
		t.Fatal("无金额的查询不应提取出数值")
	}
}

func TestExtractConstraintsRiskAndTokens(t *testing.T) {
	conservative := ExtractConstraints("I want something safe with USDC")
	if conservative.RiskTolerance != RiskConservative {
		t.Fatalf("safe 应判为 conservative, got %s", conservative.RiskTolerance)
	}

	aggressive := ExtractConstraints("maximum yield on SOL please")
	if aggressive.RiskTolerance != RiskAggressive {
		t.Fatalf("maximum 应判为 aggressive, got %s", aggressive.RiskTolerance)
	}

	neutral := ExtractConstraints("allocate across ray and orca")
	if neutral.RiskTolerance != RiskModerate {
		t.Fatalf("默认风险偏好应为 moderate, got %s", neutral.RiskTolerance)
	}
	// knownTokens 顺序决定输出顺序
	if len(neutral.PreferredTokens) != 2 || neutral.PreferredTokens[0] != "RAY" || neutral.PreferredTokens[1] != "ORCA" {
		t.Fatalf("代币提取错误: %v", neutral.PreferredTokens)
	}
}

func TestExtractConstraintsMinAPY(t *testing.T) {
	got := ExtractConstraints("find me at least 8.5% APY on sol")
	if got.MinAPY != 8.5 {
		t.Fatalf("最低 APY 提取错误: %g", got.MinAPY)
	}
	if len(got.PreferredTokens) == 0 || got.PreferredTokens[0] != "SOL" {
		t.Fatalf("代币提取错误: %v", got.PreferredTokens)
	}
}

func TestReasonerGraphTier(t *testing.T) {
	reasoner := NewReasoner(knowledge.DefaultGraph(), nil)

	chain := reasoner.Reason(context.Background(), Constraints{
		RiskTolerance:   RiskModerate,
		PreferredTokens: []string{"SOL"},
	})
	if chain.Method != MethodGraph {
		t.Fatalf("有图谱时应走图谱推理, got %s", chain.Method)
	}
	if len(chain.Steps) != 3 {
		t.Fatalf("图谱推理链应有 3 步, got %d", len(chain.Steps))
	}
	if chain.Confidence != 0.8 {
		t.Fatalf("SOL 有路由时置信度应为 0.8, got %g", chain.Confidence)
	}
	if !strings.Contains(chain.Steps[0].Concept, "topic=SOL") {
		t.Fatalf("第一步应包含主题: %s", chain.Steps[0].Concept)
	}
}

func TestReasonerGraphTierUnknownTopic(t *testing.T) {
	reasoner := NewReasoner(knowledge.DefaultGraph(), nil)
	chain := reasoner.Reason(context.Background(), Constraints{
		RiskTolerance:   RiskModerate,
		PreferredTokens: []string{"BTC"},
	})
	if chain.Confidence != 0.6 {
		t.Fatalf("无路由的主题置信度应降为 0.6, got %g", chain.Confidence)
	}
}

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Complete(context.Context, llm.Request) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func TestReasonerRemoteTier(t *testing.T) {
	reasoner := NewReasoner(nil, &fakeLLM{content: `[{"step":1}]`})
	chain := reasoner.Reason(context.Background(), Constraints{RiskTolerance: RiskModerate})
	if chain.Method != MethodRemote {
		t.Fatalf("无图谱有客户端时应走远端推理, got %s", chain.Method)
	}
	if chain.Steps[0].Reasoning != `[{"step":1}]` {
		t.Fatalf("远端推理内容丢失: %+v", chain.Steps)
	}
}

func TestReasonerFallbackTier(t *testing.T) {
	empty := NewReasoner(nil, &fakeLLM{content: "  "})
	chain := empty.Reason(context.Background(), Constraints{RiskTolerance: RiskAggressive})
	if chain.Method != MethodFallback {
		t.Fatalf("远端返回空内容应走规则兜底, got %s", chain.Method)
	}
	if len(chain.Steps) != 3 || chain.Steps[0].Confidence != 0.9 || chain.Steps[1].Confidence != 0.85 {
		t.Fatalf("兜底推理链形状错误: %+v", chain.Steps)
	}

	bare := NewReasoner(nil, nil)
	if bare.Reason(context.Background(), Constraints{}).Method != MethodFallback {
		t.Fatal("图谱与客户端都缺失时应走规则兜底")
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		1000:       "$1,000.00",
		1234567.5:  "$1,234,567.50",
		999:        "$999.00",
		12.345:     "$12.35",
		-1500:      "$-1,500.00",
		15000000.0: "$15,000,000.00",
	}
	for input, want := range cases {
		if got := formatMoney(input); got != want {
			t.Fatalf("formatMoney(%g) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatRecommendationTemplates(t *testing.T) {
	amount := 2000.0
	out := FormatRecommendation(Constraints{
		Amount:        &amount,
		RiskTolerance: RiskAggressive,
	}, fallbackChain(Constraints{RiskTolerance: RiskAggressive}))

	for _, want := range []string{
		"🎯 **High-Yield Strategy**",
		"💰 **Investment Amount:** $2,000.00",
		"📈 **Expected APY:** 12.1%",
		"• **Kamino** (50%)",
		"  - Amount: $1,000.00",
		"• **Orca** (20%)",
		"  - Token: RAY-USDC",
		"• Expected annual return: $242.00",
		"• Past performance doesn't guarantee future results",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("推荐文本缺少片段 %q:\n%s", want, out)
		}
	}
}

func TestFormatRecommendationDefaultAmount(t *testing.T) {
	out := FormatRecommendation(Constraints{RiskTolerance: RiskConservative}, fallbackChain(Constraints{}))
	if !strings.Contains(out, "💰 **Investment Amount:** $1,000.00") {
		t.Fatal("未给金额时应按 $1000 计算")
	}
	if !strings.Contains(out, "Conservative Yield Strategy") {
		t.Fatal("保守偏好应使用保守模板")
	}
}

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

func TestAgentRiskQueryReturnsStaticAssessment(t *testing.T) {
	bus := &fakeSender{}
	agent := New("agent://strategy", bus, NewReasoner(knowledge.DefaultGraph(), nil))

	msg := chat.NewTextMessage("agent://router", "What are the risks of staking SOL?", nil)
	if err := agent.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}

	if len(bus.calls) != 2 {
		t.Fatalf("期望 ack + 结果两条消息, got %d", len(bus.calls))
	}
	if !bus.calls[0].msg.IsAcknowledgement() {
		t.Fatal("第一条发出的消息应是确认回执")
	}
	reply := bus.calls[1]
	if reply.msg.Text() != RiskAssessmentText {
		t.Fatal("风险查询应返回固定评估文本")
	}
	if reply.msg.Metadata()["analysis_type"] != "risk_assessment" {
		t.Fatalf("analysis_type 错误: %s", reply.msg.Metadata()["analysis_type"])
	}
}

func TestAgentStrategyQueryUsesReasoner(t *testing.T) {
	bus := &fakeSender{}
	agent := New("agent://strategy", bus, NewReasoner(knowledge.DefaultGraph(), nil))

	msg := chat.NewTextMessage("agent://router", "Best strategy for $1000 USDC", nil)
	if err := agent.HandleIncoming(context.Background(), msg); err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}

	reply := bus.calls[1]
	if !strings.Contains(reply.msg.Text(), "Recommended Allocation") {
		t.Fatal("策略查询应返回配置推荐")
	}
	meta := reply.msg.Metadata()
	if meta["analysis_type"] != "strategy_recommendation" {
		t.Fatalf("analysis_type 错误: %s", meta["analysis_type"])
	}
	if meta["reasoning_method"] != MethodGraph {
		t.Fatalf("reasoning_method 应为图谱推理, got %s", meta["reasoning_method"])
	}
}

func TestAgentAnnouncesCapabilities(t *testing.T) {
	bus := &fakeSender{}
	agent := New("agent://strategy", bus, NewReasoner(nil, nil))

	if err := agent.HandleIncoming(context.Background(), chat.NewStartSession("agent://router")); err != nil {
		t.Fatalf("处理会话开始消息失败: %v", err)
	}
	if bus.calls[1].msg.Text() != capabilitiesText {
		t.Fatal("能力介绍文本不匹配")
	}
}
