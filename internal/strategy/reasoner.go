package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"LuminYield/internal/knowledge"
	"LuminYield/internal/llm"
	loggerpkg "LuminYield/pkg/logger"
)

// 推理方式标识，写入回复元数据。
const (
	MethodGraph    = "metta"
	MethodRemote   = "asi1"
	MethodFallback = "fallback"
)

const (
	remoteReasonTimeout   = 15 * time.Second
	remoteReasonMaxTokens = 400
)

// Step 是推理链中的一步。
type Step struct {
	Step       int     `json:"step"`
	Concept    string  `json:"concept"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ReasoningChain 是归一化的推理结果，三条路径都输出同一形状。
type ReasoningChain struct {
	Method     string  `json:"reasoning_type"`
	Steps      []Step  `json:"reasoning_steps"`
	Confidence float64 `json:"confidence"`
}

// Reasoner 按优先级产出策略推理链：
// 本地知识图谱 → 远端补全 → 规则兜底。任一层失败都降级到下一层，
// Reason 是全函数，绝不返回错误。
type Reasoner struct {
	graph  *knowledge.Graph
	client llm.Client
	logger *slog.Logger
}

// NewReasoner 创建推理器。graph 与 client 都可以为 nil。
func NewReasoner(graph *knowledge.Graph, client llm.Client) *Reasoner {
	return &Reasoner{
		graph:  graph,
		client: client,
		logger: loggerpkg.Named("strategy.reasoner"),
	}
}

// Reason 针对给定约束产出推理链。
func (r *Reasoner) Reason(ctx context.Context, constraints Constraints) ReasoningChain {
	if r.graph != nil {
		return r.graphChain(constraints)
	}
	if r.client != nil {
		if chain, ok := r.remoteChain(ctx, constraints); ok {
			return chain
		}
	}
	return fallbackChain(constraints)
}

// graphChain 用知识图谱里的路由与配置模板生成确定性的推理链。
func (r *Reasoner) graphChain(constraints Constraints) ReasoningChain {
	topic := "SOL-USDC"
	if len(constraints.PreferredTokens) > 0 {
		topic = constraints.PreferredTokens[0]
	}
	routes := r.graph.RoutesFor(topic)
	alloc := r.graph.Allocation(string(constraints.RiskTolerance))

	confidence := 0.6
	if len(routes) > 0 {
		confidence = 0.8
	}
	return ReasoningChain{
		Method: MethodGraph,
		Steps: []Step{
			{Step: 1, Concept: fmt.Sprintf("topic=%s", topic), Confidence: 0.9},
			{Step: 2, Concept: fmt.Sprintf("routes=%v", routes), Confidence: 0.8},
			{Step: 3, Concept: fmt.Sprintf("alloc=%v", alloc), Confidence: 0.8},
		},
		Confidence: confidence,
	}
}

func (r *Reasoner) remoteChain(ctx context.Context, constraints Constraints) (ReasoningChain, bool) {
	remoteCtx, cancel := context.WithTimeout(ctx, remoteReasonTimeout)
	defer cancel()

	resp, err := r.client.Complete(remoteCtx, llm.Request{
		System:      "Produce a compact JSON array of steps for knowledge-graph reasoning. No prose.",
		Prompt:      buildReasoningPrompt(constraints),
		Temperature: 0.2,
		MaxTokens:   remoteReasonMaxTokens,
	})
	if err != nil {
		r.logger.Warn("远端推理失败，使用规则兜底", "error", err)
		return ReasoningChain{}, false
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return ReasoningChain{}, false
	}
	return ReasoningChain{
		Method:     MethodRemote,
		Steps:      []Step{{Step: 1, Concept: "llm", Reasoning: content, Confidence: 0.8}},
		Confidence: 0.8,
	}, true
}

func buildReasoningPrompt(constraints Constraints) string {
	amount := "Not specified"
	if constraints.Amount != nil {
		amount = fmt.Sprintf("%g", *constraints.Amount)
	}
	return fmt.Sprintf(`Generate knowledge graph reasoning for Solana DeFi yield optimization strategy.

Constraints:
- Amount: $%s
- Risk Tolerance: %s
- Preferred Tokens: %v
- Minimum APY: %g%%

Create a reasoning chain: risk vs reward, diversification, protocol security, and constraints.
Return a compact JSON with steps.`,
		amount, constraints.RiskTolerance, constraints.PreferredTokens, constraints.MinAPY)
}

func fallbackChain(constraints Constraints) ReasoningChain {
	risk := string(constraints.RiskTolerance)
	return ReasoningChain{
		Method: MethodFallback,
		Steps: []Step{
			{
				Step:       1,
				Concept:    "Risk Assessment",
				Reasoning:  fmt.Sprintf("User risk tolerance: %s", risk),
				Confidence: 0.9,
			},
			{
				Step:       2,
				Concept:    "Asset Allocation",
				Reasoning:  fmt.Sprintf("Recommended allocation based on %s risk profile", risk),
				Confidence: 0.85,
			},
			{
				Step:       3,
				Concept:    "Protocol Selection",
				Reasoning:  "Selecting protocols with appropriate risk/return profile",
				Confidence: 0.8,
			},
		},
		Confidence: 0.8,
	}
}
