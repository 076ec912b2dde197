package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LuminYield/internal/llm"
	loggerpkg "LuminYield/pkg/logger"
)

const (
	defaultRemoteTimeout = 12 * time.Second
	remoteMaxTokens      = 10
)

const systemPrompt = "Classify Solana DeFi yield queries strictly into: " +
	"yield_analysis, yield_comparison, strategy_recommendation, risk_assessment, out_of_scope. " +
	"Reply with one token only."

// Classifier 结合远端补全与规则兜底对查询做意图分类。
// Classify 是全函数：远端失败时退化为规则分类，绝不返回错误。
type Classifier struct {
	client  llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option 定义分类器的可选配置。
type Option func(*Classifier)

// WithTimeout 覆盖远端分类的超时时间。
func WithTimeout(timeout time.Duration) Option {
	return func(c *Classifier) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger 指定分类器使用的日志器。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建分类器。client 为 nil 时只使用规则分类。
func New(client llm.Client, opts ...Option) *Classifier {
	c := &Classifier{
		client:  client,
		timeout: defaultRemoteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger == nil {
		c.logger = loggerpkg.Named("classify")
	}
	return c
}

// Classify 对查询做意图分类。远端仅尝试一次，任何失败都回退到规则分类。
func (c *Classifier) Classify(ctx context.Context, query string) Category {
	if c.client == nil {
		return RuleBased(query)
	}

	remoteCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Complete(remoteCtx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(query),
		Temperature: 0.0,
		MaxTokens:   remoteMaxTokens,
	})
	if err != nil {
		c.logger.Warn("远端分类失败，使用规则兜底", "error", err)
		return RuleBased(query)
	}

	category, ok := ParseCategory(resp.Content)
	if !ok {
		c.logger.Warn("远端分类返回无法识别的 token，使用规则兜底", "token", resp.Content)
		return RuleBased(query)
	}
	return category
}

func buildPrompt(query string) string {
	return fmt.Sprintf(`Classify the following query into ONE of these categories for Solana DeFi yield optimization:

1. yield_analysis - Direct questions about yields, APYs, or staking returns
2. yield_comparison - Comparing yields between different protocols or tokens
3. strategy_recommendation - Questions about optimal strategies or allocations
4. risk_assessment - Questions about risks, safety, or security of yield strategies
5. out_of_scope - Questions not related to yield optimization or Solana DeFi

Query: %s

Respond with ONLY the category name (yield_analysis, yield_comparison, strategy_recommendation, risk_assessment, or out_of_scope).`, query)
}
