package strategy

import (
	"fmt"
	"strconv"
	"strings"
)

// 未给出金额时按 $1000 计算。
const defaultAmountUSD = 1000.0

// Allocation 是策略模板中的一个配置项。
type Allocation struct {
	Protocol   string
	Token      string
	Percentage int
	APY        float64
	Risk       string
}

// Template 是按风险偏好预设的策略模板。
type Template struct {
	Name        string
	Description string
	Allocations []Allocation
	ExpectedAPY float64
	RiskScore   string
}

var templates = map[RiskTolerance]Template{
	RiskConservative: {
		Name:        "Conservative Yield Strategy",
		Description: "Focus on stable, low-risk protocols",
		Allocations: []Allocation{
			{Protocol: "Orca", Token: "SOL-USDC", Percentage: 40, APY: 8.5, Risk: "low"},
			{Protocol: "Raydium", Token: "SOL-USDC", Percentage: 30, APY: 7.2, Risk: "low"},
			{Protocol: "Solend", Token: "USDC", Percentage: 30, APY: 6.7, Risk: "low"},
		},
		ExpectedAPY: 7.5,
		RiskScore:   "Low",
	},
	RiskModerate: {
		Name:        "Balanced Yield Strategy",
		Description: "Mix of stable and higher-yield protocols",
		Allocations: []Allocation{
			{Protocol: "Kamino", Token: "USDC", Percentage: 40, APY: 12.3, Risk: "medium"},
			{Protocol: "Orca", Token: "SOL-USDC", Percentage: 35, APY: 8.5, Risk: "low"},
			{Protocol: "Marginfi", Token: "SOL", Percentage: 25, APY: 9.8, Risk: "medium"},
		},
		ExpectedAPY: 10.2,
		RiskScore:   "Medium",
	},
	RiskAggressive: {
		Name:        "High-Yield Strategy",
		Description: "Maximum yield with higher risk tolerance",
		Allocations: []Allocation{
			{Protocol: "Kamino", Token: "USDC", Percentage: 50, APY: 12.3, Risk: "medium"},
			{Protocol: "Marginfi", Token: "SOL", Percentage: 30, APY: 9.8, Risk: "medium"},
			{Protocol: "Orca", Token: "RAY-USDC", Percentage: 20, APY: 15.2, Risk: "high"},
		},
		ExpectedAPY: 12.1,
		RiskScore:   "High",
	},
}

// TemplateFor 返回对应风险偏好的策略模板，未知偏好按 moderate 处理。
func TemplateFor(risk RiskTolerance) Template {
	if template, ok := templates[risk]; ok {
		return template
	}
	return templates[RiskModerate]
}

func riskEmoji(risk string) string {
	switch risk {
	case "low":
		return "🟢"
	case "medium":
		return "🟡"
	default:
		return "🔴"
	}
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

// formatMoney 渲染带千分位的美元金额，固定两位小数。
func formatMoney(v float64) string {
	text := strconv.FormatFloat(v, 'f', 2, 64)
	parts := strings.SplitN(text, ".", 2)
	whole := parts[0]
	negative := strings.HasPrefix(whole, "-")
	if negative {
		whole = whole[1:]
	}
	var groups []string
	for len(whole) > 3 {
		groups = append([]string{whole[len(whole)-3:]}, groups...)
		whole = whole[:len(whole)-3]
	}
	groups = append([]string{whole}, groups...)
	out := strings.Join(groups, ",") + "." + parts[1]
	if negative {
		out = "-" + out
	}
	return "$" + out
}

// FormatRecommendation 按约束渲染策略推荐文本。
func FormatRecommendation(constraints Constraints, chain ReasoningChain) string {
	template := TemplateFor(constraints.RiskTolerance)
	amount := defaultAmountUSD
	if constraints.Amount != nil {
		amount = *constraints.Amount
	}

	var lines []string
	lines = append(lines,
		fmt.Sprintf("🎯 **%s**", template.Name),
		fmt.Sprintf("*%s*", template.Description),
		"",
		fmt.Sprintf("💰 **Investment Amount:** %s", formatMoney(amount)),
		fmt.Sprintf("📈 **Expected APY:** %s%%", strconv.FormatFloat(template.ExpectedAPY, 'f', -1, 64)),
		fmt.Sprintf("⚠️ **Risk Level:** %s", template.RiskScore),
		"",
		"**📊 Recommended Allocation:**",
		"",
	)

	for _, allocation := range template.Allocations {
		allocated := amount * float64(allocation.Percentage) / 100
		lines = append(lines,
			fmt.Sprintf("• **%s** (%d%%)", allocation.Protocol, allocation.Percentage),
			fmt.Sprintf("  - Token: %s", allocation.Token),
			fmt.Sprintf("  - Amount: %s", formatMoney(allocated)),
			fmt.Sprintf("  - APY: %s%% %s", strconv.FormatFloat(allocation.APY, 'f', -1, 64), riskEmoji(allocation.Risk)),
			fmt.Sprintf("  - Risk: %s", titleCase(allocation.Risk)),
			"",
		)
	}

	lines = append(lines,
		"🧠 **Strategy Reasoning:**",
		fmt.Sprintf("• Risk tolerance: %s", titleCase(string(constraints.RiskTolerance))),
		fmt.Sprintf("• Diversification: %d protocols", len(template.Allocations)),
		fmt.Sprintf("• Expected annual return: %s", formatMoney(amount*template.ExpectedAPY/100)),
		fmt.Sprintf("• Reasoning method: %s (confidence %.2f)", chain.Method, chain.Confidence),
		"",
		"⚠️ **Important Disclaimers:**",
		"• Past performance doesn't guarantee future results",
		"• Always verify current APYs before investing",
		"• Consider impermanent loss in liquidity pools",
		"• Start with smaller amounts to test strategies",
	)

	return strings.Join(lines, "\n")
}

// RiskAssessmentText 是风险问答的固定回复。
const RiskAssessmentText = `⚠️ **Solana DeFi Risk Assessment**

**🔴 High Risk Factors:**
• **Smart Contract Risk**: Bugs or exploits in protocol code
• **Impermanent Loss**: Price divergence in liquidity pools
• **Liquidation Risk**: Position liquidation in lending protocols
• **Rug Pull Risk**: Malicious protocol operators

**🟡 Medium Risk Factors:**
• **Market Volatility**: Token price fluctuations
• **Liquidity Risk**: Difficulty exiting positions
• **Regulatory Risk**: Changing regulations
• **Technology Risk**: Solana network issues

**🟢 Low Risk Factors:**
• **Established Protocols**: Audited, battle-tested protocols
• **High TVL**: Large total value locked indicates trust
• **Stablecoin Pairs**: Less volatile than crypto pairs
• **Insurance**: Protocol insurance coverage

**🛡️ Risk Mitigation Strategies:**
• Diversify across multiple protocols
• Start with smaller amounts
• Use established protocols (Orca, Raydium)
• Monitor positions regularly
• Set stop-losses for volatile positions
• Keep emergency funds in stable assets

**📊 Risk Scoring:**
• **Low Risk**: 1-3 (Stablecoin lending, major DEX pools)
• **Medium Risk**: 4-6 (Mixed protocols, moderate leverage)
• **High Risk**: 7-10 (New protocols, high leverage, exotic tokens)

⚠️ *Always do your own research and never invest more than you can afford to lose.*`
