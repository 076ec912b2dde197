package analyzer

import (
	"fmt"
	"strconv"
	"strings"
)

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

func formatAPY(apy *float64) string {
	if apy == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*apy, 'f', -1, 64) + "%"
}

func formatUSD(tvl *float64) string {
	if tvl == nil {
		return "N/A"
	}
	whole := int64(*tvl)
	frac := *tvl - float64(whole)
	out := "$" + groupThousands(whole)
	if frac != 0 {
		fracText := strconv.FormatFloat(frac, 'f', -1, 64)
		out += strings.TrimPrefix(fracText, "0")
	}
	return out
}

func groupThousands(v int64) string {
	text := strconv.FormatInt(v, 10)
	negative := strings.HasPrefix(text, "-")
	if negative {
		text = text[1:]
	}
	var parts []string
	for len(text) > 3 {
		parts = append([]string{text[len(text)-3:]}, parts...)
		text = text[:len(text)-3]
	}
	parts = append([]string{text}, parts...)
	joined := strings.Join(parts, ",")
	if negative {
		return "-" + joined
	}
	return joined
}

// FormatAnalysis 渲染排序后的收益机会列表。
func FormatAnalysis(opportunities []Opportunity) string {
	var lines []string
	lines = append(lines,
		"📊 **Solana Yield Analysis Results**",
		"",
		"Here are the current yield opportunities I found:",
		"",
	)

	for i, opp := range opportunities {
		lines = append(lines,
			fmt.Sprintf("**%d. %s - %s**", i+1, opp.Protocol, opp.Asset()),
			fmt.Sprintf("   • APY: **%s** %s", formatAPY(opp.APY), riskEmoji(opp.RiskLevel)),
			fmt.Sprintf("   • TVL: %s", formatUSD(opp.TVL)),
			fmt.Sprintf("   • Risk: %s", titleCase(opp.RiskLevel)),
			fmt.Sprintf("   • Source: %s", titleCase(opp.Source)),
			"",
		)
	}

	lines = append(lines, "💡 **Key Insights:**")
	var best *Opportunity
	for idx := range opportunities {
		opp := &opportunities[idx]
		if opp.APY == nil {
			continue
		}
		if best == nil || *opp.APY > *best.APY {
			best = opp
		}
	}
	if best != nil {
		lines = append(lines, fmt.Sprintf("• Highest APY: **%s** (%s)", formatAPY(best.APY), best.Protocol))
	}
	lines = append(lines,
		fmt.Sprintf("• Total Opportunities: **%d**", len(opportunities)),
		"",
		"⚠️ *Some sources do not expose APY via public API; values may be N/A.*",
		"📚 Sources: Orca, Raydium, Kamino, Jupiter APIs",
	)

	return strings.Join(lines, "\n")
}

const noComparisonMatch = "❌ No relevant yield opportunities found for your comparison."

// SelectForComparison 根据查询内容挑选参与对比的条目。
func SelectForComparison(query string, opportunities []Opportunity) []Opportunity {
	queryLower := strings.ToLower(query)

	var selected []Opportunity
	switch {
	case strings.Contains(queryLower, "orca") && strings.Contains(queryLower, "raydium"):
		for _, opp := range opportunities {
			protocol := strings.ToLower(opp.Protocol)
			if protocol == "orca" || protocol == "raydium" {
				selected = append(selected, opp)
			}
		}
	case strings.Contains(queryLower, "sol"):
		for _, opp := range opportunities {
			if strings.Contains(opp.Asset(), "SOL") {
				selected = append(selected, opp)
			}
		}
	case strings.Contains(queryLower, "usdc"):
		for _, opp := range opportunities {
			if strings.Contains(opp.Asset(), "USDC") {
				selected = append(selected, opp)
			}
		}
	default:
		if len(opportunities) > 3 {
			opportunities = opportunities[:3]
		}
		selected = opportunities
	}
	return selected
}

// FormatComparison 渲染对比结果并给出推荐。
func FormatComparison(selected []Opportunity) string {
	if len(selected) == 0 {
		return noComparisonMatch
	}

	var lines []string
	lines = append(lines,
		"⚖️ **Yield Comparison Results**",
		"",
		"Here's your comparison:",
		"",
	)
	for _, opp := range selected {
		lines = append(lines,
			fmt.Sprintf("**%s**", opp.Protocol),
			fmt.Sprintf("   • APY: **%s** %s", formatAPY(opp.APY), riskEmoji(opp.RiskLevel)),
			fmt.Sprintf("   • TVL: %s", formatUSD(opp.TVL)),
			fmt.Sprintf("   • Risk: %s", titleCase(opp.RiskLevel)),
			"",
		)
	}

	var best *Opportunity
	for idx := range selected {
		opp := &selected[idx]
		if opp.APY == nil {
			continue
		}
		if best == nil || *opp.APY > *best.APY {
			best = opp
		}
	}
	lines = append(lines, "🎯 **Recommendation:**")
	if best != nil {
		lines = append(lines, fmt.Sprintf("**%s** offers the highest APY at **%s**", best.Protocol, formatAPY(best.APY)))
	} else {
		lines = append(lines, "No entry exposes an APY; compare TVL and risk instead.")
	}
	lines = append(lines,
		"",
		"⚠️ *Consider risk levels and TVL when making decisions.*",
	)
	return strings.Join(lines, "\n")
}
