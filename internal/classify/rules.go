package classify

import "strings"

// 规则分类使用的关键词表。顺序即优先级：先判断是否属于收益话题，
// 再依次检查比较、策略、风险关键词。
var (
	yieldKeywords    = []string{"yield", "apy", "apr", "return", "earn", "staking", "lending", "farming"}
	compareKeywords  = []string{"compare", "vs", "versus", "between", "better"}
	strategyKeywords = []string{"strategy", "best", "optimal", "recommend", "should"}
	riskKeywords     = []string{"risk", "safe", "dangerous", "secure", "risky"}
)

// RuleBased 是纯规则的兜底分类器，不依赖任何外部服务。
func RuleBased(query string) Category {
	lower := strings.ToLower(query)

	if !containsAny(lower, yieldKeywords) {
		return CategoryOutOfScope
	}
	if containsAny(lower, compareKeywords) {
		return CategoryYieldComparison
	}
	if containsAny(lower, strategyKeywords) {
		return CategoryStrategyRecommendation
	}
	if containsAny(lower, riskKeywords) {
		return CategoryRiskAssessment
	}
	return CategoryYieldAnalysis
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
