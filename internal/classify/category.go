package classify

import "strings"

// Category 表示查询意图分类结果。
type Category string

const (
	CategoryYieldAnalysis          Category = "yield_analysis"
	CategoryYieldComparison        Category = "yield_comparison"
	CategoryStrategyRecommendation Category = "strategy_recommendation"
	CategoryRiskAssessment         Category = "risk_assessment"
	CategoryOutOfScope             Category = "out_of_scope"
)

// Categories 返回全部合法分类。
func Categories() []Category {
	return []Category{
		CategoryYieldAnalysis,
		CategoryYieldComparison,
		CategoryStrategyRecommendation,
		CategoryRiskAssessment,
		CategoryOutOfScope,
	}
}

// ParseCategory 将远端返回的 token 解析为分类。
// 解析不区分大小写，下划线与空格视为等价；无法识别时返回 false。
func ParseCategory(token string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch Category(normalized) {
	case CategoryYieldAnalysis:
		return CategoryYieldAnalysis, true
	case CategoryYieldComparison:
		return CategoryYieldComparison, true
	case CategoryStrategyRecommendation:
		return CategoryStrategyRecommendation, true
	case CategoryRiskAssessment:
		return CategoryRiskAssessment, true
	case CategoryOutOfScope:
		return CategoryOutOfScope, true
	default:
		return "", false
	}
}

// String 实现 fmt.Stringer。
func (c Category) String() string {
	return string(c)
}
