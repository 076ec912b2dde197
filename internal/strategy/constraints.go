package strategy

import (
	"regexp"
	"strconv"
	"strings"
)

// RiskTolerance 表示用户的风险偏好。
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// Constraints 是从查询文本中提取的投资约束。
// 提取是全函数：任何输入都能得到一组带默认值的约束。
type Constraints struct {
	Amount          *float64
	RiskTolerance   RiskTolerance
	PreferredTokens []string
	MinAPY          float64
}

// 金额模式按优先级排列，命中第一个即停止。
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*dollars?`),
	regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*usdc?`),
}

var minAPYPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

var conservativeWords = []string{"conservative", "safe", "low risk", "stable"}
var aggressiveWords = []string{"aggressive", "high risk", "risky", "maximum"}

// knownTokens 的顺序决定 PreferredTokens 的输出顺序。
var knownTokens = []string{"sol", "usdc", "usdt", "ray", "orca", "eth", "btc"}

// ExtractConstraints 从查询中提取金额、风险偏好、偏好代币与最低 APY。
func ExtractConstraints(query string) Constraints {
	queryLower := strings.ToLower(query)

	constraints := Constraints{RiskTolerance: RiskModerate}

	for _, pattern := range amountPatterns {
		match := pattern.FindStringSubmatch(queryLower)
		if match == nil {
			continue
		}
		raw := strings.ReplaceAll(match[1], ",", "")
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			constraints.Amount = &amount
			break
		}
	}

	if containsAny(queryLower, conservativeWords) {
		constraints.RiskTolerance = RiskConservative
	} else if containsAny(queryLower, aggressiveWords) {
		constraints.RiskTolerance = RiskAggressive
	}

	for _, token := range knownTokens {
		if strings.Contains(queryLower, token) {
			constraints.PreferredTokens = append(constraints.PreferredTokens, strings.ToUpper(token))
		}
	}

	if match := minAPYPattern.FindStringSubmatch(queryLower); match != nil {
		if apy, err := strconv.ParseFloat(match[1], 64); err == nil {
			constraints.MinAPY = apy
		}
	}

	return constraints
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
