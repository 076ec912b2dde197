package analyzer

import (
	"sort"
	"time"
)

// 数据来源标识。
const (
	SourceOrca     = "orca"
	SourceRaydium  = "raydium"
	SourceJupiter  = "jupiter"
	SourceKamino   = "kamino"
	SourceMarginfi = "marginfi"
	SourceSolend   = "solend"
)

// Opportunity 表示一条归一化后的收益机会。
// 公开 API 未必给出 APY/TVL，缺失时保持 nil，绝不编造数值。
type Opportunity struct {
	Source      string
	Protocol    string
	Token       string
	TokenPair   string
	PoolAddress string
	APY         *float64
	TVL         *float64
	RiskLevel   string
	LastUpdated time.Time
}

// Asset 返回用于展示的标的名称：优先交易对，其次单币种。
func (o Opportunity) Asset() string {
	if o.TokenPair != "" {
		return o.TokenPair
	}
	if o.Token != "" {
		return o.Token
	}
	return "Unknown"
}

// Rank 对收益机会做稳定排序：有 APY 的优先，APY 降序，再按 TVL 降序。
func Rank(opportunities []Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		aHas, bHas := a.APY != nil, b.APY != nil
		if aHas != bHas {
			return aHas
		}
		if aHas && *a.APY != *b.APY {
			return *a.APY > *b.APY
		}
		aTVL, bTVL := -1.0, -1.0
		if a.TVL != nil {
			aTVL = *a.TVL
		}
		if b.TVL != nil {
			bTVL = *b.TVL
		}
		return aTVL > bTVL
	})
}

// minOpportunities 是展示列表的目标条数，不足时用演示数据补齐。
const minOpportunities = 8

// PadWithDemo 在真实数据不足时追加演示数据，真实条目始终在前。
func PadWithDemo(real, demo []Opportunity) []Opportunity {
	if len(real) >= minOpportunities {
		return real
	}
	missing := minOpportunities - len(real)
	if missing > len(demo) {
		missing = len(demo)
	}
	return append(real, demo[:missing]...)
}

func f64(v float64) *float64 { return &v }

// DemoOpportunities 返回基于真实 Solana 协议的演示数据，
// 用于公开 API 不可达或返回过少时兜底展示。
func DemoOpportunities(now time.Time) []Opportunity {
	return []Opportunity{
		{
			Source:      SourceOrca,
			Protocol:    "Orca",
			TokenPair:   "SOL-USDC",
			PoolAddress: "mock_orca_sol_usdc",
			APY:         f64(8.5),
			TVL:         f64(15000000),
			RiskLevel:   "low",
			LastUpdated: now,
		},
		{
			Source:      SourceRaydium,
			Protocol:    "Raydium",
			TokenPair:   "SOL-USDC",
			PoolAddress: "mock_raydium_sol_usdc",
			APY:         f64(7.2),
			TVL:         f64(12000000),
			RiskLevel:   "low",
			LastUpdated: now,
		},
		{
			Source:      SourceKamino,
			Protocol:    "Kamino",
			Token:       "USDC",
			PoolAddress: "mock_kamino_usdc",
			APY:         f64(12.3),
			TVL:         f64(5000000),
			RiskLevel:   "medium",
			LastUpdated: now,
		},
		{
			Source:      SourceMarginfi,
			Protocol:    "Marginfi",
			Token:       "SOL",
			PoolAddress: "mock_marginfi_sol",
			APY:         f64(9.8),
			TVL:         f64(8000000),
			RiskLevel:   "medium",
			LastUpdated: now,
		},
		{
			Source:      SourceSolend,
			Protocol:    "Solend",
			Token:       "USDT",
			PoolAddress: "mock_solend_usdt",
			APY:         f64(6.7),
			TVL:         f64(3000000),
			RiskLevel:   "low",
			LastUpdated: now,
		},
	}
}
