package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Graph 是协议事实构成的轻量知识图谱，供策略推理器查询。
// 事实包括协议风险档案、TVL 提示、支持的交易对、风险配比模板与路由提示。
type Graph struct {
	protocols   []Protocol
	routes      map[string][]string
	allocations map[string][]int
}

// Protocol 描述单个协议的事实。
type Protocol struct {
	Name    string   `json:"name"`
	Risk    string   `json:"risk"`
	TVLHint string   `json:"tvl_hint"`
	Pairs   []string `json:"pairs"`
}

// Facts 是知识图谱的序列化形式。
type Facts struct {
	Protocols   []Protocol          `json:"protocols"`
	Routes      map[string][]string `json:"routes"`
	Allocations map[string][]int    `json:"allocations"`
}

// NewGraph 根据事实构建图谱。
func NewGraph(facts Facts) *Graph {
	g := &Graph{
		protocols:   facts.Protocols,
		routes:      make(map[string][]string, len(facts.Routes)),
		allocations: make(map[string][]int, len(facts.Allocations)),
	}
	for topic, targets := range facts.Routes {
		g.routes[strings.ToUpper(strings.TrimSpace(topic))] = targets
	}
	for profile, parts := range facts.Allocations {
		g.allocations[strings.ToLower(strings.TrimSpace(profile))] = parts
	}
	return g
}

// LoadGraph 从 JSON 文件加载知识图谱。
func LoadGraph(path string) (*Graph, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识图谱文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识图谱路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识图谱文件失败: %w", err)
	}
	defer file.Close()

	var facts Facts
	if err := json.NewDecoder(file).Decode(&facts); err != nil {
		return nil, fmt.Errorf("解析知识图谱文件失败: %w", err)
	}

	return NewGraph(facts), nil
}

// DefaultGraph 返回内置的 Solana 收益协议事实。
func DefaultGraph() *Graph {
	return NewGraph(Facts{
		Protocols: []Protocol{
			{Name: "Orca", Risk: "low", TVLHint: "high", Pairs: []string{"SOL-USDC", "RAY-USDC"}},
			{Name: "Raydium", Risk: "low", TVLHint: "high", Pairs: []string{"SOL-USDC"}},
			{Name: "Solend", Risk: "low", TVLHint: "mid", Pairs: []string{"USDC"}},
			{Name: "Marginfi", Risk: "medium", TVLHint: "mid", Pairs: []string{"SOL"}},
			{Name: "Kamino", Risk: "medium", TVLHint: "mid", Pairs: []string{"USDC"}},
		},
		Routes: map[string][]string{
			"SOL-USDC": {"Orca", "Raydium"},
			"RAY-USDC": {"Orca"},
			"USDC":     {"Kamino", "Solend"},
			"SOL":      {"Marginfi"},
		},
		Allocations: map[string][]int{
			"conservative": {50, 30, 20},
			"moderate":     {40, 30, 30},
			"aggressive":   {25, 35, 40},
		},
	})
}

// Protocols 返回全部协议事实。
func (g *Graph) Protocols() []Protocol {
	if g == nil {
		return nil
	}
	return g.protocols
}

// ProtocolRisk 返回协议的风险档案。
func (g *Graph) ProtocolRisk(name string) (string, bool) {
	if g == nil {
		return "", false
	}
	for _, p := range g.protocols {
		if strings.EqualFold(p.Name, name) {
			return p.Risk, true
		}
	}
	return "", false
}

// SupportsPair 判断协议是否支持指定交易对。
func (g *Graph) SupportsPair(protocol, pair string) bool {
	if g == nil {
		return false
	}
	for _, p := range g.protocols {
		if !strings.EqualFold(p.Name, protocol) {
			continue
		}
		for _, candidate := range p.Pairs {
			if strings.EqualFold(candidate, pair) {
				return true
			}
		}
	}
	return false
}

// RoutesFor 返回话题（交易对或代币）对应的协议路由提示。
func (g *Graph) RoutesFor(topic string) []string {
	if g == nil {
		return nil
	}
	return g.routes[strings.ToUpper(strings.TrimSpace(topic))]
}

// Allocation 返回风险档位对应的配比模板。未知档位返回 moderate 的配比。
func (g *Graph) Allocation(profile string) []int {
	if g == nil {
		return nil
	}
	if parts, ok := g.allocations[strings.ToLower(strings.TrimSpace(profile))]; ok {
		return parts
	}
	return g.allocations["moderate"]
}
