package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGraphFacts(t *testing.T) {
	g := DefaultGraph()

	if risk, ok := g.ProtocolRisk("Orca"); !ok || risk != "low" {
		t.Fatalf("Orca 风险档案异常: %q %v", risk, ok)
	}
	if risk, ok := g.ProtocolRisk("kamino"); !ok || risk != "medium" {
		t.Fatalf("协议名匹配应不区分大小写: %q %v", risk, ok)
	}
	if _, ok := g.ProtocolRisk("Unknown"); ok {
		t.Fatal("未知协议不应返回风险档案")
	}

	if !g.SupportsPair("Orca", "SOL-USDC") {
		t.Fatal("Orca 应支持 SOL-USDC")
	}
	if g.SupportsPair("Solend", "SOL-USDC") {
		t.Fatal("Solend 不应支持 SOL-USDC")
	}

	routes := g.RoutesFor("sol-usdc")
	if len(routes) != 2 || routes[0] != "Orca" || routes[1] != "Raydium" {
		t.Fatalf("SOL-USDC 路由提示异常: %v", routes)
	}

	if parts := g.Allocation("conservative"); len(parts) != 3 || parts[0] != 50 {
		t.Fatalf("conservative 配比异常: %v", parts)
	}
	if parts := g.Allocation("unheard-of"); len(parts) != 3 || parts[0] != 40 {
		t.Fatalf("未知档位应退化为 moderate: %v", parts)
	}
}

func TestLoadGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.json")
	payload := `{
  "protocols": [{"name": "Orca", "risk": "low", "tvl_hint": "high", "pairs": ["SOL-USDC"]}],
  "routes": {"sol-usdc": ["Orca"]},
  "allocations": {"Moderate": [40, 30, 30]}
}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("加载知识图谱失败: %v", err)
	}
	if routes := g.RoutesFor("SOL-USDC"); len(routes) != 1 || routes[0] != "Orca" {
		t.Fatalf("路由键应归一化为大写: %v", routes)
	}
	if parts := g.Allocation("moderate"); len(parts) != 3 {
		t.Fatalf("配比键应归一化为小写: %v", parts)
	}
}

func TestLoadGraphMissingFile(t *testing.T) {
	if _, err := LoadGraph(""); err == nil {
		t.Fatal("空路径应返回错误")
	}
	if _, err := LoadGraph(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("文件不存在应返回错误")
	}
}
