package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("默认监听地址错误: %s", cfg.Server.Address)
	}
	if cfg.Bus.Driver != "memory" || cfg.Bus.Workers != 4 {
		t.Fatalf("总线默认值错误: %+v", cfg.Bus)
	}
	if cfg.Agents.RouterAddress != "agent://luminyield/router" {
		t.Fatalf("路由器默认地址错误: %s", cfg.Agents.RouterAddress)
	}
	if cfg.LLM.Provider != "asi1" || cfg.LLM.ASI1.APIKeyEnv != "ASI1_API_KEY" {
		t.Fatalf("LLM 默认值错误: %+v", cfg.LLM)
	}
	if cfg.Sessions.Archive.Driver != "memory" {
		t.Fatalf("归档默认驱动错误: %s", cfg.Sessions.Archive.Driver)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("日志默认级别错误: %s", cfg.Logging.Level)
	}
	if cfg.Runtime.DataDir != filepath.Join(filepath.Dir(path), "data") {
		t.Fatalf("数据目录默认值错误: %s", cfg.Runtime.DataDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"address": ":9090"},
		"bus": {"driver": "redis", "workers": 8, "redis": {"address": "localhost:6379"}},
		"agents": {"analyzer_address": "agent://custom/analyzer"},
		"sessions": {"ttl_seconds": 300, "archive": {"driver": "mysql", "dsn": "user:pass@tcp(localhost:3306)/luminyield"}},
		"analyzer": {"raydium_enabled": true}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Fatalf("监听地址覆盖失败: %s", cfg.Server.Address)
	}
	if cfg.Bus.Driver != "redis" || cfg.Bus.Workers != 8 {
		t.Fatalf("总线覆盖失败: %+v", cfg.Bus)
	}
	if cfg.Agents.AnalyzerAddress != "agent://custom/analyzer" {
		t.Fatalf("分析代理地址覆盖失败: %s", cfg.Agents.AnalyzerAddress)
	}
	// 只覆盖部分字段时其余仍取默认值
	if cfg.Agents.StrategyAddress != "agent://luminyield/strategy" {
		t.Fatalf("策略代理默认地址错误: %s", cfg.Agents.StrategyAddress)
	}
	if !cfg.Analyzer.RaydiumEnabled {
		t.Fatal("raydium_enabled 覆盖失败")
	}
	if cfg.Sessions.TTLSeconds != 300 || cfg.Sessions.SweepIntervalSeconds != 60 {
		t.Fatalf("会话 TTL 配置错误: %+v", cfg.Sessions)
	}
	if cfg.Sessions.Archive.Driver != "mysql" {
		t.Fatalf("归档驱动覆盖失败: %s", cfg.Sessions.Archive.Driver)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{
		"plugins": {"config_path": "plugins.yaml"},
		"logging": {"audit": {"enabled": true}}
	}`)
	baseDir := filepath.Dir(path)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Plugins.ConfigPath != filepath.Join(baseDir, "plugins.yaml") {
		t.Fatalf("插件配置路径应相对配置目录解析: %s", cfg.Plugins.ConfigPath)
	}
	if cfg.Logging.Audit.Path != filepath.Join(baseDir, "data", "audit.log") {
		t.Fatalf("审计日志默认路径错误: %s", cfg.Logging.Audit.Path)
	}
}

func TestResolvePrefersExplicitPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/from/env.json")

	if got := Resolve("/explicit.json"); got != "/explicit.json" {
		t.Fatalf("显式路径应优先: %s", got)
	}
	if got := Resolve(""); got != "/from/env.json" {
		t.Fatalf("路径为空时应读环境变量: %s", got)
	}
}

func TestASI1ResolveAPIKey(t *testing.T) {
	t.Setenv("TEST_ASI1_KEY", "from-env")

	direct := ASI1Config{APIKey: "direct", APIKeyEnv: "TEST_ASI1_KEY"}
	if direct.ResolveAPIKey() != "direct" {
		t.Fatal("直接填写的密钥应优先")
	}
	env := ASI1Config{APIKeyEnv: "TEST_ASI1_KEY"}
	if env.ResolveAPIKey() != "from-env" {
		t.Fatal("应从环境变量读取密钥")
	}
	none := ASI1Config{}
	if none.ResolveAPIKey() != "" {
		t.Fatal("无配置时密钥应为空")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("空路径应报错")
	}
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("文件不存在应报错")
	}
}
