package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnvConfigPath 指定配置文件路径的环境变量，命令行未给路径时生效。
const EnvConfigPath = "LUMINYIELD_CONFIG"

// Config 描述了 LuminYield 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Bus      BusConfig      `json:"bus"`
	Agents   AgentsConfig   `json:"agents"`
	LLM      LLMConfig      `json:"llm"`
	Analyzer AnalyzerConfig `json:"analyzer"`
	Sessions SessionsConfig `json:"sessions"`
	Plugins  PluginsConfig  `json:"plugins"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	Auth     AuthConfig     `json:"auth"`
	Runtime  RuntimeConfig  `json:"runtime"`
}

// ServerConfig 控制 REST 网关的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// BusConfig 描述代理间消息总线的驱动与连接信息。
type BusConfig struct {
	Driver   string         `json:"driver"`
	Workers  int            `json:"workers"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 总线驱动的连接信息。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// RabbitMQConfig 描述 RabbitMQ 总线驱动的连接信息。
type RabbitMQConfig struct {
	URL         string `json:"url"`
	QueuePrefix string `json:"queue_prefix"`
	Prefetch    int    `json:"prefetch"`
}

// AgentsConfig 指定三个代理在总线上的地址。
type AgentsConfig struct {
	RouterAddress   string `json:"router_address"`
	AnalyzerAddress string `json:"analyzer_address"`
	StrategyAddress string `json:"strategy_address"`
}

// LLMConfig 用于配置远端补全的调用方式。
type LLMConfig struct {
	Provider string             `json:"provider"`
	ASI1     ASI1Config         `json:"asi1"`
	Python   PythonBridgeConfig `json:"python_bridge"`
}

// ASI1Config 描述 ASI:One 补全端点。密钥可以直接填写，
// 也可以通过 api_key_env 指向环境变量；缺失密钥是受支持的降级配置。
type ASI1Config struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ResolveAPIKey 返回生效的 API 密钥，api_key 优先于 api_key_env。
func (c ASI1Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	Enabled          bool   `json:"enabled"`
	PythonExecutable string `json:"python_executable"`
	ScriptPath       string `json:"script_path"`
	WorkingDir       string `json:"working_dir"`
}

// AnalyzerConfig 控制分析代理的数据源行为。
type AnalyzerConfig struct {
	RaydiumEnabled bool `json:"raydium_enabled"`
}

// SessionsConfig 控制会话的过期清理与归档。
type SessionsConfig struct {
	TTLSeconds           int           `json:"ttl_seconds"`
	SweepIntervalSeconds int           `json:"sweep_interval_seconds"`
	Archive              ArchiveConfig `json:"archive"`
}

// ArchiveConfig 描述会话归档的持久化后端。
type ArchiveConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// PluginsConfig 指向插件管理器的 YAML 配置，路径为空时不加载插件。
type PluginsConfig struct {
	ConfigPath string `json:"config_path"`
}

// LoggingConfig 控制日志输出与审计日志。
type LoggingConfig struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	Audit       AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志的滚动输出。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// MetricsConfig 控制指标端点。地址为空时不启动独立指标服务。
type MetricsConfig struct {
	Address string `json:"address"`
}

// AuthConfig 配置 REST 网关的静态令牌。列表为空时不启用鉴权。
type AuthConfig struct {
	Tokens []string `json:"tokens"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Resolve 返回生效的配置文件路径：入参优先，其次读环境变量。
func Resolve(path string) string {
	if path != "" {
		return path
	}
	return os.Getenv(EnvConfigPath)
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Bus.Driver == "" {
		c.Bus.Driver = "memory"
	}
	if c.Bus.Workers <= 0 {
		c.Bus.Workers = 4
	}

	if c.Agents.RouterAddress == "" {
		c.Agents.RouterAddress = "agent://luminyield/router"
	}
	if c.Agents.AnalyzerAddress == "" {
		c.Agents.AnalyzerAddress = "agent://luminyield/analyzer"
	}
	if c.Agents.StrategyAddress == "" {
		c.Agents.StrategyAddress = "agent://luminyield/strategy"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "asi1"
	}
	if c.LLM.ASI1.APIKeyEnv == "" {
		c.LLM.ASI1.APIKeyEnv = "ASI1_API_KEY"
	}
	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Sessions.Archive.Driver == "" {
		c.Sessions.Archive.Driver = "memory"
	}
	if c.Sessions.TTLSeconds > 0 && c.Sessions.SweepIntervalSeconds <= 0 {
		c.Sessions.SweepIntervalSeconds = 60
	}

	if c.Plugins.ConfigPath != "" && !filepath.IsAbs(c.Plugins.ConfigPath) {
		c.Plugins.ConfigPath = filepath.Join(baseDir, c.Plugins.ConfigPath)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	} else if c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}
}
