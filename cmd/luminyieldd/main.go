package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"LuminYield/internal/analyzer"
	"LuminYield/internal/api"
	"LuminYield/internal/auth"
	"LuminYield/internal/chat"
	"LuminYield/internal/classify"
	"LuminYield/internal/config"
	"LuminYield/internal/knowledge"
	"LuminYield/internal/llm"
	"LuminYield/internal/llm/asione"
	"LuminYield/internal/llm/pythonbridge"
	"LuminYield/internal/observability/alerting"
	"LuminYield/internal/observability/metrics"
	"LuminYield/internal/router"
	"LuminYield/internal/storage/mysql"
	"LuminYield/internal/strategy"
	"LuminYield/pkg/logger"
	"LuminYield/pkg/plugin"
)

// main 是 LuminYield 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("luminyieldd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "配置文件路径，缺省时读 LUMINYIELD_CONFIG")
	flag.Parse()

	path := config.Resolve(configPath)
	if path == "" {
		path = filepath.Join("configs", "luminyield.json")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	bus, err := createBus(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.L().Warn("关闭消息总线失败", "error", err)
		}
	}()

	archive, err := createArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := archive.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// 初始化大模型客户端。缺失密钥时分类与推理降级为关键词规则。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	correlator := router.NewCorrelator()
	if cfg.Sessions.TTLSeconds > 0 {
		correlator.StartSweeper(ctx,
			time.Duration(cfg.Sessions.TTLSeconds)*time.Second,
			time.Duration(cfg.Sessions.SweepIntervalSeconds)*time.Second,
		)
	}

	// 插件提供的收益数据经由共享数据仓进入分析代理。
	pluginStore := analyzer.NewPluginStore()
	var extraFetchers []analyzer.Fetcher
	if cfg.Plugins.ConfigPath != "" {
		managerCfg, err := plugin.LoadManagerConfig(cfg.Plugins.ConfigPath)
		if err != nil {
			return err
		}
		manager, err := plugin.NewManager(managerCfg,
			plugin.WithResource(plugin.ResourceYieldSink, pluginStore.Sink()),
		)
		if err != nil {
			return err
		}
		if err := manager.StartAll(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := manager.StopAll(stopCtx); err != nil {
				logger.L().Warn("停止插件失败", "error", err)
			}
		}()
		if sources := manager.Active(plugin.TypeYieldSource); len(sources) > 0 {
			logger.L().Info("已加载收益数据源插件", "count", len(sources))
			extraFetchers = append(extraFetchers, analyzer.NewPluginFetcher(pluginStore))
		}
	}

	routerAgent := router.New(router.Config{
		Address:         cfg.Agents.RouterAddress,
		AnalyzerAddress: cfg.Agents.AnalyzerAddress,
		StrategyAddress: cfg.Agents.StrategyAddress,
	}, bus, classify.New(llmClient), correlator,
		router.WithArchive(archive),
		router.WithAlerts(alerting.NewFanout()),
	)

	analyzerAgent := analyzer.New(cfg.Agents.AnalyzerAddress, bus, cfg.Analyzer.RaydiumEnabled,
		analyzer.WithExtraFetchers(extraFetchers...),
	)

	strategyAgent := strategy.New(cfg.Agents.StrategyAddress, bus,
		strategy.NewReasoner(knowledge.DefaultGraph(), llmClient),
	)

	agentCtx, cancelAgents := context.WithCancel(ctx)
	defer cancelAgents()

	go func() {
		if err := routerAgent.Run(agentCtx, bus, cfg.Bus.Workers); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("路由代理异常退出", "error", err)
		}
	}()
	go func() {
		if err := analyzerAgent.Run(agentCtx, bus, cfg.Bus.Workers); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("分析代理异常退出", "error", err)
		}
	}()
	go func() {
		if err := strategyAgent.Run(agentCtx, bus, cfg.Bus.Workers); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("策略代理异常退出", "error", err)
		}
	}()

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, bus, cfg.Agents.RouterAddress,
		correlator, auth.NewService(cfg.Auth.Tokens))

	logger.L().Info("luminyieldd 已启动",
		"server", cfg.Server.Address,
		"bus", cfg.Bus.Driver,
		"router", cfg.Agents.RouterAddress,
	)
	return server.Start(ctx)
}

// createBus 根据配置选择消息总线驱动。
func createBus(cfg *config.Config) (chat.Bus, error) {
	switch cfg.Bus.Driver {
	case "", "memory":
		return chat.NewMemoryBus(256), nil
	case "redis":
		return chat.NewRedisBus(chat.RedisBusConfig{
			Address:   cfg.Bus.Redis.Address,
			Password:  cfg.Bus.Redis.Password,
			DB:        cfg.Bus.Redis.DB,
			KeyPrefix: cfg.Bus.Redis.KeyPrefix,
		})
	case "rabbitmq":
		return chat.NewRabbitMQBus(chat.RabbitMQBusConfig{
			URL:         cfg.Bus.RabbitMQ.URL,
			QueuePrefix: cfg.Bus.RabbitMQ.QueuePrefix,
			Prefetch:    cfg.Bus.RabbitMQ.Prefetch,
			Durable:     true,
		})
	default:
		return nil, fmt.Errorf("未知的总线驱动: %s", cfg.Bus.Driver)
	}
}

// createArchive 根据配置选择会话归档后端。
func createArchive(ctx context.Context, cfg *config.Config) (mysql.SessionRepository, error) {
	switch cfg.Sessions.Archive.Driver {
	case "", "memory":
		return mysql.NewMemorySessionRepository(cfg.Runtime.DataDir)
	case "mysql":
		return mysql.NewSQLSessionRepository(ctx, mysql.Config{
			DSN:             cfg.Sessions.Archive.DSN,
			MaxOpenConns:    cfg.Sessions.Archive.MaxOpenConns,
			MaxIdleConns:    cfg.Sessions.Archive.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Sessions.Archive.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Sessions.Archive.ConnMaxIdleTimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的归档驱动: %s", cfg.Sessions.Archive.Driver)
	}
}

// createLLMClient 根据配置构造补全客户端。asi1 缺失密钥时返回 nil，
// 调用方按无模型处理。
func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "none":
		return nil, nil
	case "", "asi1":
		apiKey := cfg.LLM.ASI1.ResolveAPIKey()
		if apiKey == "" {
			logger.L().Warn("未配置 ASI1 密钥，分类与推理降级为关键词规则")
			return nil, nil
		}
		client, err := asione.NewClient(asione.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.ASI1.BaseURL,
			Model:   cfg.LLM.ASI1.Model,
			Timeout: time.Duration(cfg.LLM.ASI1.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "python_bridge":
		client, err := pythonbridge.NewClient(
			cfg.LLM.Python.PythonExecutable,
			cfg.LLM.Python.ScriptPath,
			cfg.LLM.Python.WorkingDir,
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}
