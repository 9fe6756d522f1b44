package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/yourusername/node-placeholder-scaler/internal/calendar"
	"github.com/yourusername/node-placeholder-scaler/internal/config"
	"github.com/yourusername/node-placeholder-scaler/internal/k8s"
	"github.com/yourusername/node-placeholder-scaler/internal/manifest"
	"github.com/yourusername/node-placeholder-scaler/internal/metrics"
	"github.com/yourusername/node-placeholder-scaler/internal/metrics/sources"
	"github.com/yourusername/node-placeholder-scaler/internal/publisher"
	"github.com/yourusername/node-placeholder-scaler/internal/scaler"
)

func main() {
	flags := pflag.NewFlagSet("node-placeholder-scaler", pflag.ExitOnError)
	configPath := flags.String("config-file", "config.yaml", "config file path")
	once := flags.Bool("once", false, "run a single reconcile cycle and exit")
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	if err := run(*configPath, *once, flags); err != nil {
		logrus.Fatalf("node-placeholder-scaler: %v", err)
	}
}

func run(configPath string, once bool, flags *pflag.FlagSet) error {
	loadConfig := func() (*config.Config, error) {
		return config.Load(configPath, flags)
	}

	// 启动时读取一次配置：日志、K8s客户端和周期间隔只在启动时确定
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logger.Infof("Starting node placeholder scaler...")
	logger.Infof("Namespace: %s, pools: %v, strategy: %s", cfg.K8s.Namespace, cfg.PoolNames(), cfg.Strategy)

	if _, err := manifest.LoadTemplate(cfg.K8s.TemplateFile); err != nil {
		return fmt.Errorf("failed to load placeholder template: %w", err)
	}

	// 1. 初始化K8s客户端
	k8sClient, err := k8s.NewClient(&cfg.K8s, logger)
	if err != nil {
		return fmt.Errorf("failed to create K8s client: %w", err)
	}
	if err := k8sClient.TestConnection(); err != nil {
		logger.Warnf("Failed to connect to Kubernetes, will retry every cycle: %v", err)
	}

	// 2. 快照提供者，可选metrics-server使用量
	var usage metrics.NodeUsageSource
	if cfg.K8s.EnableUsageMetrics {
		usage = sources.NewNodeUsageCollector(k8sClient.Metrics(), logger)
	}
	snapshots, err := k8s.NewSnapshotProvider(k8sClient.Clientset(), usage, k8s.SnapshotConfig{
		Namespace:                cfg.K8s.Namespace,
		PlaceholderLabelSelector: cfg.K8s.PlaceholderLabelSelector,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create snapshot provider: %w", err)
	}

	// 3. 写入器
	var sink scaler.Sink = k8s.NewDeploymentSink(k8sClient.Dynamic(), cfg.K8s.Namespace, logger)
	if cfg.K8s.DryRun {
		logger.Info("Dry-run enabled, deployments will only be logged")
		sink = k8s.NewDryRunSink(logger)
	}

	// 4. 结果发布（可选）
	var results scaler.Publisher
	if p := publisher.NewRedisPublisher(cfg.Redis, logger); p != nil {
		logger.Infof("Publishing reconcile results to redis %s (key %s)", cfg.Redis.Addr, cfg.Redis.Key)
		results = p
	}

	controller := scaler.NewController(scaler.Options{
		Interval:     time.Duration(cfg.Interval) * time.Second,
		LoadConfig:   loadConfig,
		LoadTemplate: manifest.LoadTemplate,
		Snapshots:    snapshots,
		Calendar:     calendar.NewClient(30*time.Second, logger),
		Sink:         sink,
		Publisher:    results,
		Logger:       logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if once {
		_, err := controller.RunOnce(ctx)
		return err
	}

	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Node placeholder scaler exited")
	return nil
}

// newLogger 根据配置创建日志
func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
