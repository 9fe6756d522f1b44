package scaler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/internal/config"
	"github.com/yourusername/node-placeholder-scaler/internal/manifest"
	"github.com/yourusername/node-placeholder-scaler/internal/metrics"
	"github.com/yourusername/node-placeholder-scaler/internal/overrides"
	"github.com/yourusername/node-placeholder-scaler/internal/reconcile"
	metricstypes "github.com/yourusername/node-placeholder-scaler/pkg/metrics"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"

	appsv1 "k8s.io/api/apps/v1"
)

var (
	// ErrConfigLoad 配置或模板加载失败，本周期中止
	ErrConfigLoad = errors.New("config load failed")
	// ErrSnapshotFetch 集群快照获取失败，本周期中止
	ErrSnapshotFetch = errors.New("cluster snapshot fetch failed")
	// ErrCalendarFetch 日历获取失败，本周期中止
	ErrCalendarFetch = errors.New("calendar fetch failed")
	// ErrApply 某个节点池的Deployment写入失败，其它节点池不受影响
	ErrApply = errors.New("apply failed")
)

// ConfigLoader 每个周期重新加载配置
type ConfigLoader func() (*config.Config, error)

// TemplateLoader 每个周期重新加载占位Deployment模板
type TemplateLoader func(path string) (*appsv1.Deployment, error)

// CalendarSource 返回某一时刻进行中的日历事件
type CalendarSource interface {
	GetEvents(ctx context.Context, url string, asOf time.Time) ([]models.CalendarEvent, error)
}

// Sink 写入占位Deployment
type Sink interface {
	Apply(ctx context.Context, deployment *appsv1.Deployment) error
}

// Publisher 发布周期结果
type Publisher interface {
	Publish(ctx context.Context, results []models.ReconciliationResult) error
}

// Options 控制器依赖
type Options struct {
	Interval     time.Duration
	LoadConfig   ConfigLoader
	LoadTemplate TemplateLoader
	Snapshots    metrics.SnapshotSource
	Calendar     CalendarSource
	Sink         Sink
	Publisher    Publisher // 可选
	Logger       logrus.FieldLogger
}

// Controller 周期性调和占位Deployment副本数
type Controller struct {
	logger       logrus.FieldLogger
	interval     time.Duration
	loadConfig   ConfigLoader
	loadTemplate TemplateLoader
	snapshots    metrics.SnapshotSource
	calendar     CalendarSource
	sink         Sink
	publisher    Publisher
	now          func() time.Time
}

// NewController 构造控制器
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}

	if opts.Interval == 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.LoadTemplate == nil {
		opts.LoadTemplate = manifest.LoadTemplate
	}

	return &Controller{
		logger:       logger,
		interval:     opts.Interval,
		loadConfig:   opts.LoadConfig,
		loadTemplate: opts.LoadTemplate,
		snapshots:    opts.Snapshots,
		calendar:     opts.Calendar,
		sink:         opts.Sink,
		publisher:    opts.Publisher,
		now:          time.Now,
	}
}

// Run 启动调和循环，直到 ctx 被取消；单个周期失败不会退出
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Infof("Starting placeholder scaler (interval: %s)", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunOnce(ctx); err != nil {
			c.logger.Errorf("Reconcile failed: %v", err)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Placeholder scaler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce 执行一个完整周期并返回每个节点池的结果。
// 配置、模板、快照或日历失败时中止本周期；写入失败只影响对应节点池，汇总为 ErrApply。
func (c *Controller) RunOnce(ctx context.Context) ([]models.ReconciliationResult, error) {
	asOf := c.now()

	cfg, err := c.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}
	template, err := c.loadTemplate(cfg.K8s.TemplateFile)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %w", ErrConfigLoad, cfg.K8s.TemplateFile, err)
	}
	policy, err := policyFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	snapshot, err := c.snapshots.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotFetch, err)
	}

	events, err := c.calendar.GetEvents(ctx, cfg.CalendarURL, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalendarFetch, err)
	}

	resources := metrics.NewAccountant(cfg.K8s.PoolLabelKey, c.logger).Account(snapshot)
	if cfg.K8s.EnableUsageMetrics {
		c.logUsage(resources)
	}

	resolved := overrides.NewResolver(c.logger).Resolve(events)
	for _, pool := range resolved.Pools() {
		if _, ok := cfg.NodePools[pool]; !ok {
			c.logger.WithField("pool", pool).Warn("Calendar override names a pool that is not configured, ignoring")
		}
	}

	results := reconcile.NewEngine(policy, c.logger).ReconcileAll(poolSpecs(cfg), resolved, resources)

	var applyErrs []error
	for _, result := range results {
		if err := c.apply(ctx, template, cfg, result); err != nil {
			c.logger.WithField("pool", result.Pool).Errorf("Failed to apply placeholder deployment: %v", err)
			applyErrs = append(applyErrs, fmt.Errorf("%w: pool %s: %w", ErrApply, result.Pool, err))
		}
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, results); err != nil {
			c.logger.Warnf("Failed to publish reconciliation results: %v", err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"pools":  len(results),
		"events": len(events),
		"nodes":  len(snapshot.Nodes),
	}).Info("Reconcile cycle finished")

	return results, errors.Join(applyErrs...)
}

func (c *Controller) apply(ctx context.Context, template *appsv1.Deployment, cfg *config.Config, result models.ReconciliationResult) error {
	pool := cfg.NodePools[result.Pool]
	resources, err := pool.Resources.Requirements()
	if err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	deployment := manifest.Build(template, result.Pool, pool.NodeSelector, resources, int32(result.TargetReplicas))
	return c.sink.Apply(ctx, deployment)
}

func (c *Controller) logUsage(resources *metricstypes.PoolResources) {
	for _, pool := range resources.PoolNames() {
		for _, n := range resources.Nodes(pool) {
			if n.CPUUsage == nil || n.MemoryUsage == nil {
				continue
			}
			c.logger.WithFields(logrus.Fields{
				"pool":          pool,
				"node":          n.NodeName,
				"cpu_requested": n.CPURequested,
				"cpu_used":      *n.CPUUsage,
				"mem_requested": n.MemoryRequested,
				"mem_used":      *n.MemoryUsage,
			}).Debug("Observed node usage")
		}
	}
}

func policyFromConfig(cfg *config.Config) (reconcile.Policy, error) {
	strategy, err := reconcile.ParseStrategy(cfg.Strategy)
	if err != nil {
		return reconcile.Policy{}, err
	}
	return reconcile.Policy{
		Strategy:               strategy,
		CPUThreshold:           cfg.CPUThreshold,
		MemoryThreshold:        cfg.MemoryThreshold,
		SkipCordoned:           cfg.Eligibility.SkipCordoned,
		SkipPlaceholderRunning: cfg.Eligibility.SkipPlaceholderRunning,
	}, nil
}

func poolSpecs(cfg *config.Config) []reconcile.PoolSpec {
	specs := make([]reconcile.PoolSpec, 0, len(cfg.NodePools))
	for _, name := range cfg.PoolNames() {
		pool := cfg.NodePools[name]
		specs = append(specs, reconcile.PoolSpec{
			Name:         name,
			JoinKey:      pool.JoinKey(name, cfg.K8s.PoolLabelKey),
			BaseReplicas: pool.Replicas,
		})
	}
	return specs
}
