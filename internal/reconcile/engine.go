package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	metricstypes "github.com/yourusername/node-placeholder-scaler/pkg/metrics"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"
)

// Strategy 判断节点资源是否充足的策略
type Strategy string

const (
	StrategyCPU      Strategy = "cpu"
	StrategyMemory   Strategy = "mem"
	StrategyBalanced Strategy = "balanced"
)

// ParseStrategy 解析策略名称
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyCPU:
		return StrategyCPU, nil
	case StrategyMemory:
		return StrategyMemory, nil
	case StrategyBalanced:
		return StrategyBalanced, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want cpu, mem or balanced)", s)
	}
}

// Policy 本周期的资格判断参数，对所有节点池相同
type Policy struct {
	Strategy        Strategy
	CPUThreshold    float64
	MemoryThreshold float64

	// SkipCordoned/SkipPlaceholderRunning 为 true 时，被cordon或已运行占位Pod的节点不参与扣减
	SkipCordoned           bool
	SkipPlaceholderRunning bool
}

// DefaultPolicy 默认参数：balanced，阈值0.2
func DefaultPolicy() Policy {
	return Policy{
		Strategy:               StrategyBalanced,
		CPUThreshold:           0.2,
		MemoryThreshold:        0.2,
		SkipCordoned:           true,
		SkipPlaceholderRunning: true,
	}
}

// Eligible 节点是否可以抵扣一个占位副本，返回原因用于日志
func (p Policy) Eligible(n *metricstypes.NodeResources) (bool, string) {
	if p.SkipCordoned && n.Cordoned {
		return false, "node is cordoned"
	}
	if p.SkipPlaceholderRunning && n.PlaceholderRunning {
		return false, "placeholder pod already running"
	}

	// 任一资源可分配量为0时，任何策略下都不参与扣减
	if !n.RatiosDefined() {
		return false, metricstypes.ErrUndefinedRatio.Error()
	}
	cpu := n.CPUFreeRatio.Value
	mem := n.MemFreeRatio.Value

	switch p.Strategy {
	case StrategyCPU:
		if cpu > p.CPUThreshold {
			return true, fmt.Sprintf("cpu free ratio %.2f > %.2f", cpu, p.CPUThreshold)
		}
		return false, fmt.Sprintf("cpu free ratio %.2f <= %.2f", cpu, p.CPUThreshold)
	case StrategyMemory:
		if mem > p.MemoryThreshold {
			return true, fmt.Sprintf("memory free ratio %.2f > %.2f", mem, p.MemoryThreshold)
		}
		return false, fmt.Sprintf("memory free ratio %.2f <= %.2f", mem, p.MemoryThreshold)
	case StrategyBalanced:
		if cpu > p.CPUThreshold && mem > p.MemoryThreshold {
			return true, fmt.Sprintf("cpu %.2f > %.2f and memory %.2f > %.2f", cpu, p.CPUThreshold, mem, p.MemoryThreshold)
		}
		return false, fmt.Sprintf("cpu %.2f / memory %.2f not both above %.2f / %.2f", cpu, mem, p.CPUThreshold, p.MemoryThreshold)
	default:
		return false, fmt.Sprintf("unknown strategy %q", p.Strategy)
	}
}

// PoolSpec 节点池的调和输入
type PoolSpec struct {
	Name         string
	JoinKey      string // 与节点标签值匹配的键
	BaseReplicas int
}

// Engine 调和引擎：覆盖值 + 空闲资源 -> 目标副本数
type Engine struct {
	policy Policy
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewEngine 创建调和引擎
func NewEngine(policy Policy, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	return &Engine{policy: policy, logger: logger, now: time.Now}
}

// Reconcile 计算单个节点池的目标副本数
func (e *Engine) Reconcile(pool PoolSpec, override *int, nodes []*metricstypes.NodeResources) models.ReconciliationResult {
	log := e.logger.WithField("pool", pool.Name)

	desired := pool.BaseReplicas
	if override != nil {
		desired = *override
	}

	eligible := []string{}
	for _, n := range nodes {
		ok, reason := e.policy.Eligible(n)
		log.WithFields(logrus.Fields{
			"node":           n.NodeName,
			"cpu_free_ratio": n.CPUFreeRatio.String(),
			"mem_free_ratio": n.MemFreeRatio.String(),
			"eligible":       ok,
		}).Info(reason)
		if ok {
			eligible = append(eligible, n.NodeName)
		}
	}

	target := desired - len(eligible)
	if target < 0 {
		target = 0
	}

	result := models.ReconciliationResult{
		Pool:            pool.Name,
		JoinKey:         pool.JoinKey,
		TargetReplicas:  target,
		Desired:         desired,
		BaseReplicas:    pool.BaseReplicas,
		Reduction:       len(eligible),
		NodesConsidered: len(nodes),
		EligibleNodes:   eligible,
		Strategy:        string(e.policy.Strategy),
		Timestamp:       e.now(),
	}
	if override != nil {
		v := *override
		result.Override = &v
	}

	log.WithFields(logrus.Fields{
		"base":      pool.BaseReplicas,
		"desired":   desired,
		"reduction": result.Reduction,
		"target":    target,
	}).Info("Computed placeholder replicas")

	return result
}

// ReconcileAll 对所有配置的节点池执行调和，按名称排序；unknown-pool 不会成为目标
func (e *Engine) ReconcileAll(pools []PoolSpec, overrides map[string]int, resources *metricstypes.PoolResources) []models.ReconciliationResult {
	sorted := append([]PoolSpec(nil), pools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	results := make([]models.ReconciliationResult, 0, len(sorted))
	for _, pool := range sorted {
		if pool.Name == models.UnknownPool {
			e.logger.WithField("pool", pool.Name).Warn("Reserved pool name cannot be reconciled, skipping")
			continue
		}

		var override *int
		if v, ok := overrides[pool.Name]; ok {
			override = &v
		}

		var nodes []*metricstypes.NodeResources
		if resources != nil && pool.JoinKey != models.UnknownPool {
			nodes = resources.Nodes(pool.JoinKey)
		}
		if len(nodes) == 0 {
			e.logger.WithFields(logrus.Fields{"pool": pool.Name, "join_key": pool.JoinKey}).
				Info("No live nodes found for pool")
		}

		results = append(results, e.Reconcile(pool, override, nodes))
	}
	return results
}
