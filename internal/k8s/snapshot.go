package k8s

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/internal/metrics"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
)

// SnapshotConfig 快照采集配置
type SnapshotConfig struct {
	Namespace                string // 占位Pod所在的namespace
	PlaceholderLabelSelector string // 占位Pod的标签选择器
	Timeout                  time.Duration
}

// SnapshotProvider 通过API Server获取集群快照
type SnapshotProvider struct {
	clientset kubernetes.Interface
	usage     metrics.NodeUsageSource
	config    SnapshotConfig
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewSnapshotProvider 创建快照提供者；usage 为 nil 时不采集使用量
func NewSnapshotProvider(clientset kubernetes.Interface, usage metrics.NodeUsageSource, cfg SnapshotConfig, logger logrus.FieldLogger) (*SnapshotProvider, error) {
	if cfg.PlaceholderLabelSelector != "" {
		if _, err := labels.Parse(cfg.PlaceholderLabelSelector); err != nil {
			return nil, fmt.Errorf("invalid placeholder label selector %q: %w", cfg.PlaceholderLabelSelector, err)
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}

	return &SnapshotProvider{
		clientset: clientset,
		usage:     usage,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// FetchSnapshot 获取节点、全部Pod和占位Pod
func (p *SnapshotProvider) FetchSnapshot(ctx context.Context) (*models.ClusterSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	snapshot := &models.ClusterSnapshot{FetchedAt: p.now()}

	// 1. 节点
	nodes, err := p.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	for i := range nodes.Items {
		snapshot.Nodes = append(snapshot.Nodes, convertNodeToModel(&nodes.Items[i]))
	}

	// 2. 所有namespace的Pod
	pods, err := p.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	for i := range pods.Items {
		snapshot.Pods = append(snapshot.Pods, convertPodToModel(&pods.Items[i]))
	}

	// 3. 占位Pod
	if p.config.PlaceholderLabelSelector != "" {
		placeholders, err := p.clientset.CoreV1().Pods(p.config.Namespace).List(ctx, metav1.ListOptions{
			LabelSelector: p.config.PlaceholderLabelSelector,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list placeholder pods: %w", err)
		}
		for i := range placeholders.Items {
			snapshot.PlaceholderPods = append(snapshot.PlaceholderPods, convertPodToModel(&placeholders.Items[i]))
		}
	}

	// 4. 使用量只用于日志，失败不影响本周期
	if p.usage != nil {
		usage, err := p.usage.CollectNodeUsage(ctx)
		if err != nil {
			p.logger.Warnf("Failed to collect node usage: %v (continuing without it)", err)
		} else {
			snapshot.Usage = usage
		}
	}

	p.logger.Debugf("Fetched snapshot: %d nodes, %d pods, %d placeholder pods",
		len(snapshot.Nodes), len(snapshot.Pods), len(snapshot.PlaceholderPods))
	return snapshot, nil
}
