package sources

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsclientset "k8s.io/metrics/pkg/client/clientset/versioned"
)

const bytesPerMiB = 1024 * 1024

// NodeUsageCollector 节点使用量采集器（使用K8s Metrics Server）
type NodeUsageCollector struct {
	metricsClient metricsclientset.Interface
	logger        logrus.FieldLogger
}

// NewNodeUsageCollector 创建节点使用量采集器
func NewNodeUsageCollector(metricsClient metricsclientset.Interface, logger logrus.FieldLogger) *NodeUsageCollector {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}

	return &NodeUsageCollector{
		metricsClient: metricsClient,
		logger:        logger,
	}
}

// CollectNodeUsage 采集所有节点的CPU（毫核）和内存（MiB）使用量
func (c *NodeUsageCollector) CollectNodeUsage(ctx context.Context) (map[string]models.NodeUsage, error) {
	c.logger.Debug("Collecting node usage from metrics server...")

	nodeMetrics, err := c.metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list node metrics: %w", err)
	}

	result := make(map[string]models.NodeUsage, len(nodeMetrics.Items))
	for i := range nodeMetrics.Items {
		nm := &nodeMetrics.Items[i]
		result[nm.Name] = models.NodeUsage{
			CPUMilli:  nm.Usage.Cpu().MilliValue(),
			MemoryMiB: nm.Usage.Memory().Value() / bytesPerMiB,
		}
	}

	c.logger.Debugf("Collected usage for %d nodes", len(result))
	return result, nil
}
