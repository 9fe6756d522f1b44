package metrics

import (
	"context"

	"github.com/yourusername/node-placeholder-scaler/pkg/models"
)

// SnapshotSource 集群快照数据源接口
type SnapshotSource interface {
	// FetchSnapshot 获取一次完整的集群快照（节点、Pod、占位Pod）
	FetchSnapshot(ctx context.Context) (*models.ClusterSnapshot, error)
}

// NodeUsageSource 节点实际使用量数据源接口（metrics-server）
type NodeUsageSource interface {
	// CollectNodeUsage 采集所有节点的使用量
	CollectNodeUsage(ctx context.Context) (map[string]models.NodeUsage, error)
}
