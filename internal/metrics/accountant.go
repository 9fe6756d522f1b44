package metrics

import (
	"github.com/sirupsen/logrus"
	metricstypes "github.com/yourusername/node-placeholder-scaler/pkg/metrics"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"
)

// DefaultPoolLabelKey 默认的节点池标签
const DefaultPoolLabelKey = "hub.jupyter.org/pool-name"

// Accountant 根据集群快照计算每个节点池、每个节点的空闲资源
type Accountant struct {
	poolLabelKey string
	logger       logrus.FieldLogger
}

// NewAccountant 创建资源核算器
func NewAccountant(poolLabelKey string, logger logrus.FieldLogger) *Accountant {
	if poolLabelKey == "" {
		poolLabelKey = DefaultPoolLabelKey
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	return &Accountant{poolLabelKey: poolLabelKey, logger: logger}
}

// NodePool 返回节点所属的节点池，无标签时归入 unknown-pool
func NodePool(labels map[string]string, labelKey string) string {
	if pool, ok := labels[labelKey]; ok && pool != "" {
		return pool
	}
	return models.UnknownPool
}

// Account 核算快照，不修改快照也不访问集群
func (a *Accountant) Account(snapshot *models.ClusterSnapshot) *metricstypes.PoolResources {
	result := metricstypes.NewPoolResources(snapshot.FetchedAt)

	type requested struct {
		cpu, mem int64
	}
	requestedByNode := make(map[string]*requested, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		requestedByNode[node.Name] = &requested{}
	}

	for _, pod := range snapshot.Pods {
		if pod.NodeName == "" || pod.IsTerminal() {
			continue
		}
		req, ok := requestedByNode[pod.NodeName]
		if !ok {
			a.logger.WithFields(logrus.Fields{
				"pod":  pod.Namespace + "/" + pod.Name,
				"node": pod.NodeName,
			}).Debug("Pod bound to a node missing from the snapshot, ignoring")
			continue
		}
		for _, c := range pod.Containers {
			req.cpu += a.parseOrZero(ParseCPU, c.CPU, "cpu request", pod.NodeName, pod.Namespace+"/"+pod.Name)
			req.mem += a.parseOrZero(ParseMemory, c.Memory, "memory request", pod.NodeName, pod.Namespace+"/"+pod.Name)
		}
	}

	placeholderNodes := make(map[string]bool)
	for _, pod := range snapshot.PlaceholderPods {
		if pod.NodeName != "" && pod.Phase == "Running" {
			placeholderNodes[pod.NodeName] = true
		}
	}

	for _, node := range snapshot.Nodes {
		pool := NodePool(node.Labels, a.poolLabelKey)

		cpuAlloc := a.parseOrZero(ParseCPU, node.AllocatableCPU, "allocatable cpu", node.Name, "")
		memAlloc := a.parseOrZero(ParseMemory, node.AllocatableMemory, "allocatable memory", node.Name, "")
		req := requestedByNode[node.Name]

		nr := &metricstypes.NodeResources{
			NodeName:           node.Name,
			Pool:               pool,
			CPUAllocatable:     cpuAlloc,
			CPURequested:       req.cpu,
			CPUFree:            cpuAlloc - req.cpu,
			CPUFreeRatio:       metricstypes.NewRatio(cpuAlloc-req.cpu, cpuAlloc),
			MemoryAllocatable:  memAlloc,
			MemoryRequested:    req.mem,
			MemoryFree:         memAlloc - req.mem,
			MemFreeRatio:       metricstypes.NewRatio(memAlloc-req.mem, memAlloc),
			Cordoned:           node.Unschedulable,
			PlaceholderRunning: placeholderNodes[node.Name],
		}

		if usage, ok := snapshot.Usage[node.Name]; ok {
			cpu, mem := usage.CPUMilli, usage.MemoryMiB
			nr.CPUUsage = &cpu
			nr.MemoryUsage = &mem
		}

		if !nr.RatiosDefined() {
			a.logger.WithFields(logrus.Fields{"node": node.Name, "pool": pool}).
				Warn("Node has zero allocatable cpu or memory, free ratio undefined")
		}

		result.Add(nr)
	}

	a.logger.Debugf("Accounted %d nodes in %d pools", result.NodeCount(), len(result.Pools))
	return result
}

// parseOrZero 解析失败时记录日志并按0处理；空值表示未设置
func (a *Accountant) parseOrZero(parse func(string) (int64, error), raw, what, node, pod string) int64 {
	if raw == "" {
		return 0
	}
	v, err := parse(raw)
	if err != nil {
		fields := logrus.Fields{"node": node, "resource": what}
		if pod != "" {
			fields["pod"] = pod
		}
		a.logger.WithFields(fields).Warnf("Treating malformed quantity as zero: %v", err)
		return 0
	}
	return v
}
