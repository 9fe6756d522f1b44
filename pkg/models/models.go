package models

import (
	"time"
)

// UnknownPool 未携带节点池标签的节点归入的保留池
const UnknownPool = "unknown-pool"

// Node 集群节点的基本信息（资源量保留原始字符串，由核算模块解析）
type Node struct {
	Name              string            `json:"name"`
	Labels            map[string]string `json:"labels"`
	AllocatableCPU    string            `json:"allocatable_cpu"`
	AllocatableMemory string            `json:"allocatable_memory"`
	Unschedulable     bool              `json:"unschedulable"` // 是否被cordon
}

// Pod 调度到节点上的Pod及其资源请求
type Pod struct {
	Name       string             `json:"name"`
	Namespace  string             `json:"namespace"`
	NodeName   string             `json:"node_name"`
	Phase      string             `json:"phase"`
	Labels     map[string]string  `json:"labels"`
	Containers []ContainerRequest `json:"containers"`
}

// ContainerRequest 容器的资源请求
type ContainerRequest struct {
	Name   string `json:"name"`
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}

// NodeUsage metrics-server 上报的节点实际使用量
type NodeUsage struct {
	CPUMilli  int64 `json:"cpu_milli"`
	MemoryMiB int64 `json:"memory_mib"`
}

// ClusterSnapshot 一个周期内使用的集群状态快照，获取后只读
type ClusterSnapshot struct {
	FetchedAt       time.Time            `json:"fetched_at"`
	Nodes           []Node               `json:"nodes"`
	Pods            []Pod                `json:"pods"`
	PlaceholderPods []Pod                `json:"placeholder_pods"`
	Usage           map[string]NodeUsage `json:"usage,omitempty"`
}

// IsTerminal Pod是否已经结束（不再占用资源）
func (p Pod) IsTerminal() bool {
	return p.Phase == "Succeeded" || p.Phase == "Failed"
}

// CalendarEvent 日历事件，描述字段承载节点池副本数覆盖
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// String 用于日志输出
func (e CalendarEvent) String() string {
	return e.Summary + " [" + e.Start.Format(time.RFC3339) + " - " + e.End.Format(time.RFC3339) + "]"
}

// ReconciliationResult 单个节点池的调和结果，仅用于观测
type ReconciliationResult struct {
	Pool            string    `json:"pool"`
	JoinKey         string    `json:"join_key"`
	TargetReplicas  int       `json:"target_replicas"`
	Desired         int       `json:"desired"`
	BaseReplicas    int       `json:"base_replicas"`
	Override        *int      `json:"override,omitempty"`
	Reduction       int       `json:"reduction"`
	NodesConsidered int       `json:"nodes_considered"`
	EligibleNodes   []string  `json:"eligible_nodes"`
	Strategy        string    `json:"strategy"`
	Timestamp       time.Time `json:"timestamp"`
}
