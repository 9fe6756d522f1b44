package metrics

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUndefinedRatio 可分配量为0时空闲比例无定义
var ErrUndefinedRatio = errors.New("free ratio undefined: zero allocatable")

// Ratio 空闲比例；Defined 为 false 时 Value 无意义
type Ratio struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// NewRatio 计算 free/allocatable，allocatable 为0时返回未定义比例
func NewRatio(free, allocatable int64) Ratio {
	if allocatable == 0 {
		return Ratio{}
	}
	return Ratio{Value: float64(free) / float64(allocatable), Defined: true}
}

// Get 返回比例值，未定义时返回 ErrUndefinedRatio
func (r Ratio) Get() (float64, error) {
	if !r.Defined {
		return 0, ErrUndefinedRatio
	}
	return r.Value, nil
}

// String 用于日志输出
func (r Ratio) String() string {
	if !r.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// NodeResources 单个节点的资源核算结果
type NodeResources struct {
	NodeName string `json:"node_name"`
	Pool     string `json:"pool"`

	// CPU（毫核）
	CPUAllocatable int64 `json:"cpu_allocatable_m"`
	CPURequested   int64 `json:"cpu_requested_m"`
	CPUFree        int64 `json:"cpu_free_m"`
	CPUFreeRatio   Ratio `json:"cpu_free_ratio"`

	// 内存（MiB）
	MemoryAllocatable int64 `json:"mem_allocatable_mi"`
	MemoryRequested   int64 `json:"mem_requested_mi"`
	MemoryFree        int64 `json:"mem_free_mi"`
	MemFreeRatio      Ratio `json:"mem_free_ratio"`

	Cordoned           bool `json:"cordoned"`
	PlaceholderRunning bool `json:"placeholder_running"`

	// metrics-server 观测值，仅用于日志
	CPUUsage    *int64 `json:"cpu_usage_m,omitempty"`
	MemoryUsage *int64 `json:"mem_usage_mi,omitempty"`
}

// RatiosDefined CPU和内存比例是否都有定义
func (n *NodeResources) RatiosDefined() bool {
	return n.CPUFreeRatio.Defined && n.MemFreeRatio.Defined
}

// PoolResources 节点池 -> 节点名 -> 资源核算
type PoolResources struct {
	Timestamp time.Time                            `json:"timestamp"`
	Pools     map[string]map[string]*NodeResources `json:"pools"`
}

// NewPoolResources 创建空的核算结果
func NewPoolResources(ts time.Time) *PoolResources {
	return &PoolResources{
		Timestamp: ts,
		Pools:     make(map[string]map[string]*NodeResources),
	}
}

// Add 记录一个节点
func (p *PoolResources) Add(n *NodeResources) {
	nodes, ok := p.Pools[n.Pool]
	if !ok {
		nodes = make(map[string]*NodeResources)
		p.Pools[n.Pool] = nodes
	}
	nodes[n.NodeName] = n
}

// Nodes 返回节点池内按名称排序的节点，池不存在时返回 nil
func (p *PoolResources) Nodes(pool string) []*NodeResources {
	nodes := p.Pools[pool]
	if len(nodes) == 0 {
		return nil
	}
	result := make([]*NodeResources, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NodeName < result[j].NodeName })
	return result
}

// PoolNames 按名称排序的节点池
func (p *PoolResources) PoolNames() []string {
	names := make([]string, 0, len(p.Pools))
	for name := range p.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeCount 所有池的节点总数
func (p *PoolResources) NodeCount() int {
	total := 0
	for _, nodes := range p.Pools {
		total += len(nodes)
	}
	return total
}
