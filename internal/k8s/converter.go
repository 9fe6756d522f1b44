package k8s

import (
	"github.com/yourusername/node-placeholder-scaler/pkg/models"

	corev1 "k8s.io/api/core/v1"
)

// convertNodeToModel 将K8s Node对象转换为模型
func convertNodeToModel(node *corev1.Node) models.Node {
	n := models.Node{
		Name:          node.Name,
		Labels:        copyLabels(node.Labels),
		Unschedulable: node.Spec.Unschedulable,
	}

	if q, ok := node.Status.Allocatable[corev1.ResourceCPU]; ok {
		n.AllocatableCPU = q.String()
	}
	if q, ok := node.Status.Allocatable[corev1.ResourceMemory]; ok {
		n.AllocatableMemory = q.String()
	}

	return n
}

// convertPodToModel 将K8s Pod对象转换为模型，只保留普通容器的资源请求
func convertPodToModel(pod *corev1.Pod) models.Pod {
	p := models.Pod{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		NodeName:  pod.Spec.NodeName,
		Phase:     string(pod.Status.Phase),
		Labels:    copyLabels(pod.Labels),
	}

	for _, container := range pod.Spec.Containers {
		req := models.ContainerRequest{Name: container.Name}
		if q, ok := container.Resources.Requests[corev1.ResourceCPU]; ok {
			req.CPU = q.String()
		}
		if q, ok := container.Resources.Requests[corev1.ResourceMemory]; ok {
			req.Memory = q.String()
		}
		p.Containers = append(p.Containers, req)
	}

	return p
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
