package manifest

import (
	"fmt"
	"os"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

// PoolLabel 标记占位Deployment所属的节点池
const PoolLabel = "node-placeholder-scaler/pool"

// NameSuffix 占位Deployment名称后缀
const NameSuffix = "-placeholder"

// DeploymentName 节点池对应的占位Deployment名称
func DeploymentName(pool string) string {
	return pool + NameSuffix
}

// LoadTemplate 从YAML文件加载占位Deployment模板
func LoadTemplate(path string) (*appsv1.Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return ParseTemplate(data)
}

// ParseTemplate 解析Deployment模板，至少需要一个容器
func ParseTemplate(data []byte) (*appsv1.Deployment, error) {
	var deployment appsv1.Deployment
	if err := yaml.UnmarshalStrict(data, &deployment); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if deployment.Kind != "" && deployment.Kind != "Deployment" {
		return nil, fmt.Errorf("template kind is %q, expected Deployment", deployment.Kind)
	}
	if len(deployment.Spec.Template.Spec.Containers) == 0 {
		return nil, fmt.Errorf("template has no containers")
	}
	return &deployment, nil
}

// Build 基于模板生成节点池的占位Deployment；模板本身不会被修改
func Build(template *appsv1.Deployment, pool string, nodeSelector map[string]string, resources corev1.ResourceRequirements, replicas int32) *appsv1.Deployment {
	deployment := template.DeepCopy()

	deployment.Name = DeploymentName(pool)
	if deployment.Labels == nil {
		deployment.Labels = map[string]string{}
	}
	deployment.Labels[PoolLabel] = pool

	deployment.Spec.Replicas = &replicas

	selector := make(map[string]string, len(nodeSelector))
	for k, v := range nodeSelector {
		selector[k] = v
	}
	deployment.Spec.Template.Spec.NodeSelector = selector

	deployment.Spec.Template.Spec.Containers[0].Resources = *resources.DeepCopy()

	return deployment
}

// Render 将Deployment序列化为YAML，用于dry-run输出
func Render(deployment *appsv1.Deployment) ([]byte, error) {
	return yaml.Marshal(deployment)
}
