package k8s

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/internal/manifest"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

var deploymentGVR = schema.GroupVersionResource{
	Group:    "apps",
	Version:  "v1",
	Resource: "deployments",
}

// DeploymentSink 将占位Deployment写入集群：不存在则创建，存在则更新
type DeploymentSink struct {
	dynamic   dynamic.Interface
	namespace string
	logger    logrus.FieldLogger
}

// NewDeploymentSink 创建Deployment写入器；namespace 用于模板未指定namespace的情况
func NewDeploymentSink(dynamic dynamic.Interface, namespace string, logger logrus.FieldLogger) *DeploymentSink {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	return &DeploymentSink{dynamic: dynamic, namespace: namespace, logger: logger}
}

// Apply 写入Deployment，重复写入相同内容是幂等的
func (s *DeploymentSink) Apply(ctx context.Context, deployment *appsv1.Deployment) error {
	obj, err := toUnstructured(deployment)
	if err != nil {
		return err
	}

	namespace := obj.GetNamespace()
	if namespace == "" {
		namespace = s.namespace
		obj.SetNamespace(namespace)
	}
	client := s.dynamic.Resource(deploymentGVR).Namespace(namespace)
	log := s.logger.WithField("deployment", namespace+"/"+obj.GetName())

	existing, err := client.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := client.Create(ctx, obj, metav1.CreateOptions{FieldManager: fieldManager}); err != nil {
			return fmt.Errorf("create deployment %s: %w", obj.GetName(), err)
		}
		log.Info("deployment created")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get deployment %s: %w", obj.GetName(), err)
	}

	obj.SetResourceVersion(existing.GetResourceVersion())
	obj.SetUID(existing.GetUID())
	if _, err := client.Update(ctx, obj, metav1.UpdateOptions{FieldManager: fieldManager}); err != nil {
		return fmt.Errorf("update deployment %s: %w", obj.GetName(), err)
	}
	log.Info("deployment configured")
	return nil
}

const fieldManager = "node-placeholder-scaler"

func toUnstructured(deployment *appsv1.Deployment) (*unstructured.Unstructured, error) {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(deployment)
	if err != nil {
		return nil, fmt.Errorf("convert deployment %s: %w", deployment.Name, err)
	}
	obj := &unstructured.Unstructured{Object: content}
	obj.SetAPIVersion("apps/v1")
	obj.SetKind("Deployment")
	// status 由控制器维护
	unstructured.RemoveNestedField(obj.Object, "status")
	return obj, nil
}

// DryRunSink 只输出渲染后的YAML，不修改集群
type DryRunSink struct {
	logger logrus.FieldLogger
}

// NewDryRunSink 创建dry-run写入器
func NewDryRunSink(logger logrus.FieldLogger) *DryRunSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &DryRunSink{logger: logger}
}

// Apply 记录渲染结果
func (s *DryRunSink) Apply(_ context.Context, deployment *appsv1.Deployment) error {
	out, err := manifest.Render(deployment)
	if err != nil {
		return fmt.Errorf("render deployment %s: %w", deployment.Name, err)
	}
	s.logger.WithField("deployment", deployment.Name).Infof("dry-run, not applying:\n%s", out)
	return nil
}
