package k8s

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/internal/config"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclientset "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Client K8s客户端封装
type Client struct {
	clientset     kubernetes.Interface
	dynamic       dynamic.Interface
	metricsClient metricsclientset.Interface
	logger        logrus.FieldLogger
}

// NewClient 创建新的K8s客户端
func NewClient(cfg *config.K8sConfig, logger logrus.FieldLogger) (*Client, error) {
	var restConfig *rest.Config
	var err error

	// 如果有kubeconfig文件，使用文件配置
	if cfg.Kubeconfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	} else {
		// 否则使用in-cluster配置，失败时回退到默认kubeconfig
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
			restConfig, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create k8s config: %w", err)
	}

	// 创建clientset
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	metricsClient, err := metricsclientset.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}

	return &Client{
		clientset:     clientset,
		dynamic:       dynamicClient,
		metricsClient: metricsClient,
		logger:        logger,
	}, nil
}

// TestConnection 测试K8s连接
func (c *Client) TestConnection() error {
	// 尝试获取集群版本
	version, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return fmt.Errorf("failed to get server version: %w", err)
	}

	c.logger.Infof("Connected to Kubernetes cluster: %s", version.String())
	return nil
}

// Clientset 返回typed客户端
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// Dynamic 返回dynamic客户端
func (c *Client) Dynamic() dynamic.Interface {
	return c.dynamic
}

// Metrics 返回metrics-server客户端
func (c *Client) Metrics() metricsclientset.Interface {
	return c.metricsClient
}
