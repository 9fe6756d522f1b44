package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// keyDelimiter 标签键里包含"."，不能用viper默认的分隔符
const keyDelimiter = "::"

// Config 应用配置，每个周期重新加载
type Config struct {
	CalendarURL     string                    `mapstructure:"calendarUrl" validate:"omitempty,url"`
	NodePools       map[string]NodePoolConfig `mapstructure:"nodePools" validate:"dive"`
	CPUThreshold    float64                   `mapstructure:"cpuThreshold" validate:"gte=0,lt=1"`
	MemoryThreshold float64                   `mapstructure:"memoryThreshold" validate:"gte=0,lt=1"`
	Strategy        string                    `mapstructure:"strategy" validate:"oneof=cpu mem balanced"`
	Interval        int                       `mapstructure:"interval" validate:"gt=0"` // 周期间隔（秒）
	Eligibility     EligibilityConfig         `mapstructure:"eligibility"`
	K8s             K8sConfig                 `mapstructure:"k8s"`
	Redis           RedisConfig               `mapstructure:"redis"`
	Logging         LoggingConfig             `mapstructure:"logging"`
}

// NodePoolConfig 节点池配置
type NodePoolConfig struct {
	NodeSelector map[string]string `mapstructure:"nodeSelector" validate:"required,min=1"`
	Replicas     int               `mapstructure:"replicas" validate:"gte=0,lte=2147483647"`
	Resources    ResourceConfig    `mapstructure:"resources"`
}

// ResourceConfig 占位容器的资源配置
type ResourceConfig struct {
	Requests map[string]string `mapstructure:"requests"`
	Limits   map[string]string `mapstructure:"limits"`
}

// EligibilityConfig 节点扣减资格的开关
type EligibilityConfig struct {
	SkipCordoned           bool `mapstructure:"skipCordoned"`
	SkipPlaceholderRunning bool `mapstructure:"skipPlaceholderRunning"`
}

// K8sConfig K8s配置
type K8sConfig struct {
	Kubeconfig               string `mapstructure:"kubeconfig"`
	Namespace                string `mapstructure:"namespace" validate:"required"`
	PoolLabelKey             string `mapstructure:"nodePoolSelectorKey" validate:"required"`
	PlaceholderLabelSelector string `mapstructure:"placeholderPodLabelSelector"`
	TemplateFile             string `mapstructure:"placeholderTemplateFile" validate:"required"`
	EnableUsageMetrics       bool   `mapstructure:"enableUsageMetrics"`
	DryRun                   bool   `mapstructure:"dryRun"`
}

// RedisConfig Redis配置，Addr 为空时不发布调和结果
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db" validate:"gte=0"`
	Key        string `mapstructure:"key" validate:"required_with=Addr"`
	MaxEntries int64  `mapstructure:"maxEntries" validate:"gte=0"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// flagKeys 命令行参数 -> 配置键
var flagKeys = map[string]string{
	"cpu-threshold":                  "cpuThreshold",
	"memory-threshold":               "memoryThreshold",
	"strategy":                       "strategy",
	"interval":                       "interval",
	"kubeconfig":                     "k8s::kubeconfig",
	"namespace":                      "k8s::namespace",
	"node-pool-selector-key":         "k8s::nodePoolSelectorKey",
	"placeholder-pod-label-selector": "k8s::placeholderPodLabelSelector",
	"placeholder-template-file":      "k8s::placeholderTemplateFile",
	"enable-usage-metrics":           "k8s::enableUsageMetrics",
	"dry-run":                        "k8s::dryRun",
	"log-level":                      "logging::level",
}

// RegisterFlags 注册可以被配置文件覆盖的命令行参数
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Float64("cpu-threshold", 0.2, "CPU free ratio above which a node needs no placeholder")
	fs.Float64("memory-threshold", 0.2, "memory free ratio above which a node needs no placeholder")
	fs.String("strategy", "balanced", "free capacity strategy: cpu, mem or balanced")
	fs.Int("interval", 60, "seconds between reconciliation cycles")
	fs.String("kubeconfig", "", "path to kubeconfig (in-cluster config when empty)")
	fs.String("namespace", "node-placeholder", "namespace of the placeholder deployments")
	fs.String("node-pool-selector-key", "hub.jupyter.org/pool-name", "node label that names the node pool")
	fs.String("placeholder-pod-label-selector", "app=node-placeholder-scaler,component=placeholder", "label selector of placeholder pods")
	fs.String("placeholder-template-file", "placeholder-template.yaml", "placeholder deployment template")
	fs.Bool("enable-usage-metrics", false, "log observed node usage from metrics-server")
	fs.Bool("dry-run", false, "log rendered deployments instead of applying them")
	fs.String("log-level", "info", "log level")
}

// Load 加载配置文件；flags 可为 nil
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取环境变量
	v.SetEnvPrefix("PLACEHOLDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := restoreSelectorKeys(configPath, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// restoreSelectorKeys viper 会把所有键转成小写，而节点标签键区分大小写，
// 所以 nodeSelector 从原文件重新读取
func restoreSelectorKeys(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw struct {
		NodePools map[string]struct {
			NodeSelector map[string]string `yaml:"nodeSelector"`
		} `yaml:"nodePools"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse node pools: %w", err)
	}

	for name, pool := range raw.NodePools {
		key := strings.ToLower(name)
		cfg, ok := config.NodePools[key]
		if !ok || len(pool.NodeSelector) == 0 {
			continue
		}
		cfg.NodeSelector = pool.NodeSelector
		config.NodePools[key] = cfg
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("cpuThreshold", 0.2)
	v.SetDefault("memoryThreshold", 0.2)
	v.SetDefault("strategy", "balanced")
	v.SetDefault("interval", 60)

	v.SetDefault("eligibility::skipCordoned", true)
	v.SetDefault("eligibility::skipPlaceholderRunning", true)

	v.SetDefault("k8s::kubeconfig", "")
	v.SetDefault("k8s::namespace", "node-placeholder")
	v.SetDefault("k8s::nodePoolSelectorKey", "hub.jupyter.org/pool-name")
	v.SetDefault("k8s::placeholderPodLabelSelector", "app=node-placeholder-scaler,component=placeholder")
	v.SetDefault("k8s::placeholderTemplateFile", "placeholder-template.yaml")
	v.SetDefault("k8s::enableUsageMetrics", false)
	v.SetDefault("k8s::dryRun", false)

	v.SetDefault("redis::addr", "")
	v.SetDefault("redis::db", 0)
	v.SetDefault("redis::key", "node-placeholder-scaler:results")
	v.SetDefault("redis::maxEntries", 100)

	v.SetDefault("logging::level", "info")
	v.SetDefault("logging::format", "text")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for name, pool := range c.NodePools {
		if _, err := pool.Resources.Requirements(); err != nil {
			return fmt.Errorf("%w: node pool %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// PoolNames 按名称排序的节点池列表
func (c *Config) PoolNames() []string {
	names := make([]string, 0, len(c.NodePools))
	for name := range c.NodePools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JoinKey 节点池与节点标签值对应的键：nodeSelector 中的池标签值，缺失时使用池名称
func (p NodePoolConfig) JoinKey(poolName, labelKey string) string {
	if v, ok := p.NodeSelector[labelKey]; ok && v != "" {
		return v
	}
	return poolName
}

// Requirements 转换为容器资源需求
func (r ResourceConfig) Requirements() (corev1.ResourceRequirements, error) {
	requests, err := toResourceList(r.Requests)
	if err != nil {
		return corev1.ResourceRequirements{}, fmt.Errorf("requests: %w", err)
	}
	limits, err := toResourceList(r.Limits)
	if err != nil {
		return corev1.ResourceRequirements{}, fmt.Errorf("limits: %w", err)
	}
	return corev1.ResourceRequirements{Requests: requests, Limits: limits}, nil
}

func toResourceList(in map[string]string) (corev1.ResourceList, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(corev1.ResourceList, len(in))
	for name, value := range in {
		q, err := resource.ParseQuantity(value)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", name, value, err)
		}
		out[corev1.ResourceName(name)] = q
	}
	return out, nil
}
