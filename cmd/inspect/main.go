package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/yourusername/node-placeholder-scaler/internal/config"
	"github.com/yourusername/node-placeholder-scaler/internal/k8s"
	"github.com/yourusername/node-placeholder-scaler/internal/metrics"
	"github.com/yourusername/node-placeholder-scaler/internal/metrics/sources"
	"github.com/yourusername/node-placeholder-scaler/internal/reconcile"
	metricstypes "github.com/yourusername/node-placeholder-scaler/pkg/metrics"
)

// inspect 连接集群，打印每个节点池、每个节点的空闲资源和扣减资格，不做任何修改
func main() {
	flags := pflag.NewFlagSet("inspect", pflag.ExitOnError)
	configPath := flags.String("config-file", "config.yaml", "config file path")
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	fmt.Println("🚀 Testing K8s connection...")
	k8sClient, err := k8s.NewClient(&cfg.K8s, logger)
	if err != nil {
		log.Fatalf("Failed to create K8s client: %v", err)
	}
	if err := k8sClient.TestConnection(); err != nil {
		log.Fatalf("Failed to connect to K8s: %v", err)
	}

	var usage metrics.NodeUsageSource
	if cfg.K8s.EnableUsageMetrics {
		usage = sources.NewNodeUsageCollector(k8sClient.Metrics(), logger)
	}
	provider, err := k8s.NewSnapshotProvider(k8sClient.Clientset(), usage, k8s.SnapshotConfig{
		Namespace:                cfg.K8s.Namespace,
		PlaceholderLabelSelector: cfg.K8s.PlaceholderLabelSelector,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create snapshot provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("📊 Fetching cluster snapshot...")
	snapshot, err := provider.FetchSnapshot(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch snapshot: %v", err)
	}
	fmt.Printf("✅ Nodes: %d, pods: %d, placeholder pods: %d\n\n",
		len(snapshot.Nodes), len(snapshot.Pods), len(snapshot.PlaceholderPods))

	strategy, err := reconcile.ParseStrategy(cfg.Strategy)
	if err != nil {
		log.Fatalf("Invalid strategy: %v", err)
	}
	policy := reconcile.Policy{
		Strategy:               strategy,
		CPUThreshold:           cfg.CPUThreshold,
		MemoryThreshold:        cfg.MemoryThreshold,
		SkipCordoned:           cfg.Eligibility.SkipCordoned,
		SkipPlaceholderRunning: cfg.Eligibility.SkipPlaceholderRunning,
	}

	resources := metrics.NewAccountant(cfg.K8s.PoolLabelKey, logger).Account(snapshot)
	printResources(os.Stdout, resources, policy)
}

func printResources(w io.Writer, resources *metricstypes.PoolResources, policy reconcile.Policy) {
	for _, pool := range resources.PoolNames() {
		nodes := resources.Nodes(pool)
		fmt.Fprintf(w, "🏊 Pool %s (%d nodes)\n", pool, len(nodes))
		for _, n := range nodes {
			ok, reason := policy.Eligible(n)
			mark := "❌"
			if ok {
				mark = "✅"
			}
			fmt.Fprintf(w, "   %s %-30s cpu %6dm/%6dm free %-6s mem %7dMi/%7dMi free %-6s %s\n",
				mark, n.NodeName,
				n.CPUFree, n.CPUAllocatable, n.CPUFreeRatio.String(),
				n.MemoryFree, n.MemoryAllocatable, n.MemFreeRatio.String(),
				reason)
		}
	}
}
