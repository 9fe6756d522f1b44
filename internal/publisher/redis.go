package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/internal/config"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"
)

// listClient go-redis中发布结果需要的命令，*redis.Client 满足该接口
type listClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisPublisher 把每个周期的调和结果写入Redis列表，最新的在表头
type RedisPublisher struct {
	client     listClient
	key        string
	maxEntries int64
	logger     logrus.FieldLogger
}

// NewRedisPublisher 根据配置创建发布器；未配置地址时返回 nil（不发布）
func NewRedisPublisher(cfg config.RedisConfig, logger logrus.FieldLogger) *RedisPublisher {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisPublisher(rdb, cfg.Key, cfg.MaxEntries, logger)
}

func newRedisPublisher(client listClient, key string, maxEntries int64, logger logrus.FieldLogger) *RedisPublisher {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	return &RedisPublisher{client: client, key: key, maxEntries: maxEntries, logger: logger}
}

// Publish 发布一个周期的结果；nil 发布器什么都不做
func (p *RedisPublisher) Publish(ctx context.Context, results []models.ReconciliationResult) error {
	if p == nil || len(results) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(results))
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result for pool %s: %w", r.Pool, err)
		}
		values = append(values, data)
	}

	if err := p.client.LPush(ctx, p.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to push results to %s: %w", p.key, err)
	}
	if p.maxEntries > 0 {
		if err := p.client.LTrim(ctx, p.key, 0, p.maxEntries-1).Err(); err != nil {
			return fmt.Errorf("failed to trim %s: %w", p.key, err)
		}
	}

	p.logger.WithField("key", p.key).Debugf("Published %d reconciliation results", len(results))
	return nil
}
