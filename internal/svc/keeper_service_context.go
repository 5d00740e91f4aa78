package svc

import (
	"context"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"lending-vault-sol/internal/config"
	"lending-vault-sol/internal/logic/grpc"
	"lending-vault-sol/internal/logic/keeper"
	"lending-vault-sol/internal/logic/progress"
	"lending-vault-sol/internal/mq"
	"lending-vault-sol/internal/pkg/logger"
	pkgmq "lending-vault-sol/internal/pkg/mq"
	"lending-vault-sol/internal/pkg/types"
)

// KeeperServiceContext keeper 进程共享的资源
type KeeperServiceContext struct {
	Config    *config.KeeperConfig
	Producer  *kafka.Producer
	Publisher *mq.KafkaPublisher
	Redis     *redis.Client
	Store     *progress.RedisProgressStore
	Rpc       *client.Client
	Registry  *prometheus.Registry
	Metrics   *keeper.Metrics
	Clock     *grpc.SlotClock
	Changes   chan types.Pubkey
}

// NewKeeperServiceContext 创建 keeper 服务上下文
func NewKeeperServiceContext(c *config.KeeperConfig) (*KeeperServiceContext, error) {
	ctx := &KeeperServiceContext{
		Config:   c,
		Rpc:      client.NewClient(c.RpcConf.Endpoint),
		Registry: prometheus.NewRegistry(),
		Clock:    grpc.NewSlotClock(),
		Changes:  make(chan types.Pubkey, 64),
	}
	ctx.Metrics = keeper.NewMetrics(ctx.Registry)

	// 1. Kafka 生产者，未配置 brokers 时只写 Redis
	if c.KafkaProducerConf.Brokers != "" {
		producer, err := pkgmq.NewKafkaProducer(c.KafkaProducerConf)
		if err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		ctx.Producer = producer
		ctx.Publisher = mq.NewKafkaPublisher(producer, time.Duration(c.SendTimeoutMs)*time.Millisecond)
	}

	// 2. Redis 客户端（用于 slot 状态与快照缓存）
	if c.RedisAddr != "" {
		ctx.Redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := ctx.Redis.Ping(pingCtx).Err(); err != nil {
			logger.Errorf("Redis 连接失败: %v", err)
			ctx.Close()
			return nil, err
		}
		ctx.Store = progress.NewRedisProgressStore(ctx.Redis, time.Duration(c.SnapshotTTLSec)*time.Second)
	}

	logger.Infof("keeper 服务上下文初始化完成")
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *KeeperServiceContext) Close() {
	if ctx.Producer != nil {
		ctx.Producer.Flush(3000)
		ctx.Producer.Close()
	}
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}
