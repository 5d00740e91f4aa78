package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"lending-vault-sol/internal/config"
	"lending-vault-sol/internal/pkg/logger"
	"lending-vault-sol/internal/pkg/utils"
)

const (
	defaultBatchSize = 32 * 1024
	defaultLingerMs  = 5
)

// topicSpecs keeper 的 snapshot 与 plan topic 中尚不存在的部分，未配置的 topic 跳过
func topicSpecs(cfg config.KafkaProducerConfig, existing map[string]bool, replicationFactor int) []kafka.TopicSpecification {
	wanted := []struct {
		topic      string
		partitions int
	}{
		{cfg.Topics.Snapshot, cfg.Partitions.Snapshot},
		{cfg.Topics.Plan, cfg.Partitions.Plan},
	}

	var specs []kafka.TopicSpecification
	seen := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		if w.topic == "" || existing[w.topic] || seen[w.topic] {
			continue
		}
		seen[w.topic] = true
		specs = append(specs, kafka.TopicSpecification{
			Topic:             w.topic,
			NumPartitions:     max(1, w.partitions),
			ReplicationFactor: replicationFactor,
		})
	}
	return specs
}

// NewKafkaProducer 按 keeper 的 Kafka 配置建好 topic 并创建生产者
func NewKafkaProducer(cfg config.KafkaProducerConfig) (*kafka.Producer, error) {
	// 创建管理员客户端来管理 topic
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := adminClient.GetMetadata(nil, true, 10000)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	brokerCount := len(meta.Brokers)

	// 单 broker 只能有一个副本
	replicationFactor := 1
	if brokerCount > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] Kafka broker count = %d, using replication factor = %d", brokerCount, replicationFactor)

	existing := make(map[string]bool, len(meta.Topics))
	for _, topic := range meta.Topics {
		existing[topic.Topic] = true
	}

	if specs := topicSpecs(cfg, existing, replicationFactor); len(specs) > 0 {
		results, err := adminClient.CreateTopics(ctx, specs)
		if err != nil {
			return nil, fmt.Errorf("failed to create topics: %w", err)
		}
		for _, result := range results {
			if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
				return nil, fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
			}
			logger.Infof("[mq] topic %s ready", result.Topic)
		}
	}

	localIP, _ := utils.GetLocalIP()
	if localIP == "" {
		localIP = "unknown"
	}

	producer, err := kafka.NewProducer(producerConfig(cfg, fmt.Sprintf("vault-keeper-%s", localIP)))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

// producerConfig 快照与计划都按 vault 地址做 key，必须幂等且有序
func producerConfig(cfg config.KafkaProducerConfig, clientID string) *kafka.ConfigMap {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := cfg.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	return &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         clientID,

		// 明文连接；上生产需要加 security.protocol=SASL_SSL 与 sasl.* 认证项

		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等要求不超过 5

		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":       batchSize,
		"linger.ms":        lingerMs,
		"compression.type": "lz4",

		"message.max.bytes": 2 * 1024 * 1024,
	}
}
