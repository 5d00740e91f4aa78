package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/config"
)

func kafkaConf() config.KafkaProducerConfig {
	return config.KafkaProducerConfig{
		Brokers:    "b1:9092,b2:9092",
		Topics:     config.KafkaTopics{Snapshot: "vault-snapshot", Plan: "vault-plan"},
		Partitions: config.KafkaPartitions{Snapshot: 4, Plan: 2},
	}
}

func TestTopicSpecs_FromKeeperTopics(t *testing.T) {
	specs := topicSpecs(kafkaConf(), nil, 2)
	require.Len(t, specs, 2)
	assert.Equal(t, "vault-snapshot", specs[0].Topic)
	assert.Equal(t, 4, specs[0].NumPartitions)
	assert.Equal(t, "vault-plan", specs[1].Topic)
	assert.Equal(t, 2, specs[1].NumPartitions)
	assert.Equal(t, 2, specs[1].ReplicationFactor)
}

func TestTopicSpecs_SkipsExistingAndEmpty(t *testing.T) {
	c := kafkaConf()
	specs := topicSpecs(c, map[string]bool{"vault-snapshot": true}, 1)
	require.Len(t, specs, 1)
	assert.Equal(t, "vault-plan", specs[0].Topic)

	c.Topics.Plan = ""
	assert.Empty(t, topicSpecs(c, map[string]bool{"vault-snapshot": true}, 1))

	// 两个 topic 同名只建一次，分区数至少为 1
	c.Topics = config.KafkaTopics{Snapshot: "vault", Plan: "vault"}
	c.Partitions = config.KafkaPartitions{}
	specs = topicSpecs(c, nil, 1)
	require.Len(t, specs, 1)
	assert.Equal(t, 1, specs[0].NumPartitions)
}

func TestProducerConfig(t *testing.T) {
	c := kafkaConf()
	m := producerConfig(c, "vault-keeper-test")

	v, err := m.Get("bootstrap.servers", nil)
	require.NoError(t, err)
	assert.Equal(t, "b1:9092,b2:9092", v)

	v, err = m.Get("batch.size", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, v)

	v, err = m.Get("enable.idempotence", nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	c.BatchSize, c.LingerMs = 1024, -1
	m = producerConfig(c, "x")
	v, _ = m.Get("batch.size", nil)
	assert.Equal(t, 1024, v)
	v, _ = m.Get("linger.ms", nil)
	assert.Equal(t, defaultLingerMs, v)
}
