package config

import (
	"fmt"
	"os"

	"github.com/zeromicro/go-zero/core/conf"

	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/logger"
	"lending-vault-sol/internal/pkg/types"
)

type LogConfig struct {
	Format   string `json:"format,optional"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `json:"level,optional"`    // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers   string `json:"brokers,optional"`    // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `json:"batch_size,optional"` // 批处理大小（单位字节）
	LingerMs  int    `json:"linger_ms,optional"`  // 批处理最大延迟（毫秒）

	Topics     KafkaTopics     `json:"topics,optional"`
	Partitions KafkaPartitions `json:"partitions,optional"`
}

// KafkaTopics keeper 写入的 topic，为空表示不投递
type KafkaTopics struct {
	Snapshot string `json:"snapshot,optional"` // vault 快照的 Kafka topic
	Plan     string `json:"plan,optional"`     // keeper 操作计划的 Kafka topic
}

type KafkaPartitions struct {
	Snapshot int `json:"snapshot,default=1"` // snapshot topic 的分区数
	Plan     int `json:"plan,default=1"`     // plan topic 的分区数
}

// RpcConfig Solana RPC 配置
type RpcConfig struct {
	Endpoint      string `json:"endpoint,optional"`          // RPC 地址
	SyncIntervalS int    `json:"sync_interval_s,default=10"` // 定时同步间隔（秒）
	TimeoutMs     int    `json:"timeout_ms,default=5000"`    // 单次请求超时（毫秒）
}

// GrpcConfig yellowstone gRPC 客户端连接相关配置
type GrpcConfig struct {
	Endpoint string `json:"endpoint,optional"` // gRPC 服务端地址
	XToken   string `json:"x_token,optional"`  // x-token 认证

	// 应用级逻辑心跳（ping）配置
	StreamPingIntervalSec int `json:"stream_ping_interval_sec,optional"` // 应用层 ping 心跳间隔（秒）

	// gRPC Keepalive 底层连接检测配置
	KeepalivePingIntervalSec int `json:"keepalive_ping_interval_sec,optional"` // 底层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `json:"keepalive_ping_timeout_sec,optional"`  // 底层 keepalive 超时（秒）

	// 消息体大小限制
	MaxCallRecvMsgSize int `json:"max_call_recv_msg_size,optional"` // 单条消息最大接收字节数

	// 超时与重连策略
	ReconnectIntervalSec int `json:"reconnect_interval_sec,optional"` // 重连最小间隔（秒）
	ConnectTimeoutSec    int `json:"connect_timeout_sec,optional"`    // 连接建立超时（秒）
	SendTimeoutSec       int `json:"send_timeout_sec,optional"`       // 发送超时（秒）
	SlotRecvTimeoutSec   int `json:"slot_recv_timeout_sec,optional"`  // 多久收不到 slot 触发重连（秒）
}

// MarketConfig 某个协议在链上的账户（base58）
type MarketConfig struct {
	ProtocolID      uint8  `json:"protocol_id,optional"`
	Reserve         string `json:"reserve,optional"`
	VaultCollateral string `json:"vault_collateral,optional"` // 无 obligation 时 cToken 所在账户
	Obligation      string `json:"obligation,optional"`       // 可为空
	BorrowReserve   string `json:"borrow_reserve,optional"`   // 可为空
	PriceAccount    string `json:"price_account,optional"`    // 借款币 Pyth 账户，可为空
}

// VaultConfig 需要跟踪的 vault
type VaultConfig struct {
	Address    string         `json:"address,optional"`
	LpMint     string         `json:"lp_mint,optional"`
	VaultInput string         `json:"vault_input,optional"`
	Markets    []MarketConfig `json:"markets,optional"`
}

// PolicyConfig 部署参数，与链上程序保持一致
type PolicyConfig struct {
	Admin         string `json:"admin,optional"`
	Treasury      string `json:"treasury,optional"`
	MinHealth     uint64 `json:"min_health,optional"`
	OptimalHealth uint64 `json:"optimal_health,optional"`
	MaxHealth     uint64 `json:"max_health,optional"`
}

func (c *PolicyConfig) ToPolicy() (state.Policy, error) {
	p := state.DefaultPolicy()
	if c.Admin != "" {
		k, err := types.TryPubkeyFromBase58(c.Admin)
		if err != nil {
			return p, fmt.Errorf("policy.admin: %w", err)
		}
		p.Admin = k
	}
	if c.Treasury != "" {
		k, err := types.TryPubkeyFromBase58(c.Treasury)
		if err != nil {
			return p, fmt.Errorf("policy.treasury: %w", err)
		}
		p.Treasury = k
	}
	if c.MinHealth != 0 {
		p.MinHealth = c.MinHealth
	}
	if c.OptimalHealth != 0 {
		p.OptimalHealth = c.OptimalHealth
	}
	if c.MaxHealth != 0 {
		p.MaxHealth = c.MaxHealth
	}
	if p.MinHealth > p.OptimalHealth || p.OptimalHealth > p.MaxHealth {
		return p, fmt.Errorf("policy: health band %d/%d/%d out of order", p.MinHealth, p.OptimalHealth, p.MaxHealth)
	}
	return p, nil
}

// PlanConfig keeper 计划参数
type PlanConfig struct {
	RebalanceThresholdBps uint32 `json:"rebalance_threshold_bps,optional"` // 仓位偏离目标超过该比例才调仓（万分比）
}

// KeeperConfig 是主配置结构体，用于驱动 keeper 服务
type KeeperConfig struct {
	LogConf           LogConfig           `json:"logger,optional"`         // 日志配置
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional"` // Kafka 生产者配置
	RpcConf           RpcConfig           `json:"rpc,optional"`            // RPC 配置
	Grpc              GrpcConfig          `json:"grpc,optional"`           // gRPC 订阅配置
	Vault             VaultConfig         `json:"vault,optional"`          // 跟踪的 vault
	Policy            PolicyConfig        `json:"policy,optional"`         // 程序部署参数
	Plan              PlanConfig          `json:"plan,optional"`           // 计划参数

	RedisAddr      string `json:"redis_addr,optional"`          // Redis 地址
	SnapshotTTLSec int    `json:"snapshot_ttl_sec,optional"`    // 快照在 Redis 中的保留时间（秒）
	MetricsAddr    string `json:"metrics_addr,optional"`        // Prometheus 监听地址，为空不启动
	SendTimeoutMs  int    `json:"send_timeout_ms,default=3000"` // 单条消息发送到 Kafka 并等待 ack 的超时时间
}

// Load 读取并解析 yaml 配置
func Load(path string) (*KeeperConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 由 go-zero conf 解析，缺省值来自 json tag 的 default
func Parse(data []byte) (*KeeperConfig, error) {
	var c KeeperConfig
	if err := conf.LoadFromYamlBytes(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Vault.Address == "" {
		return nil, fmt.Errorf("vault.address is required")
	}
	return &c, nil
}

// MustLoad 加载失败直接 panic，仅用于启动阶段
func MustLoad(path string) *KeeperConfig {
	c, err := Load(path)
	if err != nil {
		panic(err)
	}
	return c
}
