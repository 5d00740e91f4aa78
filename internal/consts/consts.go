package consts

import "runtime"

// PDA 种子
const (
	VaultSeed      = "vault"
	LpMintSeed     = "mint"
	TicketMintSeed = "ticket_mint"
)

const (
	// VaultVersion 当前账户版本
	VaultVersion uint8 = 1

	// WeightsScale 权重总和
	WeightsScale uint32 = 10_000

	// MaxProtocols Vault 最多可挂载的协议数
	MaxProtocols = 10

	// MinDepositAmount 用户单次最小存款
	MinDepositAmount uint64 = 100

	// DefaultMinElapsedTime 默认的权重刷新最小间隔（slot）
	DefaultMinElapsedTime int64 = 3000

	// MinElapsedSlotsForRefresh 未配置 min_elapsed_time 时使用的刷新下限
	MinElapsedSlotsForRefresh uint64 = 1500

	// MaxElapsedSlotsForTVL 协议收益数据的最大有效期
	MaxElapsedSlotsForTVL uint64 = 30

	// FeePerMil 刷新时收取的收益分成（千分比）
	FeePerMil uint64 = 100

	// 借款健康度区间（百分比）
	MinHealthFactor     uint64 = 70
	OptimalHealthFactor uint64 = 70
	MaxHealthFactor     uint64 = 75
)

// CpuCount 表示逻辑 CPU 核心数，用于控制并发任务调度上限
var CpuCount = runtime.NumCPU()
