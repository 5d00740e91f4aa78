package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/blocto/solana-go-sdk/client"

	"lending-vault-sol/internal/config"
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/health"
	"lending-vault-sol/internal/logic/keeper"
	"lending-vault-sol/internal/logic/progress"
	"lending-vault-sol/internal/mq"
	"lending-vault-sol/internal/pkg/logger"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/utils"
)

// AccountReader RPC 读取接口，*client.Client 实现
type AccountReader interface {
	GetMultipleAccounts(ctx context.Context, addrs []string) ([]client.AccountInfo, error)
	GetSlot(ctx context.Context) (uint64, error)
}

// SlotSource 流式 slot 时钟
type SlotSource interface {
	Slot() uint64
}

type SnapshotStore interface {
	TryMarkPending(ctx context.Context, vault types.Pubkey, slot uint64) (bool, error)
	MarkSlotStatus(ctx context.Context, vault types.Pubkey, slot uint64, status progress.SlotStatus) error
	SaveSnapshot(ctx context.Context, vault types.Pubkey, s progress.Snapshot) error
}

type Publisher interface {
	Publish(ctx context.Context, jobs []*mq.KafkaJob) error
}

// Topics 快照和计划的 Kafka topic
type Topics struct {
	Snapshot           string
	SnapshotPartitions int
	Plan               string
	PlanPartitions     int
}

// VaultSyncService 定时或在账户变化时读取 vault 相关账户，生成快照和计划并发布
type VaultSyncService struct {
	accounts  *accountSet
	reader    AccountReader
	clock     SlotSource
	store     SnapshotStore
	publisher Publisher
	metrics   *keeper.Metrics
	topics    Topics
	band      health.Band
	options   keeper.Options
	interval  time.Duration
	timeout   time.Duration
	changes   <-chan types.Pubkey
	stopChan  chan struct{}
	ctx       context.Context
	cancel    func(err error)
}

type Deps struct {
	Reader    AccountReader
	Clock     SlotSource
	Store     SnapshotStore
	Publisher Publisher
	Metrics   *keeper.Metrics
	Topics    Topics
	Changes   <-chan types.Pubkey
}

func NewVaultSyncService(c *config.KeeperConfig, deps Deps) (*VaultSyncService, error) {
	accounts, err := newAccountSet(c.Vault)
	if err != nil {
		return nil, err
	}
	policy, err := c.Policy.ToPolicy()
	if err != nil {
		return nil, err
	}
	if deps.Reader == nil {
		return nil, errors.New("rpc client init failed")
	}
	band := health.Band{Min: policy.MinHealth, Optimal: policy.OptimalHealth, Max: policy.MaxHealth}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &VaultSyncService{
		accounts:  accounts,
		reader:    deps.Reader,
		clock:     deps.Clock,
		store:     deps.Store,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		topics:    deps.Topics,
		band:      band,
		options:   keeper.Options{Band: band, RebalanceThresholdBps: c.Plan.RebalanceThresholdBps},
		interval:  time.Duration(c.RpcConf.SyncIntervalS) * time.Second,
		timeout:   time.Duration(c.RpcConf.TimeoutMs) * time.Millisecond,
		changes:   deps.Changes,
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Watched gRPC 需要订阅的账户
func (s *VaultSyncService) Watched() []string {
	return s.accounts.Watched()
}

func (s *VaultSyncService) Start() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce("startup")
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce("timer")
		case key := <-s.changes:
			s.drainChanges()
			s.runOnce("account " + key.String())
		}
	}
}

func (s *VaultSyncService) Stop() {
	s.cancel(errors.New("VaultSyncService stop"))
	select {
	case <-s.stopChan:
		// 已关闭，无需重复关闭
	default:
		close(s.stopChan)
	}
}

// 同一批变化只同步一次
func (s *VaultSyncService) drainChanges() {
	for {
		select {
		case <-s.changes:
		default:
			return
		}
	}
}

func (s *VaultSyncService) runOnce(reason string) {
	result, err := s.Sync(s.ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SyncFailed()
		}
		logger.Warnf("[VaultSyncService] 同步失败 (%s): %v", reason, err)
		return
	}
	if result == nil {
		return
	}
	logger.Infof("[VaultSyncService] slot=%d tvl=%d lp_price=%s actions=%d (%s)",
		result.Snapshot.Slot, result.Snapshot.State.CurrentTVL, result.Snapshot.LpPrice(), len(result.Plan.Actions), reason)
}

// SyncResult 一次同步的产物
type SyncResult struct {
	Snapshot *keeper.Snapshot
	Plan     *keeper.Plan
}

// Sync 读取账户并发布一次快照，slot 已被处理时返回 nil
func (s *VaultSyncService) Sync(ctx context.Context) (result *SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[VaultSyncService] sync panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("sync panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slot, err := s.currentSlot(ctx)
	if err != nil {
		return nil, err
	}
	vault := s.accounts.vault
	if s.store != nil {
		ok, err := s.store.TryMarkPending(ctx, vault, slot)
		if err != nil {
			return nil, fmt.Errorf("mark pending: %w", err)
		}
		if !ok {
			logger.Debugf("[VaultSyncService] slot %d 已处理，跳过", slot)
			return nil, nil
		}
	}

	result, err = s.build(ctx, slot)
	if err != nil {
		s.markStatus(ctx, slot, progress.SlotInvalid)
		return nil, err
	}
	return result, nil
}

func (s *VaultSyncService) build(ctx context.Context, slot uint64) (*SyncResult, error) {
	start := time.Now()
	infos, err := s.reader.GetMultipleAccounts(ctx, s.accounts.keys)
	if err != nil {
		return nil, fmt.Errorf("GetMultipleAccounts failed: %w", err)
	}
	logger.Debugf("[VaultSyncService] GetMultipleAccounts 成功, 账户数: %d, 耗时: %v", len(s.accounts.keys), time.Since(start))

	data := make([][]byte, len(infos))
	for i, info := range infos {
		data[i] = info.Data
	}
	in, err := s.accounts.assemble(slot, data)
	if err != nil {
		return nil, err
	}
	snap, err := keeper.Build(in, s.band)
	if err != nil {
		return nil, err
	}
	plan, err := keeper.BuildPlan(snap, s.options)
	if err != nil {
		return nil, err
	}

	snapBytes, err := utils.EncodeStruct(uint32(events.TypeVaultSnapshot), snap.Fields())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	jobs := make([]*mq.KafkaJob, 0, 2)
	if s.topics.Snapshot != "" {
		jobs = append(jobs, mq.NewVaultJob(s.topics.Snapshot, s.topics.SnapshotPartitions, snap.Vault, snapBytes))
	}
	if s.topics.Plan != "" && len(plan.Actions) > 0 {
		planBytes, err := utils.EncodeStruct(uint32(events.TypeKeeperPlan), plan.Fields(snap))
		if err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		jobs = append(jobs, mq.NewVaultJob(s.topics.Plan, s.topics.PlanPartitions, snap.Vault, planBytes))
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, jobs); err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
	}
	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, snap.Vault, progress.Snapshot{Slot: slot, Data: snapBytes}); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
	}
	if s.metrics != nil {
		s.metrics.Observe(snap, plan)
	}
	return &SyncResult{Snapshot: snap, Plan: plan}, nil
}

// currentSlot 优先使用 gRPC 推送的 slot，流未就绪时回退到 RPC
func (s *VaultSyncService) currentSlot(ctx context.Context) (uint64, error) {
	if s.clock != nil {
		if slot := s.clock.Slot(); slot > 0 {
			return slot, nil
		}
	}
	slot, err := s.reader.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("GetSlot failed: %w", err)
	}
	return slot, nil
}

func (s *VaultSyncService) markStatus(ctx context.Context, slot uint64, status progress.SlotStatus) {
	if s.store == nil {
		return
	}
	if err := s.store.MarkSlotStatus(ctx, s.accounts.vault, slot, status); err != nil {
		logger.Warnf("[VaultSyncService] 标记 slot %d 为 %s 失败: %v", slot, status, err)
	}
}
