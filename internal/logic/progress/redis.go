package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lending-vault-sol/internal/pkg/types"
)

// RedisProgressStore 管理 vault 的同步进度（按 slot 判重）与最新快照
type RedisProgressStore struct {
	rdb         *redis.Client
	snapshotTTL time.Duration
}

// Redis key 前缀
const (
	slotPrefix     = "vault:progress"
	snapshotPrefix = "vault:snapshot"
)

const (
	slotTTL            = 24 * time.Hour
	defaultSnapshotTTL = 7 * 24 * time.Hour
)

// ErrNoSnapshot 还没有保存过快照
var ErrNoSnapshot = errors.New("no snapshot stored")

func NewRedisProgressStore(rdb *redis.Client, snapshotTTL time.Duration) *RedisProgressStore {
	if snapshotTTL <= 0 {
		snapshotTTL = defaultSnapshotTTL
	}
	return &RedisProgressStore{rdb: rdb, snapshotTTL: snapshotTTL}
}

func slotKey(vault types.Pubkey, slot uint64) string {
	return fmt.Sprintf("%s:%s:%d", slotPrefix, vault, slot)
}

func snapshotKey(vault types.Pubkey) string {
	return fmt.Sprintf("%s:%s", snapshotPrefix, vault)
}

// GetSlotStatus 获取 slot 的状态（Unknown / Processed / Invalid / Pending）
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, vault types.Pubkey, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, slotKey(vault, slot)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return SlotUnknown, nil
	case err != nil:
		return SlotUnknown, fmt.Errorf("redis get error: %w", err)
	case val == int(SlotProcessed):
		return SlotProcessed, nil
	case val == int(SlotInvalid):
		return SlotInvalid, nil
	case val == int(SlotPending):
		return SlotPending, nil
	default:
		return SlotUnknown, nil // 容错处理
	}
}

// TryMarkPending 只有 slot 尚无记录时才标记为 pending，返回是否抢到
func (r *RedisProgressStore) TryMarkPending(ctx context.Context, vault types.Pubkey, slot uint64) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, slotKey(vault, slot), int(SlotPending), slotTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return ok, nil
}

// MarkSlotStatus 通用设置 slot 的状态
func (r *RedisProgressStore) MarkSlotStatus(ctx context.Context, vault types.Pubkey, slot uint64, status SlotStatus) error {
	return r.rdb.Set(ctx, slotKey(vault, slot), int(status), slotTTL).Err()
}

// SaveSnapshot 保存快照并把 slot 标记为已处理，slot 回退时不覆盖
func (r *RedisProgressStore) SaveSnapshot(ctx context.Context, vault types.Pubkey, s Snapshot) error {
	latest, err := r.LatestSnapshot(ctx, vault)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return err
	}
	if err == nil && latest.Slot > s.Slot {
		return nil
	}

	key := snapshotKey(vault)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "slot", strconv.FormatUint(s.Slot, 10), "data", s.Data)
		pipe.Expire(ctx, key, r.snapshotTTL)
		pipe.Set(ctx, slotKey(vault, s.Slot), int(SlotProcessed), slotTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot 读取最新快照
func (r *RedisProgressStore) LatestSnapshot(ctx context.Context, vault types.Pubkey) (Snapshot, error) {
	fields, err := r.rdb.HGetAll(ctx, snapshotKey(vault)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return Snapshot{}, ErrNoSnapshot
	}
	slot, err := strconv.ParseUint(fields["slot"], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot slot %q: %w", fields["slot"], err)
	}
	return Snapshot{Slot: slot, Data: []byte(fields["data"])}, nil
}
