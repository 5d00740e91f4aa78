package grpc

import (
	"sync/atomic"
	"time"
)

// SlotClock 最新确认的 slot，由 gRPC 流更新，同步服务读取
type SlotClock struct {
	slot      atomic.Uint64
	updatedAt atomic.Int64 // unix 毫秒
}

func NewSlotClock() *SlotClock {
	return &SlotClock{}
}

// Update 只前进不后退，返回是否更新
func (c *SlotClock) Update(slot uint64) bool {
	for {
		cur := c.slot.Load()
		if slot <= cur {
			return false
		}
		if c.slot.CompareAndSwap(cur, slot) {
			c.updatedAt.Store(time.Now().UnixMilli())
			return true
		}
	}
}

func (c *SlotClock) Slot() uint64 {
	return c.slot.Load()
}

// Age 距离上次更新的时间，从未更新时返回 false
func (c *SlotClock) Age() (time.Duration, bool) {
	ms := c.updatedAt.Load()
	if ms == 0 {
		return 0, false
	}
	return time.Since(time.UnixMilli(ms)), true
}
