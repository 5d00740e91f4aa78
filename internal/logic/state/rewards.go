package state

import (
	"lending-vault-sol/internal/pkg/wad"
)

// AccumulatedRewards 协议产生的收益及其对应的平均存款
type AccumulatedRewards struct {
	LastSlot          uint64
	Amount            int64 // 亏损时为负
	DepositedAvgWad   wad.U128
	DepositedIntegral SlotIntegrated
	BorrowedIntegral  SlotIntegrated
}

func NewAccumulatedRewards(slot uint64) AccumulatedRewards {
	return AccumulatedRewards{
		DepositedIntegral: NewSlotIntegrated(slot),
		BorrowedIntegral:  NewSlotIntegrated(slot),
	}
}

// Update 记录 slot 时刻的收益，并计算产生这笔收益的平均存款
func (r *AccumulatedRewards) Update(slot uint64, rewards int64, deposited uint64) error {
	avg, err := r.DepositedIntegral.AverageWad(slot, deposited)
	if err != nil {
		return err
	}
	r.LastSlot = slot
	r.Amount = rewards
	r.DepositedAvgWad = avg
	return nil
}

// ResetIntegral 收益实现后，把积分起点移动到上次收益的 slot
func (r *AccumulatedRewards) ResetIntegral() error {
	if r.LastSlot < r.DepositedIntegral.InitialSlot {
		// 从未计算过收益
		return nil
	}
	return r.DepositedIntegral.Rebase(r.LastSlot, r.DepositedAvgWad)
}
