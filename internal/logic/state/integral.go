package state

import (
	"github.com/holiman/uint256"

	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

// SlotIntegrated 按 slot 积分的累加器：accumulator = Σ (slot_{i+1} - slot_i) * value_i
type SlotIntegrated struct {
	InitialSlot uint64
	LastSlot    uint64
	Accumulator wad.U128
}

func NewSlotIntegrated(slot uint64) SlotIntegrated {
	return SlotIntegrated{InitialSlot: slot, LastSlot: slot}
}

// Accumulate 将 [last_slot, slot) 区间内的 value 计入积分
func (s *SlotIntegrated) Accumulate(slot, value uint64) error {
	elapsed, err := wad.SubU64(slot, s.LastSlot)
	if err != nil {
		return err
	}
	area, err := wad.U128From64(elapsed).MulU64(value)
	if err != nil {
		return err
	}
	acc, err := s.Accumulator.Add(area)
	if err != nil {
		return err
	}
	s.Accumulator = acc
	s.LastSlot = slot
	return nil
}

// AverageWad 先积分到 slot，再返回区间平均值（WAD 缩放）
func (s *SlotIntegrated) AverageWad(slot, value uint64) (wad.U128, error) {
	if err := s.Accumulate(slot, value); err != nil {
		return wad.U128{}, err
	}
	elapsed, err := wad.SubU64(slot, s.InitialSlot)
	if err != nil {
		return wad.U128{}, err
	}
	if elapsed == 0 {
		return wad.U128{}, vaulterr.ErrMathOverflow
	}
	return s.Accumulator.MulDiv(uint256.NewInt(wad.WAD), uint256.NewInt(elapsed))
}

// Rebase 扣除 [initial_slot, slot) 内按 avgWad 计的积分，并把起点移到 slot
func (s *SlotIntegrated) Rebase(slot uint64, avgWad wad.U128) error {
	elapsed, err := wad.SubU64(slot, s.InitialSlot)
	if err != nil {
		return err
	}
	consumed, err := avgWad.MulDiv(uint256.NewInt(elapsed), uint256.NewInt(wad.WAD))
	if err != nil {
		return err
	}
	acc, err := s.Accumulator.Sub(consumed)
	if err != nil {
		return err
	}
	s.Accumulator = acc
	s.InitialSlot = slot
	return nil
}
