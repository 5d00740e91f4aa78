package state

import (
	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

// Op 需要校验 CPI 账户哈希的操作
type Op uint8

const (
	OpDeposit Op = iota
	OpWithdraw
	OpTVL
	OpBorrow
	OpRepay
)

var opNames = [...]string{"deposit", "withdraw", "tvl", "borrow", "repay"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// HashPubkey 每种操作允许使用的 CPI 账户集合的截断哈希
type HashPubkey struct {
	Deposit  types.CheckHash
	Withdraw types.CheckHash
	TVL      types.CheckHash
	Borrow   types.CheckHash
	Repay    types.CheckHash
}

func (h HashPubkey) For(op Op) types.CheckHash {
	switch op {
	case OpDeposit:
		return h.Deposit
	case OpWithdraw:
		return h.Withdraw
	case OpTVL:
		return h.TVL
	case OpBorrow:
		return h.Borrow
	case OpRepay:
		return h.Repay
	}
	return types.CheckHash{}
}

// Position Vault 在某个借贷协议中的仓位
type Position struct {
	ProtocolID uint8
	HashPubkey HashPubkey
	Weight     uint32
	Amount     uint64 // 已存入协议的代币数量
	Borrowed   uint64 // 借出的 borrow_mint 数量
	Rewards    AccumulatedRewards
}

func NewPosition(protocolID uint8, slot uint64) Position {
	return Position{
		ProtocolID: protocolID,
		Rewards:    NewAccumulatedRewards(slot),
	}
}

func (p *Position) IsActive() bool {
	return p.Weight != 0
}

func (p *Position) SetHashes(deposit, withdraw, tvl types.CheckHash) {
	p.HashPubkey.Deposit = deposit
	p.HashPubkey.Withdraw = withdraw
	p.HashPubkey.TVL = tvl
}

func (p *Position) SetLeverageHashes(borrow, repay types.CheckHash) {
	p.HashPubkey.Borrow = borrow
	p.HashPubkey.Repay = repay
}

// TargetAmount 按权重应分配到该协议的数量 tvl*weight/10000
func (p *Position) TargetAmount(tvl uint64) (uint64, error) {
	return wad.MulDivU64(tvl, uint64(p.Weight), uint64(consts.WeightsScale))
}

// UpdateTVL 将已计算的收益计入仓位
func (p *Position) UpdateTVL() error {
	amount, err := addSigned(p.Amount, p.Rewards.Amount)
	if err != nil {
		return err
	}
	p.Amount = amount
	p.Rewards.Amount = 0
	return nil
}

func (p *Position) UpdateAfterDeposit(slot, amount uint64) error {
	if err := p.Rewards.DepositedIntegral.Accumulate(slot, p.Amount); err != nil {
		return err
	}
	sum, err := wad.AddU64(p.Amount, amount)
	if err != nil {
		return err
	}
	p.Amount = sum
	return nil
}

func (p *Position) UpdateAfterWithdraw(slot, amount uint64) error {
	if err := p.Rewards.DepositedIntegral.Accumulate(slot, p.Amount); err != nil {
		return err
	}
	diff, err := wad.SubU64(p.Amount, amount)
	if err != nil {
		return err
	}
	p.Amount = diff
	return nil
}

func (p *Position) UpdateAfterBorrow(slot, amount uint64) error {
	if err := p.Rewards.BorrowedIntegral.Accumulate(slot, p.Borrowed); err != nil {
		return err
	}
	sum, err := wad.AddU64(p.Borrowed, amount)
	if err != nil {
		return err
	}
	p.Borrowed = sum
	return nil
}

func (p *Position) UpdateAfterRepay(slot, amount uint64) error {
	if err := p.Rewards.BorrowedIntegral.Accumulate(slot, p.Borrowed); err != nil {
		return err
	}
	diff, err := wad.SubU64(p.Borrowed, amount)
	if err != nil {
		return err
	}
	p.Borrowed = diff
	return nil
}

func addSigned(a uint64, d int64) (uint64, error) {
	if d >= 0 {
		return wad.AddU64(a, uint64(d))
	}
	neg := uint64(-(d + 1)) + 1
	if neg > a {
		return 0, vaulterr.ErrMathOverflow
	}
	return a - neg, nil
}
