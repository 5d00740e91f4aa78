package state

import (
	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
)

// Policy 部署时确定的全局参数，暂停开关可在运行时覆盖
type Policy struct {
	Admin          types.Pubkey
	Treasury       types.Pubkey
	PausedDeposit  bool
	PausedWithdraw bool
	MinHealth      uint64
	OptimalHealth  uint64
	MaxHealth      uint64
}

func DefaultPolicy() Policy {
	return Policy{
		Admin:         consts.Admin,
		Treasury:      consts.Treasury,
		MinHealth:     consts.MinHealthFactor,
		OptimalHealth: consts.OptimalHealthFactor,
		MaxHealth:     consts.MaxHealthFactor,
	}
}

// DepositPaused 策略开关或 Vault 自身暂停
func (p Policy) DepositPaused(v *Vault) bool {
	return p.PausedDeposit || v.Paused
}

func (p Policy) WithdrawPaused(v *Vault) bool {
	return p.PausedWithdraw || v.Paused
}
