package sim

import (
	"fmt"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
)

// ProtocolAccounts 协议操作的协议账户（参与哈希校验的部分）
func (w *World) ProtocolAccounts(id uint8, op string) []types.Pubkey {
	m := w.Markets[id]
	r := m.Reserve
	switch op {
	case instruction.OpInitialize:
		return []types.Pubkey{r.LendingMarket}
	case instruction.OpDeposit, instruction.OpWithdraw:
		if m.Obligation.IsZero() {
			return []types.Pubkey{m.VaultCollateral, r.Reserve, r.LiquiditySupply, r.CollateralMint,
				r.LendingMarket, r.MarketAuthority}
		}
		return []types.Pubkey{m.VaultCollateral, r.Reserve, r.LiquiditySupply, r.CollateralMint,
			r.CollateralSupply, r.LendingMarket, r.MarketAuthority, m.Obligation}
	case instruction.OpTVL:
		if m.Obligation.IsZero() {
			return []types.Pubkey{r.Reserve, m.VaultCollateral}
		}
		return []types.Pubkey{r.Reserve, m.Obligation}
	case instruction.OpBorrow, instruction.OpRepay:
		b := m.BorrowReserve
		return []types.Pubkey{m.Obligation, m.PriceAccount, b.Reserve, b.LiquiditySupply,
			b.LendingMarket, b.MarketAuthority}
	}
	return nil
}

// GenericAccounts vault 之后、协议账户之前的通用账户
func (w *World) GenericAccounts(op string) []types.Pubkey {
	switch op {
	case instruction.OpDeposit:
		return []types.Pubkey{w.VaultInput}
	case instruction.OpWithdraw:
		return []types.Pubkey{w.VaultInput, consts.SysvarInstructions}
	case instruction.OpBorrow, instruction.OpRepay:
		return []types.Pubkey{w.VaultBorrow}
	}
	return nil
}

// Hashes deposit, withdraw, tvl 三组协议账户的哈希
func (w *World) Hashes(id uint8) [3]types.CheckHash {
	return [3]types.CheckHash{
		types.CheckHashOf(w.ProtocolAccounts(id, instruction.OpDeposit)...),
		types.CheckHashOf(w.ProtocolAccounts(id, instruction.OpWithdraw)...),
		types.CheckHashOf(w.ProtocolAccounts(id, instruction.OpTVL)...),
	}
}

// LeverageHashes borrow, repay
func (w *World) LeverageHashes(id uint8) [2]types.CheckHash {
	return [2]types.CheckHash{
		types.CheckHashOf(w.ProtocolAccounts(id, instruction.OpBorrow)...),
		types.CheckHashOf(w.ProtocolAccounts(id, instruction.OpRepay)...),
	}
}

// ProtocolIxWith 使用指定协议账户构造协议指令
func (w *World) ProtocolIxWith(id uint8, op string, accounts []types.Pubkey) (host.Instruction, error) {
	prefix, ok := instruction.ProtocolPrefixes[id]
	if !ok {
		return host.Instruction{}, fmt.Errorf("no instruction prefix for protocol %d", id)
	}
	metas := []host.AccountMeta{host.WritableMeta(w.Vault)}
	for _, k := range w.GenericAccounts(op) {
		metas = append(metas, host.WritableMeta(k))
	}
	for _, k := range accounts {
		metas = append(metas, host.WritableMeta(k))
	}
	return instruction.New(w.ProgramID, instruction.ProtocolName(prefix, op), nil, metas...)
}

func (w *World) ProtocolIx(id uint8, op string) (host.Instruction, error) {
	return w.ProtocolIxWith(id, op, w.ProtocolAccounts(id, op))
}

func (w *World) adminIx(name string, args any) (host.Instruction, error) {
	return instruction.New(w.ProgramID, name, args,
		host.SignerMeta(w.Admin, false),
		host.WritableMeta(w.Vault),
	)
}

func (w *World) AddProtocolIx(id uint8) (host.Instruction, error) {
	return w.adminIx(instruction.NameAddProtocol, &instruction.AddProtocolArgs{ProtocolID: id})
}

func (w *World) SetHashesIx(id uint8, hashes [3]types.CheckHash) (host.Instruction, error) {
	return w.adminIx(instruction.NameSetHashes, &instruction.SetHashesArgs{ProtocolID: id, Hashes: hashes})
}

func (w *World) SetLeverageHashesIx(id uint8, hashes [2]types.CheckHash) (host.Instruction, error) {
	return w.adminIx(instruction.NameSetLeverageHashes, &instruction.SetLeverageHashesArgs{ProtocolID: id, Hashes: hashes})
}

func (w *World) SetWeightsIx(weights []uint32) (host.Instruction, error) {
	return w.adminIx(instruction.NameSetProtocolWeights, &instruction.SetProtocolWeightsArgs{Weights: weights})
}

func (w *World) SetRefreshParamsIx(minElapsed int64, minDeposit uint64) (host.Instruction, error) {
	return w.adminIx(instruction.NameSetRefreshParams, &instruction.SetRefreshParamsArgs{
		MinElapsedTime:     minElapsed,
		MinDepositLamports: minDeposit,
	})
}

func (w *World) SetPausedIx(paused bool) (host.Instruction, error) {
	return w.adminIx(instruction.NameSetPaused, &instruction.SetPausedArgs{Paused: paused})
}

// RefreshIx 无需签名
func (w *World) RefreshIx() (host.Instruction, error) {
	return instruction.New(w.ProgramID, instruction.NameRefreshWeights, nil,
		host.WritableMeta(w.Vault),
		host.WritableMeta(w.LpMint),
		host.WritableMeta(w.TreasuryLp),
	)
}

// RefreshBundle 先对每个活跃协议执行 tvl，再刷新权重
func (w *World) RefreshBundle() ([]host.Instruction, error) {
	v, err := w.VaultState()
	if err != nil {
		return nil, err
	}
	var ixs []host.Instruction
	for i := range v.Protocols {
		if !v.Protocols[i].IsActive() {
			continue
		}
		ix, err := w.ProtocolIx(v.Protocols[i].ProtocolID, instruction.OpTVL)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, ix)
	}
	ix, err := w.RefreshIx()
	if err != nil {
		return nil, err
	}
	return append(ixs, ix), nil
}

// VaultState 读取并解码 Vault 账户
func (w *World) VaultState() (*state.Vault, error) {
	a, ok := w.Host.Account(w.Vault)
	if !ok {
		return nil, fmt.Errorf("vault %s not found", w.Vault)
	}
	return state.DecodeVault(a.Data)
}

// Position 指定协议的仓位副本
func (w *World) Position(id uint8) (state.Position, error) {
	v, err := w.VaultState()
	if err != nil {
		return state.Position{}, err
	}
	idx, err := v.ProtocolPosition(id)
	if err != nil {
		return state.Position{}, err
	}
	return v.Protocols[idx], nil
}

// Run 执行一组指令，signers 为交易签名者
func (w *World) Run(signers []types.Pubkey, ixs ...host.Instruction) error {
	return w.Host.Process(signers, ixs...)
}

// RunAdmin 以管理员身份执行
func (w *World) RunAdmin(ixs ...host.Instruction) error {
	return w.Host.Process([]types.Pubkey{w.Admin}, ixs...)
}

func (w *World) Refresh() error {
	ixs, err := w.RefreshBundle()
	if err != nil {
		return err
	}
	return w.Host.Process(nil, ixs...)
}

// UpdateVault 直接改写 Vault 账户，用于构造异常状态
func (w *World) UpdateVault(fn func(v *state.Vault)) error {
	v, err := w.VaultState()
	if err != nil {
		return err
	}
	fn(v)
	data, err := state.EncodeVault(v)
	if err != nil {
		return err
	}
	w.Host.SetAccount(w.Vault, w.ProgramID, data)
	return nil
}
