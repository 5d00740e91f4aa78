package state

import (
	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

type Bumps struct {
	Vault      uint8
	LpMint     uint8
	TicketMint uint8
}

type RefreshParams struct {
	MinElapsedTime     int64  // 两次刷新之间的最小 slot 间隔
	MinDepositLamports uint64 // 单个协议的最小存款
}

// Vault 每个 (input_mint, seed_number) 一个，字段顺序即链上 borsh 布局
type Vault struct {
	Version           uint8
	Paused            bool
	SeedNumber        uint8
	Bumps             Bumps
	InputMint         types.Pubkey
	BorrowMint        types.Pubkey
	TreasuryLpAccount types.Pubkey
	LastRefreshTime   int64
	Refresh           RefreshParams
	CurrentTVL        uint64
	PreviousLpPrice   LpPrice
	Protocols         []Position
}

type InitParams struct {
	SeedNumber        uint8
	Bumps             Bumps
	InputMint         types.Pubkey
	BorrowMint        types.Pubkey
	TreasuryLpAccount types.Pubkey
}

// NewVault 初始化 Vault：TVL、价格与仓位清零，刷新参数取默认值
func NewVault(params InitParams) *Vault {
	return &Vault{
		Version:           consts.VaultVersion,
		SeedNumber:        params.SeedNumber,
		Bumps:             params.Bumps,
		InputMint:         params.InputMint,
		BorrowMint:        params.BorrowMint,
		TreasuryLpAccount: params.TreasuryLpAccount,
		Refresh: RefreshParams{
			MinElapsedTime:     consts.DefaultMinElapsedTime,
			MinDepositLamports: 0,
		},
		Protocols: make([]Position, 0, consts.MaxProtocols),
	}
}

// ProtocolPosition 线性查找协议在 Protocols 中的下标
func (v *Vault) ProtocolPosition(protocolID uint8) (int, error) {
	for i := range v.Protocols {
		if v.Protocols[i].ProtocolID == protocolID {
			return i, nil
		}
	}
	return -1, vaulterr.ErrProtocolNotFoundInVault
}

// AddProtocol 追加一个新的协议仓位
func (v *Vault) AddProtocol(protocolID uint8, slot uint64) error {
	if protocolID >= consts.ProtocolCount {
		return vaulterr.ErrInvalidProtocolID
	}
	if _, err := v.ProtocolPosition(protocolID); err == nil {
		return vaulterr.ErrProtocolAlreadyExists
	}
	if len(v.Protocols) >= consts.MaxProtocols {
		return vaulterr.ErrInvalidArraySize
	}
	v.Protocols = append(v.Protocols, NewPosition(protocolID, slot))
	return nil
}

// SetProtocolWeights 按 Protocols 顺序覆盖权重，总和必须为 10000 或 0
func (v *Vault) SetProtocolWeights(weights []uint32) error {
	if len(weights) != len(v.Protocols) {
		return vaulterr.ErrInvalidArraySize
	}
	var sum uint64
	for _, w := range weights {
		sum += uint64(w)
	}
	if sum != uint64(consts.WeightsScale) && sum != 0 {
		return vaulterr.ErrInvalidWeights
	}
	for i, w := range weights {
		v.Protocols[i].Weight = w
	}
	return nil
}

// CurrentLpPrice 以 Vault 记录的 TVL 与 LP 供应量计算当前价格
func (v *Vault) CurrentLpPrice(lpSupply uint64) LpPrice {
	return LpPrice{TotalTokens: v.CurrentTVL, MintedTokens: lpSupply}
}

// CheckLpPrice 快照非空时要求 current >= previous
func (v *Vault) CheckLpPrice(current LpPrice) error {
	if v.PreviousLpPrice.IsZero() {
		return nil
	}
	if !current.GreaterOrEqual(v.PreviousLpPrice) {
		return vaulterr.Wrap(vaulterr.ErrInvalidLpPrice, "current %s < previous %s", current, v.PreviousLpPrice)
	}
	return nil
}

// DeployedAmount Σ p.amount
func (v *Vault) DeployedAmount() (uint64, error) {
	var total uint64
	for i := range v.Protocols {
		sum, err := wad.AddU64(total, v.Protocols[i].Amount)
		if err != nil {
			return 0, err
		}
		total = sum
	}
	return total, nil
}

// CalculateDeposit 应存入协议 idx 的数量：补齐到 tvl*weight/10000，且不超过 available
func (v *Vault) CalculateDeposit(idx int, available uint64) (uint64, error) {
	p, err := v.position(idx)
	if err != nil {
		return 0, err
	}
	target, err := p.TargetAmount(v.CurrentTVL)
	if err != nil {
		return 0, err
	}
	if target <= p.Amount {
		return 0, vaulterr.ErrInvalidProtocolDeposit
	}
	amount := min(target-p.Amount, available)
	if amount == 0 || amount < v.Refresh.MinDepositLamports {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidProtocolDeposit, "amount %d below minimum", amount)
	}
	return amount, nil
}

// CalculateWithdraw 应从协议 idx 取出的数量
// needed > 0 时为用户提现缺口，取 min(needed, amount)；needed == 0 时按权重取出超出部分
func (v *Vault) CalculateWithdraw(idx int, needed uint64) (uint64, error) {
	p, err := v.position(idx)
	if err != nil {
		return 0, err
	}
	if needed > 0 {
		if p.Amount == 0 {
			return 0, vaulterr.ErrInvalidProtocolWithdraw
		}
		return min(needed, p.Amount), nil
	}
	target, err := p.TargetAmount(v.CurrentTVL)
	if err != nil {
		return 0, err
	}
	if target >= p.Amount {
		return 0, vaulterr.ErrInvalidProtocolWithdraw
	}
	return p.Amount - target, nil
}

func (v *Vault) position(idx int) (*Position, error) {
	if idx < 0 || idx >= len(v.Protocols) {
		return nil, vaulterr.ErrProtocolNotFoundInVault
	}
	return &v.Protocols[idx], nil
}

// Position 返回下标 idx 的仓位指针
func (v *Vault) Position(idx int) (*Position, error) {
	return v.position(idx)
}

// Seeds Vault PDA 的签名种子（含 bump）：["vault", seed_number, input_mint, bump]
func (v *Vault) Seeds() [][]byte {
	return [][]byte{
		[]byte(consts.VaultSeed),
		{v.SeedNumber},
		v.InputMint.Bytes(),
		{v.Bumps.Vault},
	}
}

// LpMintSeeds ["mint", vault]
func LpMintSeeds(vault types.Pubkey) [][]byte {
	return [][]byte{[]byte(consts.LpMintSeed), vault.Bytes()}
}

// TicketMintSeeds ["ticket_mint", vault]
func TicketMintSeeds(vault types.Pubkey) [][]byte {
	return [][]byte{[]byte(consts.TicketMintSeed), vault.Bytes()}
}

// TicketAccountSeeds ["ticket_mint", ticket_mint, user]
func TicketAccountSeeds(ticketMint, user types.Pubkey) [][]byte {
	return [][]byte{[]byte(consts.TicketMintSeed), ticketMint.Bytes(), user.Bytes()}
}
