// Package adapter 外部借贷协议适配层：统一的存取、收益、借还流程，
// 具体协议只负责构造 CPI 与换算 cToken。
package adapter

import (
	"fmt"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// 各操作在 vault 账户之后、协议账户之前的通用账户个数
const (
	InitializeGenericAccounts = 0
	DepositGenericAccounts    = 1 // vault_input_token_account
	WithdrawGenericAccounts   = 2 // vault_input_token_account, instructions sysvar
	TVLGenericAccounts        = 0
	BorrowGenericAccounts     = 1 // vault_borrow_token_account
	RepayGenericAccounts      = 1 // vault_borrow_token_account
)

// Context 一次协议操作的上下文，Vault 由调用方加载并在成功后写回
type Context struct {
	RT       host.Runtime
	Vault    *state.Vault
	VaultKey types.Pubkey
	Index    int
	Generic  []types.Pubkey
	Accounts []types.Pubkey // 协议相关账户，哈希校验的对象
	Policy   state.Policy
}

// NewContext 按通用账户个数拆分 keys（不含 vault 账户）
func NewContext(rt host.Runtime, v *state.Vault, vaultKey types.Pubkey, protocolID uint8,
	keys []types.Pubkey, generic int, policy state.Policy) (*Context, error) {
	idx, err := v.ProtocolPosition(protocolID)
	if err != nil {
		return nil, err
	}
	if len(keys) < generic {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidArraySize, "expected %d generic accounts, got %d", generic, len(keys))
	}
	return &Context{
		RT:       rt,
		Vault:    v,
		VaultKey: vaultKey,
		Index:    idx,
		Generic:  keys[:generic],
		Accounts: keys[generic:],
		Policy:   policy,
	}, nil
}

func (c *Context) Position() *state.Position {
	return &c.Vault.Protocols[c.Index]
}

func (c *Context) Signer() host.SignerSeeds {
	return c.Vault.Seeds()
}

// Account 第 i 个协议账户
func (c *Context) Account(i int) (types.Pubkey, error) {
	if i < 0 || i >= len(c.Accounts) {
		return types.Pubkey{}, vaulterr.Wrap(vaulterr.ErrInvalidArraySize, "protocol account %d of %d", i, len(c.Accounts))
	}
	return c.Accounts[i], nil
}

// CheckHash 协议账户的截断哈希必须与仓位记录一致，先于任何计算与 CPI
func (c *Context) CheckHash(op state.Op) error {
	want := c.Position().HashPubkey.For(op)
	got := types.CheckHashOf(c.Accounts...)
	if got != want {
		return vaulterr.Wrap(vaulterr.ErrInvalidHash, "%s %s: got %s want %s",
			ProtocolName(c.Position().ProtocolID), op, got, want)
	}
	return nil
}

// checkVaultTokenAccount 代币账户必须属于 vault 且 mint 正确
func (c *Context) checkVaultTokenAccount(account, mint types.Pubkey) error {
	owner, err := c.RT.Owner(account)
	if err != nil {
		return err
	}
	if owner != c.VaultKey {
		return vaulterr.Wrap(vaulterr.ErrInvalidOwner, "token account %s owned by %s", account, owner)
	}
	m, err := c.RT.Mint(account)
	if err != nil {
		return err
	}
	if m != mint {
		return vaulterr.Wrap(vaulterr.ErrInvalidMint, "token account %s has mint %s", account, m)
	}
	return nil
}

// Protocol 供应侧能力，所有协议都要实现
type Protocol interface {
	ID() uint8
	ProgramID() types.Pubkey

	// Deposit 把 amount 个 input 代币存入协议
	Deposit(c *Context, amount uint64) error
	// Withdraw 赎回 collateral 个 cToken 到 vault_input
	Withdraw(c *Context, collateral uint64) error
	LiquidityToCollateral(c *Context, amount uint64) (uint64, error)
	// MaxWithdrawable 当前仓位全部赎回可得的 input 代币
	MaxWithdrawable(c *Context) (uint64, error)
}

// Initializer 存款前需要初始化账户的协议
type Initializer interface {
	Initialize(c *Context) error
}

// Leverage 支持在 obligation 上借款的协议
type Leverage interface {
	Obligation(c *Context) (*lending.Obligation, error)
	Borrow(c *Context, amount uint64) error
	Repay(c *Context, amount uint64) error
}

// Registry 协议编号 -> 适配器
type Registry struct {
	protocols map[uint8]Protocol
}

func NewRegistry(ps ...Protocol) *Registry {
	r := &Registry{protocols: make(map[uint8]Protocol, len(ps))}
	for _, p := range ps {
		r.protocols[p.ID()] = p
	}
	return r
}

func (r *Registry) Get(id uint8) (Protocol, error) {
	p, ok := r.protocols[id]
	if !ok {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidProtocolID, "no adapter for protocol %d", id)
	}
	return p, nil
}

func ProtocolName(id uint8) string {
	return fmt.Sprintf("%s(%d)", consts.ProtocolName(id), id)
}

// DefaultRegistry Francium 只存、Port obligation 只存、Solend 存借
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewRawPool(consts.ProtocolFrancium, consts.FranciumLendingProgram),
		NewObligationPool(consts.ProtocolPort, consts.PortProgram),
		NewLeveraged(consts.ProtocolSolend, consts.SolendProgram),
	)
}
