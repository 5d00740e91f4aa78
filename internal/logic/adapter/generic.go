package adapter

import (
	"math"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/health"
	"lending-vault-sol/internal/logic/introspect"
	"lending-vault-sol/internal/logic/oracle"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

// Initialize 协议需要时执行初始化，否则什么也不做
func Initialize(c *Context, p Protocol) error {
	init, ok := p.(Initializer)
	if !ok {
		return nil
	}
	return init.Initialize(c)
}

// Deposit 把 vault 手上的代币按权重补齐到协议 idx
func Deposit(c *Context, p Protocol) (uint64, error) {
	if err := c.CheckHash(state.OpDeposit); err != nil {
		return 0, err
	}
	input := c.Generic[0]
	if err := c.checkVaultTokenAccount(input, c.Vault.InputMint); err != nil {
		return 0, err
	}
	onHand, err := c.RT.Balance(input)
	if err != nil {
		return 0, err
	}
	amount, err := c.Vault.CalculateDeposit(c.Index, onHand)
	if err != nil {
		return 0, err
	}
	if err := p.Deposit(c, amount); err != nil {
		return 0, err
	}
	if err := c.Position().UpdateAfterDeposit(c.RT.Slot(), amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Withdraw 从协议取回代币：紧跟用户 withdraw 时只补足缺口，否则取回超出权重的部分。
// 仓位按 vault_input 的实际到账数量更新。
func Withdraw(c *Context, p Protocol, offset int) (uint64, error) {
	if err := c.CheckHash(state.OpWithdraw); err != nil {
		return 0, err
	}
	input, sysvar := c.Generic[0], c.Generic[1]
	if sysvar != consts.SysvarInstructions {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidInstructions, "unexpected instructions sysvar %s", sysvar)
	}
	if err := c.checkVaultTokenAccount(input, c.Vault.InputMint); err != nil {
		return 0, err
	}
	before, err := c.RT.Balance(input)
	if err != nil {
		return 0, err
	}
	amount, err := introspect.WithdrawAmount(c.RT, c.RT.ProgramID(), offset, c.Vault, c.Index, before)
	if err != nil {
		return 0, err
	}

	collateral, err := p.LiquidityToCollateral(c, amount)
	if err != nil {
		return 0, err
	}
	if amount < c.Position().Amount {
		// 向下取整可能少取，多赎回一个 cToken
		if collateral, err = wad.AddU64(collateral, 1); err != nil {
			return 0, err
		}
	}
	if err := p.Withdraw(c, collateral); err != nil {
		return 0, err
	}

	after, err := c.RT.Balance(input)
	if err != nil {
		return 0, err
	}
	delta, err := wad.SubU64(after, before)
	if err != nil {
		return 0, err
	}
	if err := c.Position().UpdateAfterWithdraw(c.RT.Slot(), delta); err != nil {
		return 0, err
	}
	return delta, nil
}

// Rewards 记录协议当前收益：可取回数量减去仓位数量，可为负
func Rewards(c *Context, p Protocol) (int64, error) {
	if err := c.CheckHash(state.OpTVL); err != nil {
		return 0, err
	}
	maxWithdrawable, err := p.MaxWithdrawable(c)
	if err != nil {
		return 0, err
	}
	pos := c.Position()
	rewards, err := signedDiff(maxWithdrawable, pos.Amount)
	if err != nil {
		return 0, err
	}
	if err := pos.Rewards.Update(c.RT.Slot(), rewards, pos.Amount); err != nil {
		return 0, err
	}
	return rewards, nil
}

func signedDiff(a, b uint64) (int64, error) {
	if a >= b {
		d := a - b
		if d > math.MaxInt64 {
			return 0, vaulterr.ErrMathOverflow
		}
		return int64(d), nil
	}
	d := b - a
	if d > math.MaxInt64 {
		return 0, vaulterr.ErrMathOverflow
	}
	return -int64(d), nil
}

func leverage(p Protocol) (Leverage, error) {
	l, ok := p.(Leverage)
	if !ok {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidProtocolID, "protocol %s cannot borrow", ProtocolName(p.ID()))
	}
	return l, nil
}

func (c *Context) band() health.Band {
	return health.Band{Min: c.Policy.MinHealth, Optimal: c.Policy.OptimalHealth, Max: c.Policy.MaxHealth}
}

// borrowPrice 借款币价格，价格账户由哈希校验固定为协议账户的第 1 个
func (c *Context) borrowPrice() (wad.Decimal, uint8, error) {
	priceKey, err := c.Account(1)
	if err != nil {
		return wad.Decimal{}, 0, err
	}
	data, err := c.RT.AccountData(priceKey)
	if err != nil {
		return wad.Decimal{}, 0, err
	}
	price, err := oracle.CurrentPrice(data)
	if err != nil {
		return wad.Decimal{}, 0, err
	}
	if err := oracle.CheckConfidence(c.Vault.BorrowMint, price); err != nil {
		return wad.Decimal{}, 0, err
	}
	d, err := price.Decimal()
	if err != nil {
		return wad.Decimal{}, 0, err
	}
	decimals, err := c.RT.Decimals(c.Vault.BorrowMint)
	if err != nil {
		return wad.Decimal{}, 0, err
	}
	return d, decimals, nil
}

// Borrow 按健康度目标借款到 vault_borrow
func Borrow(c *Context, p Protocol) (uint64, error) {
	if err := c.CheckHash(state.OpBorrow); err != nil {
		return 0, err
	}
	l, err := leverage(p)
	if err != nil {
		return 0, err
	}
	if err := c.checkVaultTokenAccount(c.Generic[0], c.Vault.BorrowMint); err != nil {
		return 0, err
	}
	o, err := l.Obligation(c)
	if err != nil {
		return 0, err
	}
	price, decimals, err := c.borrowPrice()
	if err != nil {
		return 0, err
	}
	amount, err := c.band().BorrowAmount(health.ValuesOf(o), price, decimals)
	if err != nil {
		return 0, err
	}
	if err := l.Borrow(c, amount); err != nil {
		return 0, err
	}
	if err := c.Position().UpdateAfterBorrow(c.RT.Slot(), amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Repay 按健康度目标从 vault_borrow 还款，不超过 vault 记录的借款
func Repay(c *Context, p Protocol) (uint64, error) {
	if err := c.CheckHash(state.OpRepay); err != nil {
		return 0, err
	}
	l, err := leverage(p)
	if err != nil {
		return 0, err
	}
	if err := c.checkVaultTokenAccount(c.Generic[0], c.Vault.BorrowMint); err != nil {
		return 0, err
	}
	o, err := l.Obligation(c)
	if err != nil {
		return 0, err
	}
	price, decimals, err := c.borrowPrice()
	if err != nil {
		return 0, err
	}
	amount, err := c.band().RepayAmount(health.ValuesOf(o), price, decimals)
	if err != nil {
		return 0, err
	}
	amount = min(amount, c.Position().Borrowed)
	if amount == 0 {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidReapy, "nothing borrowed")
	}
	if err := l.Repay(c, amount); err != nil {
		return 0, err
	}
	if err := c.Position().UpdateAfterRepay(c.RT.Slot(), amount); err != nil {
		return 0, err
	}
	return amount, nil
}
