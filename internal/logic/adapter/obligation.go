package adapter

import (
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// 协议账户下标
//
//	initialize:         lending_market
//	deposit / withdraw: vault_collateral, reserve, liquidity_supply, collateral_mint, collateral_supply,
//	                    lending_market, market_authority, obligation
//	tvl:                reserve, obligation
const (
	oblCollateral = iota
	oblReserve
	oblLiquiditySupply
	oblCollateralMint
	oblCollateralSupply
	oblLendingMarket
	oblMarketAuthority
	oblObligation
)

// ObligationPool 以 obligation 记账的只存协议（Port 式）：cToken 作为抵押存放在协议内
type ObligationPool struct {
	id      uint8
	program types.Pubkey
}

func NewObligationPool(id uint8, program types.Pubkey) *ObligationPool {
	return &ObligationPool{id: id, program: program}
}

func (p *ObligationPool) ID() uint8               { return p.id }
func (p *ObligationPool) ProgramID() types.Pubkey { return p.program }

// ObligationAddress create_with_seed(vault, market[..32], program)
func ObligationAddress(vault, market, program types.Pubkey) types.Pubkey {
	return types.CreateWithSeed(vault, lending.ObligationSeed(market), program)
}

// Initialize 创建 obligation 账户并调用 init_obligation
func (p *ObligationPool) Initialize(c *Context) error {
	market, err := c.Account(0)
	if err != nil {
		return err
	}
	obligation, err := c.RT.CreateAccountWithSeed(c.VaultKey, lending.ObligationSeed(market), p.program, nil, c.Signer())
	if err != nil {
		return err
	}
	ix := lending.InitObligation(p.program, obligation, market, c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}

func (p *ObligationPool) reserveAccounts(c *Context) (lending.ReserveAccounts, types.Pubkey, error) {
	if len(c.Accounts) <= oblObligation {
		return lending.ReserveAccounts{}, types.Pubkey{},
			vaulterr.Wrap(vaulterr.ErrInvalidArraySize, "obligation pool needs %d accounts", oblObligation+1)
	}
	return lending.ReserveAccounts{
		Reserve:          c.Accounts[oblReserve],
		LiquiditySupply:  c.Accounts[oblLiquiditySupply],
		CollateralMint:   c.Accounts[oblCollateralMint],
		CollateralSupply: c.Accounts[oblCollateralSupply],
		LendingMarket:    c.Accounts[oblLendingMarket],
		MarketAuthority:  c.Accounts[oblMarketAuthority],
	}, c.Accounts[oblObligation], nil
}

func (p *ObligationPool) Deposit(c *Context, amount uint64) error {
	r, obligation, err := p.reserveAccounts(c)
	if err != nil {
		return err
	}
	if _, err := p.loadObligation(c, obligation); err != nil {
		return err
	}
	ix := lending.DepositReserveLiquidityAndObligationCollateral(p.program, amount,
		c.Generic[0], c.Accounts[oblCollateral], r, obligation, c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}

func (p *ObligationPool) Withdraw(c *Context, collateral uint64) error {
	r, obligation, err := p.reserveAccounts(c)
	if err != nil {
		return err
	}
	o, err := p.loadObligation(c, obligation)
	if err != nil {
		return err
	}
	if _, ok := o.FindDeposit(r.Reserve); !ok {
		return vaulterr.Wrap(vaulterr.ErrInvalidObligationReserve, "obligation %s has no deposit in %s", obligation, r.Reserve)
	}
	ix := lending.WithdrawObligationCollateralAndRedeemReserveCollateral(p.program, collateral,
		c.Accounts[oblCollateral], c.Generic[0], r, obligation, c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}

func (p *ObligationPool) LiquidityToCollateral(c *Context, amount uint64) (uint64, error) {
	key, err := c.Account(oblReserve)
	if err != nil {
		return 0, err
	}
	reserve, err := loadReserve(c, p.program, key)
	if err != nil {
		return 0, err
	}
	return reserve.LiquidityToCollateral(amount)
}

// MaxWithdrawable tvl 账户顺序为 reserve, obligation
func (p *ObligationPool) MaxWithdrawable(c *Context) (uint64, error) {
	reserveKey, err := c.Account(0)
	if err != nil {
		return 0, err
	}
	obligationKey, err := c.Account(1)
	if err != nil {
		return 0, err
	}
	reserve, err := loadReserve(c, p.program, reserveKey)
	if err != nil {
		return 0, err
	}
	o, err := p.loadObligation(c, obligationKey)
	if err != nil {
		return 0, err
	}
	return reserve.CollateralToLiquidity(o.DepositedCollateral(reserveKey))
}

// loadObligation obligation 必须属于协议程序且 owner 为 vault
func (p *ObligationPool) loadObligation(c *Context, key types.Pubkey) (*lending.Obligation, error) {
	owner, err := c.RT.AccountOwner(key)
	if err != nil {
		return nil, err
	}
	if owner != p.program {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidOwner, "obligation %s owned by %s", key, owner)
	}
	data, err := c.RT.AccountData(key)
	if err != nil {
		return nil, err
	}
	o, err := lending.DecodeObligation(data)
	if err != nil {
		return nil, err
	}
	if o.Owner != c.VaultKey {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidObligationOwner, "obligation %s belongs to %s", key, o.Owner)
	}
	return o, nil
}
