package adapter

import (
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// 协议账户下标
//
//	deposit / withdraw: vault_collateral, reserve, liquidity_supply, collateral_mint, lending_market, market_authority
//	tvl:                reserve, vault_collateral
const (
	rawCollateral = iota
	rawReserve
	rawLiquiditySupply
	rawCollateralMint
	rawLendingMarket
	rawMarketAuthority
)

// RawPool 只存不借的 lending pool（Francium 式）：存入换 cToken，cToken 留在 vault 名下
type RawPool struct {
	id      uint8
	program types.Pubkey
}

func NewRawPool(id uint8, program types.Pubkey) *RawPool {
	return &RawPool{id: id, program: program}
}

func (p *RawPool) ID() uint8               { return p.id }
func (p *RawPool) ProgramID() types.Pubkey { return p.program }

func (p *RawPool) reserveAccounts(c *Context) (lending.ReserveAccounts, error) {
	if len(c.Accounts) <= rawMarketAuthority {
		return lending.ReserveAccounts{}, vaulterr.Wrap(vaulterr.ErrInvalidArraySize, "raw pool needs %d accounts", rawMarketAuthority+1)
	}
	return lending.ReserveAccounts{
		Reserve:         c.Accounts[rawReserve],
		LiquiditySupply: c.Accounts[rawLiquiditySupply],
		CollateralMint:  c.Accounts[rawCollateralMint],
		LendingMarket:   c.Accounts[rawLendingMarket],
		MarketAuthority: c.Accounts[rawMarketAuthority],
	}, nil
}

func (p *RawPool) Deposit(c *Context, amount uint64) error {
	r, err := p.reserveAccounts(c)
	if err != nil {
		return err
	}
	ix := lending.DepositReserveLiquidity(p.program, amount, c.Generic[0], c.Accounts[rawCollateral], r, c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}

func (p *RawPool) Withdraw(c *Context, collateral uint64) error {
	r, err := p.reserveAccounts(c)
	if err != nil {
		return err
	}
	ix := lending.RedeemReserveCollateral(p.program, collateral, c.Accounts[rawCollateral], c.Generic[0], r, c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}

func (p *RawPool) LiquidityToCollateral(c *Context, amount uint64) (uint64, error) {
	key, err := c.Account(rawReserve)
	if err != nil {
		return 0, err
	}
	reserve, err := loadReserve(c, p.program, key)
	if err != nil {
		return 0, err
	}
	return reserve.LiquidityToCollateral(amount)
}

// MaxWithdrawable tvl 账户顺序为 reserve, vault_collateral
func (p *RawPool) MaxWithdrawable(c *Context) (uint64, error) {
	reserveKey, err := c.Account(0)
	if err != nil {
		return 0, err
	}
	collateralKey, err := c.Account(1)
	if err != nil {
		return 0, err
	}
	reserve, err := loadReserve(c, p.program, reserveKey)
	if err != nil {
		return 0, err
	}
	if err := c.checkVaultTokenAccount(collateralKey, reserve.Collateral.MintPubkey); err != nil {
		return 0, err
	}
	collateral, err := c.RT.Balance(collateralKey)
	if err != nil {
		return 0, err
	}
	return reserve.CollateralToLiquidity(collateral)
}

// loadReserve reserve 必须属于协议程序
func loadReserve(c *Context, program, key types.Pubkey) (*lending.Reserve, error) {
	owner, err := c.RT.AccountOwner(key)
	if err != nil {
		return nil, err
	}
	if owner != program {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidOwner, "reserve %s owned by %s", key, owner)
	}
	data, err := c.RT.AccountData(key)
	if err != nil {
		return nil, err
	}
	return lending.DecodeReserve(data)
}
