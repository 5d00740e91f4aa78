package adapter

import (
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// 借还协议账户下标
//
//	borrow / repay: obligation, price_account, borrow_reserve, borrow_liquidity_supply, lending_market, market_authority
const (
	levObligation = iota
	levPrice
	levReserve
	levLiquiditySupply
	levLendingMarket
	levMarketAuthority
)

// Leveraged 在 ObligationPool 基础上以存款为抵押借出 borrow_mint（Solend 式）
type Leveraged struct {
	*ObligationPool
}

func NewLeveraged(id uint8, program types.Pubkey) *Leveraged {
	return &Leveraged{ObligationPool: NewObligationPool(id, program)}
}

var (
	_ Protocol    = (*Leveraged)(nil)
	_ Initializer = (*Leveraged)(nil)
	_ Leverage    = (*Leveraged)(nil)
	_ Protocol    = (*RawPool)(nil)
)

func (p *Leveraged) Obligation(c *Context) (*lending.Obligation, error) {
	key, err := c.Account(levObligation)
	if err != nil {
		return nil, err
	}
	return p.loadObligation(c, key)
}

func (p *Leveraged) borrowAccounts(c *Context) (lending.ReserveAccounts, error) {
	if len(c.Accounts) <= levMarketAuthority {
		return lending.ReserveAccounts{}, vaulterr.Wrap(vaulterr.ErrInvalidArraySize, "borrow needs %d accounts", levMarketAuthority+1)
	}
	return lending.ReserveAccounts{
		Reserve:         c.Accounts[levReserve],
		LiquiditySupply: c.Accounts[levLiquiditySupply],
		LendingMarket:   c.Accounts[levLendingMarket],
		MarketAuthority: c.Accounts[levMarketAuthority],
	}, nil
}

func (p *Leveraged) Borrow(c *Context, amount uint64) error {
	r, err := p.borrowAccounts(c)
	if err != nil {
		return err
	}
	ix := lending.BorrowObligationLiquidity(p.program, amount, c.Generic[0], r, c.Accounts[levObligation], c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}

func (p *Leveraged) Repay(c *Context, amount uint64) error {
	r, err := p.borrowAccounts(c)
	if err != nil {
		return err
	}
	ix := lending.RepayObligationLiquidity(p.program, amount, c.Generic[0], r, c.Accounts[levObligation], c.VaultKey)
	return c.RT.InvokeSigned(ix, c.Signer())
}
