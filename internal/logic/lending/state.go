// Package lending 外部借贷协议（SPL token-lending 系）中 Vault 用到的账户字段与指令。
package lending

import (
	"fmt"

	"github.com/near/borsh-go"

	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

type ReserveLiquidity struct {
	MintPubkey         types.Pubkey
	MintDecimals       uint8
	SupplyPubkey       types.Pubkey
	OraclePubkey       types.Pubkey
	AvailableAmount    uint64
	BorrowedAmountWads wad.U192
	MarketPrice        wad.U192 // 每单位代币价值（WAD）
}

type ReserveCollateral struct {
	MintPubkey      types.Pubkey
	MintTotalSupply uint64
	SupplyPubkey    types.Pubkey
}

type ReserveConfig struct {
	LoanToValueRatio     uint8 // 百分比
	LiquidationThreshold uint8 // 百分比
}

type Reserve struct {
	Version       uint8
	LendingMarket types.Pubkey
	Liquidity     ReserveLiquidity
	Collateral    ReserveCollateral
	Config        ReserveConfig
}

type ObligationCollateral struct {
	DepositReserve  types.Pubkey
	DepositedAmount uint64
	MarketValue     wad.U192
}

type ObligationLiquidity struct {
	BorrowReserve      types.Pubkey
	BorrowedAmountWads wad.U192
	MarketValue        wad.U192
}

type Obligation struct {
	Version              uint8
	LendingMarket        types.Pubkey
	Owner                types.Pubkey
	DepositedValue       wad.U192
	BorrowedValue        wad.U192
	AllowedBorrowValue   wad.U192
	UnhealthyBorrowValue wad.U192
	Deposits             []ObligationCollateral
	Borrows              []ObligationLiquidity
}

const (
	ReserveVersion    uint8 = 1
	ObligationVersion uint8 = 1
)

// TotalLiquidity available + borrowed_wads
func (r *Reserve) TotalLiquidity() (wad.Decimal, error) {
	return wad.DecimalFromU64(r.Liquidity.AvailableAmount).TryAdd(wad.DecimalFromScaled(r.Liquidity.BorrowedAmountWads))
}

// CollateralExchangeRate mint_supply / total_liquidity，任一为 0 时为 1
func (r *Reserve) CollateralExchangeRate() (wad.Rate, error) {
	total, err := r.TotalLiquidity()
	if err != nil {
		return wad.Rate{}, err
	}
	if r.Collateral.MintTotalSupply == 0 || total.IsZero() {
		return wad.RateOne(), nil
	}
	rate, err := wad.DecimalFromU64(r.Collateral.MintTotalSupply).TryDiv(total)
	if err != nil {
		return wad.Rate{}, err
	}
	return wad.RateFromDecimal(rate)
}

// LiquidityToCollateral floor(liquidity * rate)
func (r *Reserve) LiquidityToCollateral(liquidity uint64) (uint64, error) {
	rate, err := r.CollateralExchangeRate()
	if err != nil {
		return 0, err
	}
	d, err := wad.DecimalFromU64(liquidity).TryMulRate(rate)
	if err != nil {
		return 0, err
	}
	return d.TryFloorU64()
}

// CollateralToLiquidity floor(collateral / rate)
func (r *Reserve) CollateralToLiquidity(collateral uint64) (uint64, error) {
	rate, err := r.CollateralExchangeRate()
	if err != nil {
		return 0, err
	}
	d, err := wad.DecimalFromU64(collateral).TryDivRate(rate)
	if err != nil {
		return 0, err
	}
	return d.TryFloorU64()
}

func (o *Obligation) FindDeposit(reserve types.Pubkey) (int, bool) {
	for i := range o.Deposits {
		if o.Deposits[i].DepositReserve == reserve {
			return i, true
		}
	}
	return -1, false
}

func (o *Obligation) FindBorrow(reserve types.Pubkey) (int, bool) {
	for i := range o.Borrows {
		if o.Borrows[i].BorrowReserve == reserve {
			return i, true
		}
	}
	return -1, false
}

// DepositedCollateral 指定 reserve 上的抵押数量
func (o *Obligation) DepositedCollateral(reserve types.Pubkey) uint64 {
	if i, ok := o.FindDeposit(reserve); ok {
		return o.Deposits[i].DepositedAmount
	}
	return 0
}

func DecodeReserve(data []byte) (*Reserve, error) {
	var r Reserve
	if err := borsh.Deserialize(&r, data); err != nil {
		return nil, fmt.Errorf("decode reserve: %w", err)
	}
	if r.Version != ReserveVersion {
		return nil, fmt.Errorf("decode reserve: unexpected version %d", r.Version)
	}
	return &r, nil
}

func EncodeReserve(r *Reserve) ([]byte, error) {
	return borsh.Serialize(*r)
}

func DecodeObligation(data []byte) (*Obligation, error) {
	var o Obligation
	if err := borsh.Deserialize(&o, data); err != nil {
		return nil, fmt.Errorf("decode obligation: %w", err)
	}
	if o.Version != ObligationVersion {
		return nil, fmt.Errorf("decode obligation: unexpected version %d", o.Version)
	}
	return &o, nil
}

func EncodeObligation(o *Obligation) ([]byte, error) {
	return borsh.Serialize(*o)
}
