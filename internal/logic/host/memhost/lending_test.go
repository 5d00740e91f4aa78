package memhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

type lendingFixture struct {
	h        *Host
	program  types.Pubkey
	user     types.Pubkey
	userLiq  types.Pubkey
	userColl types.Pubkey
	liqMint  types.Pubkey
	accounts lending.ReserveAccounts
}

func newLendingFixture(t *testing.T, ltv uint8) *lendingFixture {
	h := New()
	program := key(0x50)
	h.Register(program, NewLendingProgram())

	market := key(0x51)
	marketAuth, _, err := types.FindProgramAddress([][]byte{market.Bytes()}, program)
	require.NoError(t, err)

	f := &lendingFixture{
		h:        h,
		program:  program,
		user:     key(0x60),
		userLiq:  key(0x61),
		userColl: key(0x62),
		liqMint:  key(0x52),
		accounts: lending.ReserveAccounts{
			Reserve:          key(0x53),
			LiquiditySupply:  key(0x54),
			CollateralMint:   key(0x55),
			CollateralSupply: key(0x56),
			LendingMarket:    market,
			MarketAuthority:  marketAuth,
		},
	}
	h.CreateMint(f.liqMint, key(0x99), 6)
	h.CreateMint(f.accounts.CollateralMint, marketAuth, 6)
	h.CreateTokenAccount(f.accounts.LiquiditySupply, f.liqMint, marketAuth, 0)
	h.CreateTokenAccount(f.accounts.CollateralSupply, f.accounts.CollateralMint, marketAuth, 0)
	h.CreateTokenAccount(f.userLiq, f.liqMint, f.user, 10_000)
	h.CreateTokenAccount(f.userColl, f.accounts.CollateralMint, f.user, 0)

	r := &lending.Reserve{
		Version:       lending.ReserveVersion,
		LendingMarket: market,
		Liquidity: lending.ReserveLiquidity{
			MintPubkey:   f.liqMint,
			MintDecimals: 6,
			SupplyPubkey: f.accounts.LiquiditySupply,
			MarketPrice:  wad.DecimalFromU64(1).Scaled(),
		},
		Collateral: lending.ReserveCollateral{
			MintPubkey:   f.accounts.CollateralMint,
			SupplyPubkey: f.accounts.CollateralSupply,
		},
		Config: lending.ReserveConfig{LoanToValueRatio: ltv, LiquidationThreshold: ltv + 5},
	}
	data, err := lending.EncodeReserve(r)
	require.NoError(t, err)
	h.SetAccount(f.accounts.Reserve, program, data)
	return f
}

func (f *lendingFixture) reserve(t *testing.T) *lending.Reserve {
	a, ok := f.h.Account(f.accounts.Reserve)
	require.True(t, ok)
	r, err := lending.DecodeReserve(a.Data)
	require.NoError(t, err)
	return r
}

func TestLending_DepositRedeemWithInterest(t *testing.T) {
	f := newLendingFixture(t, 80)
	signers := []types.Pubkey{f.user}

	require.NoError(t, f.h.Process(signers,
		lending.DepositReserveLiquidity(f.program, 1000, f.userLiq, f.userColl, f.accounts, f.user)))
	assert.Equal(t, uint64(1000), f.h.TokenBalance(f.userColl))
	assert.Equal(t, uint64(9000), f.h.TokenBalance(f.userLiq))

	require.NoError(t, f.h.AccrueInterest(f.accounts.Reserve, 100))
	r := f.reserve(t)
	assert.Equal(t, uint64(1100), r.Liquidity.AvailableAmount)
	assert.Equal(t, uint64(1000), r.Collateral.MintTotalSupply)

	require.NoError(t, f.h.Process(signers,
		lending.RedeemReserveCollateral(f.program, 1000, f.userColl, f.userLiq, f.accounts, f.user)))
	assert.Equal(t, uint64(10_100), f.h.TokenBalance(f.userLiq))
	assert.Equal(t, uint64(0), f.h.MintSupply(f.accounts.CollateralMint))
}

func TestLending_DepositWithoutUserSignature(t *testing.T) {
	f := newLendingFixture(t, 80)
	err := f.h.Process(nil,
		lending.DepositReserveLiquidity(f.program, 1000, f.userLiq, f.userColl, f.accounts, f.user))
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestLending_ObligationBorrowLimit(t *testing.T) {
	f := newLendingFixture(t, 80)
	signers := []types.Pubkey{f.user}
	obligation := key(0x70)
	f.h.SetAccount(obligation, f.program, nil)

	require.NoError(t, f.h.Process(signers,
		lending.InitObligation(f.program, obligation, f.accounts.LendingMarket, f.user)))
	assert.ErrorIs(t, f.h.Process(signers,
		lending.InitObligation(f.program, obligation, f.accounts.LendingMarket, f.user)), ErrObligationInitialized)

	require.NoError(t, f.h.Process(signers,
		lending.DepositReserveLiquidityAndObligationCollateral(f.program, 1000, f.userLiq, f.userColl,
			f.accounts, obligation, f.user)))
	assert.Equal(t, uint64(1000), f.h.TokenBalance(f.accounts.CollateralSupply))
	assert.Equal(t, uint64(0), f.h.TokenBalance(f.userColl))

	err := f.h.Process(signers,
		lending.BorrowObligationLiquidity(f.program, 900, f.userLiq, f.accounts, obligation, f.user))
	assert.ErrorIs(t, err, ErrBorrowTooLarge)

	require.NoError(t, f.h.Process(signers,
		lending.BorrowObligationLiquidity(f.program, 500, f.userLiq, f.accounts, obligation, f.user)))
	assert.Equal(t, uint64(9500), f.h.TokenBalance(f.userLiq))

	a, _ := f.h.Account(obligation)
	o, err := lending.DecodeObligation(a.Data)
	require.NoError(t, err)
	assert.Equal(t, "0.0008", wad.DecimalFromScaled(o.AllowedBorrowValue).String())
	assert.Equal(t, "0.0005", wad.DecimalFromScaled(o.BorrowedValue).String())

	// 仍有借款时不能全部取回抵押
	err = f.h.Process(signers,
		lending.WithdrawObligationCollateralAndRedeemReserveCollateral(f.program, 1000, f.userColl, f.userLiq,
			f.accounts, obligation, f.user))
	assert.ErrorIs(t, err, ErrWithdrawTooLarge)

	require.NoError(t, f.h.Process(signers,
		lending.RepayObligationLiquidity(f.program, 600, f.userLiq, f.accounts, obligation, f.user)))
	assert.Equal(t, uint64(9000), f.h.TokenBalance(f.userLiq))

	require.NoError(t, f.h.Process(signers,
		lending.WithdrawObligationCollateralAndRedeemReserveCollateral(f.program, 1000, f.userColl, f.userLiq,
			f.accounts, obligation, f.user)))
	assert.Equal(t, uint64(10_000), f.h.TokenBalance(f.userLiq))
}
