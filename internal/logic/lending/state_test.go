package lending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

func TestCollateralExchangeRate_Degenerate(t *testing.T) {
	r := &Reserve{Version: ReserveVersion}
	rate, err := r.CollateralExchangeRate()
	require.NoError(t, err)
	assert.Equal(t, 0, rate.Cmp(wad.RateOne()))

	r.Liquidity.AvailableAmount = 1000
	rate, err = r.CollateralExchangeRate()
	require.NoError(t, err)
	assert.Equal(t, 0, rate.Cmp(wad.RateOne()), "cToken 供应为 0")

	c, err := r.LiquidityToCollateral(777)
	require.NoError(t, err)
	assert.Equal(t, uint64(777), c)
}

func TestCollateralExchangeRate(t *testing.T) {
	r := &Reserve{Version: ReserveVersion}
	// total = 800 + 200 = 1000 liquidity，800 cToken：rate = 0.8
	r.Liquidity.AvailableAmount = 800
	borrowed := wad.DecimalFromU64(200)
	r.Liquidity.BorrowedAmountWads = borrowed.Scaled()
	r.Collateral.MintTotalSupply = 800

	rate, err := r.CollateralExchangeRate()
	require.NoError(t, err)
	assert.Equal(t, "0.8", rate.String())

	c, err := r.LiquidityToCollateral(1001)
	require.NoError(t, err)
	assert.Equal(t, uint64(800), c, "向下取整")

	l, err := r.CollateralToLiquidity(800)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), l)
}

func TestCodecRoundTrip(t *testing.T) {
	o := &Obligation{
		Version:       ObligationVersion,
		LendingMarket: consts.SolendProgram,
		Owner:         consts.VaultProgram,
		Deposits:      []ObligationCollateral{{DepositReserve: types.Pubkey{1}, DepositedAmount: 5}},
	}
	o.AllowedBorrowValue = wad.DecimalFromU64(100).Scaled()
	data, err := EncodeObligation(o)
	require.NoError(t, err)

	got, err := DecodeObligation(data)
	require.NoError(t, err)
	assert.Equal(t, o.Owner, got.Owner)
	assert.Equal(t, o.AllowedBorrowValue, got.AllowedBorrowValue)
	assert.Equal(t, o.Deposits, got.Deposits)
	assert.Empty(t, got.Borrows)
	assert.Equal(t, uint64(5), got.DepositedCollateral(types.Pubkey{1}))
	assert.Equal(t, uint64(0), got.DepositedCollateral(types.Pubkey{2}))

	_, err = DecodeReserve(make([]byte, 400))
	assert.Error(t, err, "版本为 0")
}

func TestAmountData(t *testing.T) {
	data := EncodeAmount(TagBorrowObligationLiquidity, 42)
	assert.Len(t, data, 9)
	tag, amt, err := DecodeAmount(data)
	require.NoError(t, err)
	assert.Equal(t, TagBorrowObligationLiquidity, tag)
	assert.Equal(t, uint64(42), amt)

	tag, amt, err = DecodeAmount([]byte{TagInitObligation})
	require.NoError(t, err)
	assert.Equal(t, TagInitObligation, tag)
	assert.Zero(t, amt)

	assert.Equal(t, "So1endDq2YkqhipRh3WViPa8hdiSpxWy", ObligationSeed(consts.SolendProgram))
}
