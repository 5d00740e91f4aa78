package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

var band = Band{Min: consts.MinHealthFactor, Optimal: consts.OptimalHealthFactor, Max: consts.MaxHealthFactor}

func values(allowed, unhealthy, borrowed uint64) Values {
	return Values{
		Allowed:   wad.DecimalFromU64(allowed),
		Unhealthy: wad.DecimalFromU64(unhealthy),
		Borrowed:  wad.DecimalFromU64(borrowed),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		v    Values
		want Health
	}{
		{"无授信", values(0, 0, 0), Keto},
		{"低于下限", values(100, 60, 40), Keto},
		{"恰好下限", values(100, 60, 70), Keto},
		{"区间内", values(100, 60, 72), Vegan},
		{"恰好上限", values(100, 60, 75), Vegetarian},
		{"超出上限", values(100, 60, 90), Vegetarian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := band.Classify(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h, h.String())
		})
	}
}

func TestBorrowValue_InsideBand(t *testing.T) {
	// allowed=100, borrowed=40 时目标为 100*0.70-40
	v := values(100, 60, 40)
	got, err := band.BorrowValue(v)
	require.NoError(t, err)
	assert.Equal(t, "30", got.String())

	v = values(200, 130, 40)
	got, err = band.BorrowValue(v)
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())
}

func TestBorrowValue_Unhealthy(t *testing.T) {
	_, err := band.BorrowValue(values(200, 150, 40))
	assert.ErrorIs(t, err, vaulterr.ErrUnhealthyOperation)

	// 相等同样拒绝
	_, err = band.BorrowValue(values(200, 140, 40))
	assert.ErrorIs(t, err, vaulterr.ErrUnhealthyOperation)
}

// allowed=100, unhealthy=120, borrowed=40：最优位置 70 不高于 unhealthy 120，
// 区间检查先于目标计算，借款被拒绝而不是返回 30
func TestBorrowValue_UnhealthyAboveOptimalRefused(t *testing.T) {
	v := values(100, 120, 40)
	_, err := band.BorrowValue(v)
	assert.ErrorIs(t, err, vaulterr.ErrUnhealthyOperation)

	_, err = band.BorrowAmount(v, wad.DecimalFromU64(1), 6)
	assert.ErrorIs(t, err, vaulterr.ErrUnhealthyOperation)
}

func TestBorrowValue_AlreadyAtOptimal(t *testing.T) {
	_, err := band.BorrowValue(values(100, 60, 70))
	assert.ErrorIs(t, err, vaulterr.ErrInvalidBorrow)
}

func TestRepayValue(t *testing.T) {
	got, err := band.RepayValue(values(100, 60, 80))
	require.NoError(t, err)
	assert.Equal(t, "10", got.String())

	_, err = band.RepayValue(values(100, 60, 70))
	assert.ErrorIs(t, err, vaulterr.ErrInvalidReapy)
}

func TestAmounts_Rounding(t *testing.T) {
	// 价格 3，精度 2：30 价值 -> 1000 个最小单位；31 价值 -> 1033.33
	price := wad.DecimalFromU64(3)

	amt, err := band.BorrowAmount(values(100, 60, 40), price, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), amt)

	amt, err = band.BorrowAmount(values(100, 60, 39), price, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1033), amt, "借款向下取整")

	amt, err = band.RepayAmount(values(100, 60, 81), price, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(367), amt, "还款向上取整")

	_, err = band.BorrowAmount(values(100, 60, 40), wad.Zero(), 2)
	assert.ErrorIs(t, err, vaulterr.ErrMathOverflow)
}

// 借款后不超过最优位置，且最优位置高于清算线
func TestBorrowAmount_StaysInBand(t *testing.T) {
	price := wad.DecimalFromU64(7)
	for _, borrowed := range []uint64{0, 1, 13, 44, 69} {
		v := values(100, 50, borrowed)
		amt, err := band.BorrowAmount(v, price, 6)
		require.NoError(t, err)

		added, err := wad.DecimalFromU64(amt).TryMul(price)
		require.NoError(t, err)
		added, err = added.TryDivU64(1_000_000)
		require.NoError(t, err)
		after, err := v.Borrowed.TryAdd(added)
		require.NoError(t, err)
		assert.False(t, after.Gt(wad.DecimalFromU64(70)), "borrowed=%d after=%s", borrowed, after)
	}
}

func TestValuesOf(t *testing.T) {
	o := &lending.Obligation{
		AllowedBorrowValue:   wad.DecimalFromU64(100).Scaled(),
		UnhealthyBorrowValue: wad.DecimalFromU64(120).Scaled(),
		BorrowedValue:        wad.DecimalFromU64(40).Scaled(),
	}
	v := ValuesOf(o)
	assert.Equal(t, "100", v.Allowed.String())
	assert.Equal(t, "120", v.Unhealthy.String())
	assert.Equal(t, "40", v.Borrowed.String())
}
