package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/wad"
)

func TestParsePriceAccount(t *testing.T) {
	want := Price{
		Price:       15_012_345_678,
		Conf:        3_000_000,
		Expo:        -8,
		Status:      StatusTrading,
		PublishSlot: 123,
		PublishTime: 1_700_000_000,
	}
	got, err := CurrentPrice(EncodePriceAccount(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "150.12345678", got.Value().String())

	d, err := got.Decimal()
	require.NoError(t, err)
	assert.Equal(t, "150.12345678", d.String())
}

func TestCurrentPrice_Errors(t *testing.T) {
	_, err := ParsePriceAccount(make([]byte, 10))
	assert.ErrorIs(t, err, ErrPriceAccountTooShort)

	_, err = ParsePriceAccount(make([]byte, PriceAccountSize))
	assert.ErrorIs(t, err, ErrInvalidMagic)

	data := EncodePriceAccount(Price{Price: 1, Expo: 0, Status: 0})
	_, err = CurrentPrice(data)
	assert.ErrorIs(t, err, ErrNotTrading)

	_, err = Price{Price: -1}.Decimal()
	assert.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestPriceDecimal_PositiveExpo(t *testing.T) {
	d, err := Price{Price: 3, Expo: 2}.Decimal()
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(wad.DecimalFromU64(300)))
}

func TestCheckConfidence(t *testing.T) {
	p := Price{Price: 100_000_000, Conf: 400_000, Expo: -8} // 1.0 ± 0.004
	assert.NoError(t, CheckConfidence(consts.USDCMint, p))

	p.Conf = 600_000
	assert.Error(t, CheckConfidence(consts.USDCMint, p), "稳定币 0.6% 超限")
	assert.NoError(t, CheckConfidence(consts.WSOLMint, p))
}
