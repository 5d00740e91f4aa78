package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// 单协议 Vault：slot 100 存入 1_000_000，slot 5000 记录收益
func newRewardedVault(t *testing.T, rewards int64) *Vault {
	v := NewVault(InitParams{InputMint: consts.USDCMint})
	require.NoError(t, v.AddProtocol(consts.ProtocolSolend, 100))
	p := &v.Protocols[0]
	p.Weight = consts.WeightsScale
	require.NoError(t, p.UpdateAfterDeposit(100, 1_000_000))
	require.NoError(t, p.Rewards.Update(5000, rewards, p.Amount))
	v.CurrentTVL = 1_000_000
	return v
}

func TestRefreshWeights_CreditsRewardsAndFee(t *testing.T) {
	v := newRewardedVault(t, 10_000)

	res, err := v.RefreshWeights(5010, 1_000_000)
	require.NoError(t, err)

	assert.Equal(t, int64(10_000), res.RewardsSum)
	assert.Equal(t, LpPrice{TotalTokens: 1_000_000, MintedTokens: 1_000_000}, res.CurrentPrice)
	assert.Equal(t, LpPrice{TotalTokens: 1_000_000, MintedTokens: 1_000_000}, v.PreviousLpPrice)
	// 100*10000*1e6 / (1e6 + 900*10000/1000) / 1000
	assert.Equal(t, uint64(991), res.LpFee)
	assert.Equal(t, uint64(1_010_000), v.CurrentTVL)
	assert.Equal(t, uint64(1_010_000), v.Protocols[0].Amount)
	assert.Equal(t, int64(0), v.Protocols[0].Rewards.Amount)
	assert.Equal(t, uint64(5000), v.Protocols[0].Rewards.DepositedIntegral.InitialSlot)
	assert.True(t, v.Protocols[0].Rewards.DepositedIntegral.Accumulator.IsZero())
	assert.Equal(t, int64(5010), v.LastRefreshTime)

	// 铸造手续费后价格仍不低于快照
	after := v.CurrentLpPrice(1_000_000 + res.LpFee)
	assert.True(t, after.GreaterOrEqual(v.PreviousLpPrice))
}

func TestLpFee(t *testing.T) {
	// 100*1000*1000 / (10000 + 900) / 1000
	fee, err := lpFee(1000, 1000, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), fee)

	fee, err = lpFee(0, 1000, 10_000)
	require.NoError(t, err)
	assert.Zero(t, fee)

	_, err = lpFee(0, 0, 0)
	assert.ErrorIs(t, err, vaulterr.ErrMathOverflow)
}

func TestRefreshWeights_DebitsLoss(t *testing.T) {
	v := newRewardedVault(t, -5000)

	res, err := v.RefreshWeights(5010, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.LpFee)
	assert.Equal(t, uint64(995_000), v.CurrentTVL)
	assert.Equal(t, uint64(995_000), v.Protocols[0].Amount)
	assert.Equal(t, LpPrice{TotalTokens: 995_000, MintedTokens: 1_000_000}, v.PreviousLpPrice)
}

func TestRefreshWeights_Gates(t *testing.T) {
	v := newRewardedVault(t, 10_000)

	_, err := v.RefreshWeights(3000, 1_000_000)
	assert.ErrorIs(t, err, vaulterr.ErrForbiddenRefresh, "间隔必须严格大于 min_elapsed_time")

	_, err = v.RefreshWeights(5010, 1_000_000)
	require.NoError(t, err)

	_, err = v.RefreshWeights(5100, 1_000_000)
	assert.ErrorIs(t, err, vaulterr.ErrForbiddenRefresh)

	// 收益停留在 slot 5000，已过期
	_, err = v.RefreshWeights(9000, 1_000_000)
	assert.ErrorIs(t, err, vaulterr.ErrStaleProtocolTVL)

	require.NoError(t, v.Protocols[0].Rewards.Update(8990, 0, v.Protocols[0].Amount))
	_, err = v.RefreshWeights(9000, 1_000_000)
	assert.NoError(t, err)
}

func TestRefreshWeights_DefaultInterval(t *testing.T) {
	v := newRewardedVault(t, 0)
	v.Refresh.MinElapsedTime = 0
	v.LastRefreshTime = 3520

	_, err := v.RefreshWeights(5020, 1_000_000)
	assert.ErrorIs(t, err, vaulterr.ErrForbiddenRefresh)
	_, err = v.RefreshWeights(5021, 1_000_000)
	assert.NoError(t, err)
}
