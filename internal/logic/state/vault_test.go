package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

func newTestVault(t *testing.T, ids ...uint8) *Vault {
	v := NewVault(InitParams{
		SeedNumber: 1,
		Bumps:      Bumps{Vault: 255, LpMint: 254, TicketMint: 253},
		InputMint:  consts.USDCMint,
		BorrowMint: consts.WSOLMint,
	})
	for _, id := range ids {
		require.NoError(t, v.AddProtocol(id, 0))
	}
	return v
}

func TestNewVault_Defaults(t *testing.T) {
	v := newTestVault(t)
	assert.Equal(t, consts.VaultVersion, v.Version)
	assert.Equal(t, int64(3000), v.Refresh.MinElapsedTime)
	assert.Equal(t, uint64(0), v.Refresh.MinDepositLamports)
	assert.Equal(t, uint64(0), v.CurrentTVL)
	assert.True(t, v.PreviousLpPrice.IsZero())
	assert.Empty(t, v.Protocols)
}

func TestVault_AddProtocol(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend)

	assert.ErrorIs(t, v.AddProtocol(consts.ProtocolSolend, 0), vaulterr.ErrProtocolAlreadyExists)
	assert.ErrorIs(t, v.AddProtocol(99, 0), vaulterr.ErrInvalidProtocolID)

	idx, err := v.ProtocolPosition(consts.ProtocolSolend)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = v.ProtocolPosition(consts.ProtocolPort)
	assert.ErrorIs(t, err, vaulterr.ErrProtocolNotFoundInVault)

	v.Protocols = make([]Position, consts.MaxProtocols)
	for i := range v.Protocols {
		v.Protocols[i].ProtocolID = 200 + uint8(i)
	}
	assert.ErrorIs(t, v.AddProtocol(consts.ProtocolPort, 0), vaulterr.ErrInvalidArraySize)
}

func TestVault_SetProtocolWeights(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend, consts.ProtocolPort)

	assert.ErrorIs(t, v.SetProtocolWeights([]uint32{10_000}), vaulterr.ErrInvalidArraySize)
	assert.ErrorIs(t, v.SetProtocolWeights([]uint32{5000, 4999}), vaulterr.ErrInvalidWeights)
	require.NoError(t, v.SetProtocolWeights([]uint32{0, 0}))
	require.NoError(t, v.SetProtocolWeights([]uint32{6000, 4000}))
	assert.Equal(t, uint32(6000), v.Protocols[0].Weight)
}

func TestVault_CalculateDeposit(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend, consts.ProtocolPort)
	require.NoError(t, v.SetProtocolWeights([]uint32{6000, 4000}))
	v.CurrentTVL = 1_000_000

	amt, err := v.CalculateDeposit(0, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(600_000), amt)

	amt, err = v.CalculateDeposit(0, 250_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000), amt, "不超过 on-hand")

	v.Protocols[1].Amount = 400_000
	_, err = v.CalculateDeposit(1, 1_000_000)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidProtocolDeposit, "已达到目标")

	v.Refresh.MinDepositLamports = 300_000
	_, err = v.CalculateDeposit(0, 250_000)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidProtocolDeposit, "低于最小存款")

	_, err = v.CalculateDeposit(5, 1)
	assert.ErrorIs(t, err, vaulterr.ErrProtocolNotFoundInVault)
}

func TestVault_CalculateWithdraw(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend, consts.ProtocolPort)
	require.NoError(t, v.SetProtocolWeights([]uint32{6000, 4000}))
	v.CurrentTVL = 1_000_000
	v.Protocols[0].Amount = 700_000
	v.Protocols[1].Amount = 300_000

	amt, err := v.CalculateWithdraw(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), amt, "按权重取出超出部分")

	_, err = v.CalculateWithdraw(1, 0)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidProtocolWithdraw)

	amt, err = v.CalculateWithdraw(1, 50_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), amt, "用户缺口")

	amt, err = v.CalculateWithdraw(1, 900_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000), amt, "不超过仓位")

	v.Protocols[1].Amount = 0
	_, err = v.CalculateWithdraw(1, 10)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidProtocolWithdraw)
}

func TestVault_CheckLpPrice(t *testing.T) {
	v := newTestVault(t)
	assert.NoError(t, v.CheckLpPrice(LpPrice{TotalTokens: 1, MintedTokens: 100}), "空快照不检查")

	v.PreviousLpPrice = LpPrice{TotalTokens: 1_000_000, MintedTokens: 1_000_000}
	assert.NoError(t, v.CheckLpPrice(LpPrice{TotalTokens: 1_000_001, MintedTokens: 1_000_000}))
	err := v.CheckLpPrice(LpPrice{TotalTokens: 999_999, MintedTokens: 1_000_000})
	assert.ErrorIs(t, err, vaulterr.ErrInvalidLpPrice)
}

func TestVault_UpdateProtocolWeights(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend, consts.ProtocolPort)
	require.NoError(t, v.SetProtocolWeights([]uint32{5000, 5000}))
	avg, err := wad.U128From64(1000).MulU64(wad.WAD)
	require.NoError(t, err)
	v.Protocols[0].Rewards.DepositedAvgWad = avg
	v.Protocols[0].Rewards.Amount = 30
	v.Protocols[1].Rewards.DepositedAvgWad = avg
	v.Protocols[1].Rewards.Amount = 10

	require.NoError(t, v.UpdateProtocolWeights())
	assert.Equal(t, uint32(7500), v.Protocols[0].Weight)
	assert.Equal(t, uint32(2500), v.Protocols[1].Weight)
}

func TestVault_UpdateProtocolWeights_ManyProtocols(t *testing.T) {
	v := newTestVault(t, consts.ProtocolMango, consts.ProtocolSolend, consts.ProtocolPort,
		consts.ProtocolTulip, consts.ProtocolFrancium)
	data := []struct {
		avg     uint64
		rewards int64
	}{
		{66709779, 21},
		{666831006405, 3521693},
		{66709780, 139},
		{66709783, 318},
		{66709785, 532},
	}
	for i, d := range data {
		v.Protocols[i].Weight = 1
		avg, err := wad.U128From64(d.avg).MulU64(wad.WAD)
		require.NoError(t, err)
		v.Protocols[i].Rewards.DepositedAvgWad = avg
		v.Protocols[i].Rewards.Amount = d.rewards
	}

	require.NoError(t, v.UpdateProtocolWeights())

	var sum uint32
	for _, p := range v.Protocols {
		assert.GreaterOrEqual(t, p.Weight, uint32(1), "活跃协议至少为最低权重")
		sum += p.Weight
	}
	assert.Equal(t, consts.WeightsScale, sum)
	assert.Greater(t, v.Protocols[1].Weight, uint32(9000), "收益最高的协议获得大部分权重")
}

func TestVault_UpdateProtocolWeights_NoRewards(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend, consts.ProtocolPort)
	require.NoError(t, v.SetProtocolWeights([]uint32{6000, 4000}))
	avg, err := wad.U128From64(1000).MulU64(wad.WAD)
	require.NoError(t, err)
	v.Protocols[0].Rewards.DepositedAvgWad = avg

	require.NoError(t, v.UpdateProtocolWeights())
	assert.Equal(t, uint32(6000), v.Protocols[0].Weight, "无收益时保持不变")
}

func TestVault_Codec(t *testing.T) {
	v := newTestVault(t, consts.ProtocolSolend, consts.ProtocolFrancium)
	v.Paused = true
	v.TreasuryLpAccount = types.PubkeyFromBase58(consts.TreasuryStr)
	v.LastRefreshTime = 12345
	v.CurrentTVL = 1_000_000
	v.PreviousLpPrice = LpPrice{TotalTokens: 1_000_000, MintedTokens: 999_000}
	v.Protocols[0].Weight = 10_000
	v.Protocols[0].Amount = 600_000
	v.Protocols[0].Borrowed = 7
	v.Protocols[0].Rewards.Amount = -3
	v.Protocols[0].Rewards.DepositedAvgWad = wad.U128{1, 2}
	v.Protocols[0].SetHashes(types.CheckHashOf(consts.SolendProgram), types.CheckHash{9}, types.CheckHash{8})

	data, err := EncodeVault(v)
	require.NoError(t, err)
	assert.Equal(t, VaultDiscriminator[:], data[:DiscriminatorSize])
	assert.Equal(t, DiscriminatorSize+vaultFixedSize+2*PositionSize, len(data))

	got, err := DecodeVault(data)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	data[0] ^= 0xff
	_, err = DecodeVault(data)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidOwner)
}
