package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
)

func TestWithdrawDiscriminator(t *testing.T) {
	// 下一条 withdraw 指令的前 8 字节，协议提现按此识别
	assert.Equal(t, Discriminator{183, 18, 70, 156, 148, 109, 161, 34}, WithdrawDiscriminator)
	assert.NotEqual(t, WithdrawDiscriminator, DepositDiscriminator)
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(NameWithdraw, WithdrawArgs{LpAmount: 1_000_000})
	require.NoError(t, err)
	assert.Len(t, data, DiscriminatorSize+WithdrawArgsSize)
	assert.True(t, Is(data, WithdrawDiscriminator))

	d, payload, err := Split(data)
	require.NoError(t, err)
	assert.Equal(t, WithdrawDiscriminator, d)

	var args WithdrawArgs
	require.NoError(t, DecodeArgs(payload, &args))
	assert.Equal(t, uint64(1_000_000), args.LpAmount)

	_, _, err = Split([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortData)
	assert.False(t, Is([]byte{183, 18}, WithdrawDiscriminator))
}

func TestEncodeNoArgs(t *testing.T) {
	data, err := Encode(ProtocolName(PrefixSolend, OpDeposit), nil)
	require.NoError(t, err)
	assert.Equal(t, NewDiscriminator("solend_deposit"), Discriminator(data))

	ix, err := New(consts.VaultProgram, NameRefreshWeights, nil)
	require.NoError(t, err)
	assert.Equal(t, consts.VaultProgram, ix.ProgramID)
	assert.Len(t, ix.Data, DiscriminatorSize)
}

func TestTicketArgs(t *testing.T) {
	data, err := Encode(NameOpenWithdrawTicket, TicketArgs{LpAmount: 5, Bump: 254})
	require.NoError(t, err)
	assert.Len(t, data, DiscriminatorSize+9)

	var args TicketArgs
	require.NoError(t, DecodeArgs(data[DiscriminatorSize:], &args))
	assert.Equal(t, TicketArgs{LpAmount: 5, Bump: 254}, args)
}

func TestEncode_PointerArgsMatchValues(t *testing.T) {
	cases := []struct {
		name string
		ptr  any
		val  any
		size int
	}{
		{NameWithdraw, &WithdrawArgs{LpAmount: 1_000_000}, WithdrawArgs{LpAmount: 1_000_000}, WithdrawArgsSize},
		{NameDeposit, &DepositArgs{Amount: 1_000_000}, DepositArgs{Amount: 1_000_000}, 8},
		{NameInitializeVault, &InitializeVaultArgs{SeedNumber: 0}, InitializeVaultArgs{SeedNumber: 0}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fromPtr, err := Encode(c.name, c.ptr)
			require.NoError(t, err)
			fromVal, err := Encode(c.name, c.val)
			require.NoError(t, err)
			assert.Equal(t, fromVal, fromPtr)
			assert.Len(t, fromPtr, DiscriminatorSize+c.size, "不能带 Option tag")
		})
	}

	var nilArgs *DepositArgs
	data, err := Encode(NameDeposit, nilArgs)
	require.NoError(t, err)
	assert.Len(t, data, DiscriminatorSize)
}

func TestDecodeArgs_RejectsTrailingBytes(t *testing.T) {
	// 带 Option tag 的 9 字节存款载荷
	payload := []byte{1, 64, 66, 15, 0, 0, 0, 0, 0}
	var args DepositArgs
	assert.ErrorIs(t, DecodeArgs(payload, &args), ErrTrailingData)

	require.NoError(t, DecodeArgs(payload[1:], &args))
	assert.Equal(t, uint64(1_000_000), args.Amount)

	var weights SetProtocolWeightsArgs
	data, err := Encode(NameSetProtocolWeights, &SetProtocolWeightsArgs{Weights: []uint32{5000, 0, 5000}})
	require.NoError(t, err)
	require.NoError(t, DecodeArgs(data[DiscriminatorSize:], &weights))
	assert.Equal(t, []uint32{5000, 0, 5000}, weights.Weights)
	assert.ErrorIs(t, DecodeArgs(append(data[DiscriminatorSize:], 0), &weights), ErrTrailingData)
}
