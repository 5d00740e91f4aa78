package introspect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

type sysvar struct {
	current int
	ixs     []host.Instruction
}

func (s sysvar) CurrentIndex() (int, error) { return s.current, nil }

func (s sysvar) InstructionAt(i int) (host.Instruction, error) {
	if i < 0 || i >= len(s.ixs) {
		return host.Instruction{}, errors.New("out of range")
	}
	return s.ixs[i], nil
}

var program = consts.VaultProgram

func withdrawIx(t *testing.T, lp uint64) host.Instruction {
	ix, err := instruction.New(program, instruction.NameWithdraw, instruction.WithdrawArgs{LpAmount: lp})
	require.NoError(t, err)
	return ix
}

func protocolIx() host.Instruction {
	return host.Instruction{ProgramID: program, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
}

// tvl=1000, 仓位 amount=600 weight=5000, 上一次价格 1:1
func newVault(t *testing.T) *state.Vault {
	v := state.NewVault(state.InitParams{InputMint: consts.USDCMint})
	require.NoError(t, v.AddProtocol(consts.ProtocolSolend, 0))
	v.Protocols[0].Weight = 5000
	v.Protocols[0].Amount = 600
	v.CurrentTVL = 1000
	v.PreviousLpPrice = state.LpPrice{TotalTokens: 1000, MintedTokens: 1000}
	return v
}

func TestWithdrawAmount_Bundled(t *testing.T) {
	v := newVault(t)
	sys := sysvar{current: 0, ixs: []host.Instruction{protocolIx(), withdrawIx(t, 500)}}

	amt, err := WithdrawAmount(sys, program, DefaultOffset, v, 0, 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), amt)

	// 缺口超过仓位时只取仓位全部
	amt, err = WithdrawAmount(sys, program, DefaultOffset, v, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), amt)

	v.Protocols[0].Amount = 300
	amt, err = WithdrawAmount(sys, program, DefaultOffset, v, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), amt)
}

func TestWithdrawAmount_CoveredByOnHand(t *testing.T) {
	v := newVault(t)
	sys := sysvar{current: 0, ixs: []host.Instruction{protocolIx(), withdrawIx(t, 500)}}
	_, err := WithdrawAmount(sys, program, DefaultOffset, v, 0, 500)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidInstructions)
}

func TestWithdrawAmount_MalformedPayload(t *testing.T) {
	v := newVault(t)
	bad := withdrawIx(t, 500)
	bad.Data = append(bad.Data, 0)
	sys := sysvar{current: 0, ixs: []host.Instruction{protocolIx(), bad}}
	_, err := WithdrawAmount(sys, program, DefaultOffset, v, 0, 0)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidInstructions)

	bad.Data = bad.Data[:instruction.DiscriminatorSize+4]
	sys.ixs[1] = bad
	_, err = WithdrawAmount(sys, program, DefaultOffset, v, 0, 0)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidInstructions)
}

func TestWithdrawAmount_Fallback(t *testing.T) {
	v := newVault(t)

	tests := []struct {
		name string
		sys  sysvar
	}{
		{"没有后续指令", sysvar{current: 0, ixs: []host.Instruction{protocolIx()}}},
		{"后续不是 withdraw", sysvar{current: 0, ixs: []host.Instruction{protocolIx(), protocolIx()}}},
		{"其他程序的 withdraw", sysvar{current: 0, ixs: []host.Instruction{protocolIx(), func() host.Instruction {
			ix := withdrawIx(t, 500)
			ix.ProgramID = types.Pubkey{9}
			return ix
		}()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// target = 1000*5000/10000 = 500，超出 100
			amt, err := WithdrawAmount(tt.sys, program, DefaultOffset, v, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, uint64(100), amt)
		})
	}

	v.Protocols[0].Amount = 500
	_, err := WithdrawAmount(tests[0].sys, program, DefaultOffset, v, 0, 0)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidProtocolWithdraw)
}

func TestWithdrawAmount_Offset(t *testing.T) {
	v := newVault(t)
	sys := sysvar{current: 0, ixs: []host.Instruction{protocolIx(), protocolIx(), withdrawIx(t, 550)}}
	amt, err := WithdrawAmount(sys, program, 2, v, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), amt)
}

func TestIsLastOfDuplicatedIxs(t *testing.T) {
	a := protocolIx()
	b := host.Instruction{ProgramID: program, Data: []byte{9}}

	last, err := IsLastOfDuplicatedIxs(sysvar{current: 0, ixs: []host.Instruction{a, a}})
	require.NoError(t, err)
	assert.False(t, last)

	last, err = IsLastOfDuplicatedIxs(sysvar{current: 1, ixs: []host.Instruction{a, a, b}})
	require.NoError(t, err)
	assert.True(t, last)

	_, err = IsLastOfDuplicatedIxs(sysvar{current: 1, ixs: []host.Instruction{a, a, a}})
	assert.ErrorIs(t, err, vaulterr.ErrInvalidInstructions)

	_, err = IsLastOfDuplicatedIxs(sysvar{current: 0, ixs: []host.Instruction{a, b}})
	assert.ErrorIs(t, err, vaulterr.ErrInvalidInstructions)
}
