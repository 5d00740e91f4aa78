package memhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/pkg/types"
)

// pdaProgram 用 PDA 签名把自有代币账户里的钱转出
type pdaProgram struct{}

func (pdaProgram) Process(rt host.Runtime, accounts []host.AccountMeta, data []byte) error {
	src, dst, auth := accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey
	_, bump, err := rt.FindProgramAddress([][]byte{[]byte("auth")}, rt.ProgramID())
	if err != nil {
		return err
	}
	var seeds host.SignerSeeds
	if len(data) == 0 {
		seeds = host.SignerSeeds{[]byte("auth"), {bump}}
	} else {
		// 故意给错种子
		seeds = host.SignerSeeds{[]byte("other"), {bump}}
	}
	return rt.Transfer(src, dst, auth, 10, seeds)
}

func key(b byte) types.Pubkey {
	var k types.Pubkey
	k[0] = b
	k[31] = b
	return k
}

func transferIx(src, dst, authority types.Pubkey, amount uint64) host.Instruction {
	return host.Instruction{
		ProgramID: key(0xee),
		Accounts: []host.AccountMeta{
			host.WritableMeta(src),
			host.WritableMeta(dst),
			host.SignerMeta(authority, false),
		},
		Data: []byte{byte(amount)},
	}
}

// transferProgram 以首个签名者身份转账 data[0] 个代币
type transferProgram struct{}

func (transferProgram) Process(rt host.Runtime, accounts []host.AccountMeta, data []byte) error {
	return rt.Transfer(accounts[0].Pubkey, accounts[1].Pubkey, accounts[2].Pubkey, uint64(data[0]))
}

func TestHost_TransferRequiresSignature(t *testing.T) {
	h := New()
	h.Register(key(0xee), transferProgram{})
	mint, alice, bob := key(1), key(2), key(3)
	h.CreateMint(mint, key(9), 6)
	h.CreateTokenAccount(key(20), mint, alice, 100)
	h.CreateTokenAccount(key(30), mint, bob, 0)

	err := h.Process(nil, transferIx(key(20), key(30), alice, 40))
	assert.ErrorIs(t, err, ErrMissingSignature)

	require.NoError(t, h.Process([]types.Pubkey{alice}, transferIx(key(20), key(30), alice, 40)))
	assert.Equal(t, uint64(60), h.TokenBalance(key(20)))
	assert.Equal(t, uint64(40), h.TokenBalance(key(30)))
	assert.Equal(t, uint64(100), h.MintSupply(mint))

	// bob 签名但不是 alice 账户的所有者
	err = h.Process([]types.Pubkey{bob}, transferIx(key(20), key(30), bob, 1))
	assert.ErrorIs(t, err, ErrOwnerMismatch)
}

func TestHost_RollbackOnFailure(t *testing.T) {
	h := New()
	h.Register(key(0xee), transferProgram{})
	mint, alice := key(1), key(2)
	h.CreateMint(mint, key(9), 6)
	h.CreateTokenAccount(key(20), mint, alice, 50)
	h.CreateTokenAccount(key(30), mint, alice, 0)

	err := h.Process([]types.Pubkey{alice},
		transferIx(key(20), key(30), alice, 30),
		transferIx(key(20), key(30), alice, 30),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "instruction 1")
	assert.Equal(t, uint64(50), h.TokenBalance(key(20)))
	assert.Equal(t, uint64(0), h.TokenBalance(key(30)))
}

func TestHost_PDASigning(t *testing.T) {
	h := New()
	prog := key(0xaa)
	h.Register(prog, pdaProgram{})
	auth, _, err := types.FindProgramAddress([][]byte{[]byte("auth")}, prog)
	require.NoError(t, err)

	mint := key(1)
	h.CreateMint(mint, key(9), 6)
	h.CreateTokenAccount(key(20), mint, auth, 100)
	h.CreateTokenAccount(key(30), mint, key(3), 0)

	ix := host.Instruction{
		ProgramID: prog,
		Accounts: []host.AccountMeta{
			host.WritableMeta(key(20)),
			host.WritableMeta(key(30)),
			host.ReadonlyMeta(auth),
		},
	}
	require.NoError(t, h.Process(nil, ix))
	assert.Equal(t, uint64(10), h.TokenBalance(key(30)))

	ix.Data = []byte{1}
	assert.Error(t, h.Process(nil, ix))
	assert.Equal(t, uint64(10), h.TokenBalance(key(30)))
}

func TestHost_SetTokenBalanceAdjustsSupply(t *testing.T) {
	h := New()
	mint := key(1)
	h.CreateMint(mint, key(9), 6)
	h.CreateTokenAccount(key(20), mint, key(2), 100)
	h.SetTokenBalance(key(20), 30)
	assert.Equal(t, uint64(30), h.MintSupply(mint))

	ta, ok := h.TokenAccount(key(20))
	require.True(t, ok)
	assert.Equal(t, key(2), ta.Owner)
}
