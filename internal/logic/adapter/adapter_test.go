package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/adapter"
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/sim"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

func fundedWorld(t *testing.T, amount uint64) *sim.World {
	t.Helper()
	w, err := sim.New(sim.DefaultOptions())
	require.NoError(t, err)
	u, err := w.NewUser("alice", amount)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(u, amount))
	return w
}

func run(t *testing.T, w *sim.World, id uint8, op string) error {
	t.Helper()
	ix, err := w.ProtocolIx(id, op)
	require.NoError(t, err)
	return w.Run(nil, ix)
}

// onHandPlusDeployed vault 手上余额 + Σ p.amount
func onHandPlusDeployed(t *testing.T, w *sim.World) uint64 {
	t.Helper()
	v, err := w.VaultState()
	require.NoError(t, err)
	deployed, err := v.DeployedAmount()
	require.NoError(t, err)
	return w.Balance(w.VaultInput) + deployed
}

func TestRegistry(t *testing.T) {
	r := adapter.DefaultRegistry()
	for _, id := range []uint8{consts.ProtocolFrancium, consts.ProtocolPort, consts.ProtocolSolend} {
		p, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, p.ID())
	}
	_, err := r.Get(consts.ProtocolTulip)
	assert.ErrorIs(t, err, vaulterr.ErrInvalidProtocolID)

	solend, _ := r.Get(consts.ProtocolSolend)
	_, ok := solend.(adapter.Leverage)
	assert.True(t, ok, "Solend 支持借还")
	francium, _ := r.Get(consts.ProtocolFrancium)
	_, ok = francium.(adapter.Initializer)
	assert.False(t, ok, "Francium 无需初始化")
}

// 替换一个 CPI 账户：InvalidHash，且没有发出任何 CPI
func TestHashCheck_RejectsSubstitutedAccount(t *testing.T) {
	w := fundedWorld(t, 1_000_000)

	for _, op := range []string{instruction.OpDeposit, instruction.OpWithdraw, instruction.OpTVL,
		instruction.OpBorrow, instruction.OpRepay} {
		t.Run(op, func(t *testing.T) {
			accounts := w.ProtocolAccounts(consts.ProtocolSolend, op)
			accounts[len(accounts)-1] = sim.Key("attacker")
			ix, err := w.ProtocolIxWith(consts.ProtocolSolend, op, accounts)
			require.NoError(t, err)

			before, err := w.Position(consts.ProtocolSolend)
			require.NoError(t, err)
			calls := w.Lending.Calls()

			require.ErrorIs(t, w.Run(nil, ix), vaulterr.ErrInvalidHash)
			assert.Equal(t, calls, w.Lending.Calls(), "不应发出 CPI")
			after, err := w.Position(consts.ProtocolSolend)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestHashCheck_UnsetHashes(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	ix, err := w.SetHashesIx(consts.ProtocolPort, [3]types.CheckHash{})
	require.NoError(t, err)
	require.NoError(t, w.RunAdmin(ix))

	require.ErrorIs(t, run(t, w, consts.ProtocolPort, instruction.OpDeposit), vaulterr.ErrInvalidHash)
}

func TestDeposit_FillsToWeight(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	total := onHandPlusDeployed(t, w)

	tests := []struct {
		id   uint8
		want uint64
	}{
		{consts.ProtocolFrancium, 300_000},
		{consts.ProtocolPort, 300_000},
		{consts.ProtocolSolend, 400_000},
	}
	for _, tt := range tests {
		require.NoError(t, run(t, w, tt.id, instruction.OpDeposit))
		p, err := w.Position(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Amount, consts.ProtocolName(tt.id))
		assert.Equal(t, total, onHandPlusDeployed(t, w), "存入前后总量守恒")
	}
	assert.Equal(t, uint64(300_000), w.Balance(w.Markets[consts.ProtocolFrancium].VaultCollateral))

	// 已达到目标
	require.ErrorIs(t, run(t, w, consts.ProtocolFrancium, instruction.OpDeposit), vaulterr.ErrInvalidProtocolDeposit)
}

func TestDeposit_RespectsMinimum(t *testing.T) {
	w := fundedWorld(t, 1_000)
	ix, err := w.SetRefreshParamsIx(0, 500)
	require.NoError(t, err)
	require.NoError(t, w.RunAdmin(ix))

	// 目标 300 < 500
	require.ErrorIs(t, run(t, w, consts.ProtocolFrancium, instruction.OpDeposit), vaulterr.ErrInvalidProtocolDeposit)
}

// 未与用户提现打包时，按权重取回超出部分
func TestWithdraw_RebalanceToWeight(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	for _, id := range w.Protocols {
		require.NoError(t, run(t, w, id, instruction.OpDeposit))
	}
	total := onHandPlusDeployed(t, w)

	ix, err := w.SetWeightsIx([]uint32{5_000, 0, 5_000})
	require.NoError(t, err)
	require.NoError(t, w.RunAdmin(ix))

	require.NoError(t, run(t, w, consts.ProtocolPort, instruction.OpWithdraw))
	p, err := w.Position(consts.ProtocolPort)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.Amount)
	assert.Equal(t, uint64(300_000), w.Balance(w.VaultInput))
	assert.Equal(t, total, onHandPlusDeployed(t, w))

	// 没有超出部分
	require.ErrorIs(t, run(t, w, consts.ProtocolSolend, instruction.OpWithdraw), vaulterr.ErrInvalidProtocolWithdraw)
}

// 汇率不为 1 时多赎回一个 cToken，仓位按实际到账更新
func TestWithdraw_RoundsCollateralUp(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	require.NoError(t, run(t, w, consts.ProtocolFrancium, instruction.OpDeposit))
	require.NoError(t, w.Host.AccrueInterest(w.Markets[consts.ProtocolFrancium].Reserve.Reserve, 1_000))

	ix, err := w.SetWeightsIx([]uint32{2_000, 4_000, 4_000})
	require.NoError(t, err)
	require.NoError(t, w.RunAdmin(ix))

	before := w.Balance(w.VaultInput)
	require.NoError(t, run(t, w, consts.ProtocolFrancium, instruction.OpWithdraw))
	received := w.Balance(w.VaultInput) - before

	// 目标 200_000，需取回 100_000
	assert.GreaterOrEqual(t, received, uint64(100_000))
	p, err := w.Position(consts.ProtocolFrancium)
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000)-received, p.Amount)

	evs := w.Events.OfType(events.TypeProtocolWithdraw)
	require.Len(t, evs, 1)
	assert.Equal(t, received, evs[0].Payload.(*events.ProtocolEvent).Amount)
}

func TestWithdraw_RequiresInstructionsSysvar(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	require.NoError(t, run(t, w, consts.ProtocolFrancium, instruction.OpDeposit))

	ix, err := w.ProtocolIx(consts.ProtocolFrancium, instruction.OpWithdraw)
	require.NoError(t, err)
	ix.Accounts[2].Pubkey = sim.Key("fake_sysvar")
	require.ErrorIs(t, w.Run(nil, ix), vaulterr.ErrInvalidInstructions)
}

// 后面紧跟的 withdraw 载荷长度不对
func TestWithdraw_MalformedBundledWithdraw(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	u, err := w.NewUser("bob", 0)
	require.NoError(t, err)
	require.NoError(t, run(t, w, consts.ProtocolFrancium, instruction.OpDeposit))

	pw, err := w.ProtocolIx(consts.ProtocolFrancium, instruction.OpWithdraw)
	require.NoError(t, err)
	uw, err := w.WithdrawIx(u, 1_000)
	require.NoError(t, err)
	uw.Data = append(uw.Data, 0)

	require.ErrorIs(t, w.Run([]types.Pubkey{u.Key}, pw, uw), vaulterr.ErrInvalidInstructions)
}

func TestRewards_RecordsInterest(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	for _, id := range w.Protocols {
		require.NoError(t, run(t, w, id, instruction.OpDeposit))
	}
	require.NoError(t, w.Host.AccrueInterest(w.Markets[consts.ProtocolPort].Reserve.Reserve, 6_000))
	w.Host.SetSlot(100)

	for _, id := range w.Protocols {
		require.NoError(t, run(t, w, id, instruction.OpTVL))
	}

	port, err := w.Position(consts.ProtocolPort)
	require.NoError(t, err)
	assert.Equal(t, int64(6_000), port.Rewards.Amount)
	assert.Equal(t, uint64(100), port.Rewards.LastSlot)
	avg, err := wad.DecimalFromScaledU128(port.Rewards.DepositedAvgWad).TryFloorU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000), avg, "平均存款")

	francium, err := w.Position(consts.ProtocolFrancium)
	require.NoError(t, err)
	assert.Equal(t, int64(0), francium.Rewards.Amount)

	rewards := w.Events.OfType(events.TypeProtocolRewards)
	require.Len(t, rewards, 3)
}

func TestBorrow_StaysInBand(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	for _, id := range w.Protocols {
		require.NoError(t, run(t, w, id, instruction.OpDeposit))
	}
	require.NoError(t, run(t, w, consts.ProtocolSolend, instruction.OpBorrow))

	a, ok := w.Host.Account(w.Markets[consts.ProtocolSolend].Obligation)
	require.True(t, ok)
	o := decodeObligation(t, a.Data)
	allowed := wad.DecimalFromScaled(o.AllowedBorrowValue)
	limit, err := allowed.TryMulU64(consts.OptimalHealthFactor)
	require.NoError(t, err)
	limit, err = limit.TryDivU64(100)
	require.NoError(t, err)

	borrowed := wad.DecimalFromScaled(o.BorrowedValue)
	assert.False(t, borrowed.Gt(limit), "borrowed <= allowed*OPTIMAL")
	assert.True(t, limit.Gt(wad.DecimalFromScaled(o.UnhealthyBorrowValue)), "allowed*OPTIMAL > unhealthy")
}

func TestBorrow_RefusedOutOfBand(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	for _, id := range w.Protocols {
		require.NoError(t, run(t, w, id, instruction.OpDeposit))
	}
	m := w.Markets[consts.ProtocolSolend]
	require.NoError(t, w.Host.SetObligationValues(m.Obligation,
		wad.DecimalFromU64(200), wad.DecimalFromU64(150), wad.Zero()))

	calls := w.Lending.Calls()
	require.ErrorIs(t, run(t, w, consts.ProtocolSolend, instruction.OpBorrow), vaulterr.ErrUnhealthyOperation)
	assert.Equal(t, calls, w.Lending.Calls())
	assert.Equal(t, uint64(0), w.Balance(w.VaultBorrow))
}

func TestBorrow_WrongBorrowAccount(t *testing.T) {
	w := fundedWorld(t, 1_000_000)
	require.NoError(t, run(t, w, consts.ProtocolSolend, instruction.OpDeposit))

	ix, err := w.ProtocolIx(consts.ProtocolSolend, instruction.OpBorrow)
	require.NoError(t, err)
	ix.Accounts[1].Pubkey = w.VaultInput
	require.ErrorIs(t, w.Run(nil, ix), vaulterr.ErrInvalidMint)
}

func TestPositionHashes(t *testing.T) {
	w := fundedWorld(t, 1_000)
	v, err := w.VaultState()
	require.NoError(t, err)
	idx, err := v.ProtocolPosition(consts.ProtocolSolend)
	require.NoError(t, err)
	h := v.Protocols[idx].HashPubkey
	want := w.Hashes(consts.ProtocolSolend)
	lev := w.LeverageHashes(consts.ProtocolSolend)
	assert.Equal(t, want[0], h.For(state.OpDeposit))
	assert.Equal(t, want[1], h.For(state.OpWithdraw))
	assert.Equal(t, want[2], h.For(state.OpTVL))
	assert.Equal(t, lev[0], h.For(state.OpBorrow))
	assert.Equal(t, lev[1], h.For(state.OpRepay))
}
