package keeper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/health"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/keeper"
	"lending-vault-sol/internal/logic/sim"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
	"lending-vault-sol/internal/utils"
)

var band = health.Band{Min: consts.MinHealthFactor, Optimal: consts.OptimalHealthFactor, Max: consts.MaxHealthFactor}

func options() keeper.Options {
	return keeper.Options{Band: band, RebalanceThresholdBps: 200}
}

func newWorld(t *testing.T, deposit uint64) *sim.World {
	t.Helper()
	w, err := sim.New(sim.DefaultOptions())
	require.NoError(t, err)
	u, err := w.NewUser("alice", deposit)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(u, deposit))
	return w
}

func account(t *testing.T, w *sim.World, key types.Pubkey) []byte {
	t.Helper()
	a, ok := w.Host.Account(key)
	require.True(t, ok)
	return a.Data
}

// inputs 从模拟链上读取与 RPC 相同的账户数据
func inputs(t *testing.T, w *sim.World) keeper.Inputs {
	t.Helper()
	in := keeper.Inputs{
		Slot:     w.Host.Slot(),
		Vault:    w.Vault,
		Data:     account(t, w, w.Vault),
		LpSupply: w.Host.MintSupply(w.LpMint),
		OnHand:   w.Balance(w.VaultInput),
		Markets:  make(map[uint8]keeper.MarketData),
	}
	for id, m := range w.Markets {
		md := keeper.MarketData{
			ReserveKey:      m.Reserve.Reserve,
			Reserve:         account(t, w, m.Reserve.Reserve),
			CollateralOwned: w.Balance(m.VaultCollateral),
		}
		if !m.Obligation.IsZero() {
			md.Obligation = account(t, w, m.Obligation)
		}
		if !m.PriceAccount.IsZero() {
			md.Price = account(t, w, m.PriceAccount)
			md.BorrowDecimals = w.Options.BorrowDecimals
		}
		in.Markets[id] = md
	}
	return in
}

func snapshot(t *testing.T, w *sim.World) *keeper.Snapshot {
	t.Helper()
	s, err := keeper.Build(inputs(t, w), band)
	require.NoError(t, err)
	return s
}

func plan(t *testing.T, w *sim.World) *keeper.Plan {
	t.Helper()
	p, err := keeper.BuildPlan(snapshot(t, w), options())
	require.NoError(t, err)
	return p
}

var ops = map[keeper.ActionKind]string{
	keeper.ActionRewards:  instruction.OpTVL,
	keeper.ActionWithdraw: instruction.OpWithdraw,
	keeper.ActionDeposit:  instruction.OpDeposit,
	keeper.ActionBorrow:   instruction.OpBorrow,
	keeper.ActionRepay:    instruction.OpRepay,
}

// execute 按计划逐条发送指令，刷新与收益放在同一笔交易
func execute(t *testing.T, w *sim.World, p *keeper.Plan) {
	t.Helper()
	if len(p.Actions) > 0 && p.Actions[len(p.Actions)-1].Kind == keeper.ActionRefresh {
		ixs, err := w.RefreshBundle()
		require.NoError(t, err)
		require.NoError(t, w.Run(nil, ixs...))
		return
	}
	for _, a := range p.Actions {
		ix, err := w.ProtocolIx(a.ProtocolID, ops[a.Kind])
		require.NoError(t, err)
		data, err := a.Data()
		require.NoError(t, err)
		require.Equal(t, ix.Data, data, "计划给出的指令字节")
		require.NoError(t, w.Run(nil, ix), a.Name)
	}
}

func kinds(p *keeper.Plan) []keeper.ActionKind {
	out := make([]keeper.ActionKind, 0, len(p.Actions))
	for _, a := range p.Actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestBuild_Snapshot(t *testing.T) {
	w := newWorld(t, 1_000_000)
	execute(t, w, plan(t, w))
	require.NoError(t, w.Host.AccrueInterest(w.Markets[consts.ProtocolPort].Reserve.Reserve, 6_000))

	s := snapshot(t, w)
	require.Len(t, s.Protocols, 3)
	assert.Equal(t, uint64(1_000_000), s.State.CurrentTVL)
	assert.Equal(t, uint64(1_000_000), s.LpSupply)
	assert.Equal(t, uint64(0), s.OnHand)

	byID := map[uint8]keeper.ProtocolView{}
	for _, p := range s.Protocols {
		byID[p.ProtocolID] = p
	}
	assert.Equal(t, uint64(300_000), byID[consts.ProtocolFrancium].MaxWithdrawable)
	assert.Equal(t, uint64(306_000), byID[consts.ProtocolPort].MaxWithdrawable, "obligation 中的抵押按新汇率换算")
	assert.Equal(t, uint64(400_000), byID[consts.ProtocolSolend].Target)
	require.NotNil(t, byID[consts.ProtocolSolend].Leverage)
	assert.Equal(t, health.Keto, byID[consts.ProtocolSolend].Leverage.Health)
	assert.Nil(t, byID[consts.ProtocolPort].Leverage, "Port 没有价格账户")

	data, err := utils.EncodeStruct(uint32(11), s.Fields())
	require.NoError(t, err)
	_, fields, err := utils.DecodeStruct(data)
	require.NoError(t, err)
	assert.Equal(t, "1000000", fields["tvl"])
	assert.Len(t, fields["protocols"], 3)
}

func TestBuildPlan_DepositsToWeights(t *testing.T) {
	w := newWorld(t, 1_000_000)

	p := plan(t, w)
	require.Equal(t, []keeper.ActionKind{keeper.ActionDeposit, keeper.ActionDeposit, keeper.ActionDeposit}, kinds(p))
	assert.Equal(t, uint64(300_000), p.Actions[0].Amount)
	assert.Equal(t, uint64(400_000), p.Actions[2].Amount)
	assert.Equal(t, "solend_deposit", p.Actions[2].Name)

	execute(t, w, p)
	for _, id := range w.Protocols {
		pos, err := w.Position(id)
		require.NoError(t, err)
		target, err := pos.TargetAmount(1_000_000)
		require.NoError(t, err)
		assert.Equal(t, target, pos.Amount)
	}
}

func TestBuildPlan_BorrowAfterDeposit(t *testing.T) {
	w := newWorld(t, 1_000_000)
	execute(t, w, plan(t, w))

	p := plan(t, w)
	require.Equal(t, []keeper.ActionKind{keeper.ActionBorrow}, kinds(p))
	assert.Equal(t, uint64(224_000), p.Actions[0].Amount)

	execute(t, w, p)
	assert.Equal(t, uint64(224_000), w.Balance(w.VaultBorrow))

	// 已在最优位置
	assert.Empty(t, plan(t, w).Actions)
}

func TestBuildPlan_RepayWhenOverBorrowed(t *testing.T) {
	w := newWorld(t, 1_000_000)
	execute(t, w, plan(t, w))
	execute(t, w, plan(t, w))

	m := w.Markets[consts.ProtocolSolend]
	require.NoError(t, w.Host.SetObligationValues(m.Obligation,
		wad.DecimalFromPercent(32), wad.DecimalFromPercent(20), wad.DecimalFromPercent(30)))

	p := plan(t, w)
	require.Equal(t, []keeper.ActionKind{keeper.ActionRepay}, kinds(p))
	assert.Equal(t, uint64(76_000), p.Actions[0].Amount)
	execute(t, w, p)
}

func TestBuildPlan_RebalanceWithdrawsFirst(t *testing.T) {
	w := newWorld(t, 1_000_000)
	execute(t, w, plan(t, w))
	ix, err := w.SetWeightsIx([]uint32{5_000, 0, 5_000})
	require.NoError(t, err)
	require.NoError(t, w.RunAdmin(ix))

	p := plan(t, w)
	require.GreaterOrEqual(t, len(p.Actions), 3)
	assert.Equal(t, keeper.ActionWithdraw, p.Actions[0].Kind)
	assert.Equal(t, uint8(consts.ProtocolPort), p.Actions[0].ProtocolID)
	assert.Equal(t, uint64(300_000), p.Actions[0].Amount)
	assert.Equal(t, keeper.ActionDeposit, p.Actions[1].Kind)
	assert.Equal(t, uint64(200_000), p.Actions[1].Amount)
	assert.Equal(t, keeper.ActionDeposit, p.Actions[2].Kind)
	assert.Equal(t, uint64(100_000), p.Actions[2].Amount)
}

func TestBuildPlan_SmallDriftIgnored(t *testing.T) {
	w := newWorld(t, 1_000_000)
	execute(t, w, plan(t, w))
	u, err := w.NewUser("bob", 10_000)
	require.NoError(t, err)
	require.NoError(t, w.Deposit(u, 10_000))

	// 偏离 1% < 2%
	for _, a := range plan(t, w).Actions {
		assert.NotEqual(t, keeper.ActionDeposit, a.Kind)
	}
}

func TestBuildPlan_RefreshBundle(t *testing.T) {
	w := newWorld(t, 1_000_000)
	execute(t, w, plan(t, w))
	w.Host.SetSlot(5_000)

	p := plan(t, w)
	require.Equal(t, []keeper.ActionKind{
		keeper.ActionRewards, keeper.ActionRewards, keeper.ActionRewards, keeper.ActionRefresh,
	}, kinds(p))
	assert.Equal(t, instruction.NameRefreshWeights, p.Actions[3].Name)
	execute(t, w, p)

	v, err := w.VaultState()
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), v.LastRefreshTime)
	assert.False(t, v.RefreshDue(5_001))
}

func TestPlanFields(t *testing.T) {
	w := newWorld(t, 1_000_000)
	s := snapshot(t, w)
	p, err := keeper.BuildPlan(s, options())
	require.NoError(t, err)

	data, err := utils.EncodeStruct(12, p.Fields(s))
	require.NoError(t, err)
	_, fields, err := utils.DecodeStruct(data)
	require.NoError(t, err)
	assert.Equal(t, w.Vault.String(), fields["vault"])
	assert.Len(t, fields["actions"], 3)
}
