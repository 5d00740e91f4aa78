package keeper

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/health"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	vault := types.Pubkey(types.HashV([]byte("metrics-vault")))
	s := &Snapshot{
		Vault:    vault,
		State:    &state.Vault{CurrentTVL: 2_000_000},
		LpSupply: 1_000_000,
		OnHand:   500,
		Protocols: []ProtocolView{
			{ProtocolID: consts.ProtocolFrancium, Weight: 6_000, Amount: 1_200_000},
			{ProtocolID: consts.ProtocolSolend, Weight: 4_000, Amount: 800_000, Borrowed: 100,
				Leverage: &Leverage{Values: health.Values{
					Allowed:   wad.DecimalFromU64(10),
					Unhealthy: wad.DecimalFromU64(5),
					Borrowed:  wad.DecimalFromU64(7),
				}}},
		},
	}
	plan := &Plan{Actions: []Action{{Kind: ActionDeposit}, {Kind: ActionDeposit}, {Kind: ActionRefresh}}}
	m.Observe(s, plan)

	v := vault.String()
	assert.Equal(t, float64(2_000_000), testutil.ToFloat64(m.tvl.WithLabelValues(v)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.lpPrice.WithLabelValues(v)))
	assert.Equal(t, float64(6_000), testutil.ToFloat64(m.weight.WithLabelValues(v, "Francium")))
	assert.Equal(t, float64(70), testutil.ToFloat64(m.util.WithLabelValues(v, "Solend")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.actions.WithLabelValues(v, "deposit")))

	m.SyncFailed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.syncError))
}

func TestActionKind_String(t *testing.T) {
	assert.Equal(t, "borrow", ActionBorrow.String())
	assert.Equal(t, "unknown", ActionKind(0).String())
}
