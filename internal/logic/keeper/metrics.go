package keeper

import (
	"github.com/prometheus/client_golang/prometheus"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/health"
)

const namespace = "vault_keeper"

// Metrics keeper 暴露的 gauge，按 vault 地址区分
type Metrics struct {
	tvl       *prometheus.GaugeVec
	lpSupply  *prometheus.GaugeVec
	lpPrice   *prometheus.GaugeVec
	onHand    *prometheus.GaugeVec
	weight    *prometheus.GaugeVec
	amount    *prometheus.GaugeVec
	borrowed  *prometheus.GaugeVec
	util      *prometheus.GaugeVec
	actions   *prometheus.CounterVec
	syncError prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	vaultLabels := []string{"vault"}
	protocolLabels := []string{"vault", "protocol"}
	m := &Metrics{
		tvl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tvl", Help: "vault current_tvl in input token base units",
		}, vaultLabels),
		lpSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "lp_supply", Help: "LP mint supply",
		}, vaultLabels),
		lpPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "lp_price", Help: "input tokens per LP",
		}, vaultLabels),
		onHand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "on_hand", Help: "vault input token account balance",
		}, vaultLabels),
		weight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "protocol_weight", Help: "protocol weight in 1/10000",
		}, protocolLabels),
		amount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "protocol_amount", Help: "tokens deposited in protocol",
		}, protocolLabels),
		borrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "protocol_borrowed", Help: "borrow tokens owed to protocol",
		}, protocolLabels),
		util: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "borrow_utilisation", Help: "borrowed/allowed in percent",
		}, protocolLabels),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "planned_actions_total", Help: "planned actions by kind",
		}, []string{"vault", "kind"}),
		syncError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_errors_total", Help: "failed sync rounds",
		}),
	}
	reg.MustRegister(m.tvl, m.lpSupply, m.lpPrice, m.onHand, m.weight, m.amount, m.borrowed, m.util,
		m.actions, m.syncError)
	return m
}

// Observe 用快照与计划更新 gauge
func (m *Metrics) Observe(s *Snapshot, plan *Plan) {
	vault := s.Vault.String()
	m.tvl.WithLabelValues(vault).Set(float64(s.State.CurrentTVL))
	m.lpSupply.WithLabelValues(vault).Set(float64(s.LpSupply))
	price, _ := s.LpPrice().Ratio().Float64()
	m.lpPrice.WithLabelValues(vault).Set(price)
	m.onHand.WithLabelValues(vault).Set(float64(s.OnHand))

	for _, p := range s.Protocols {
		name := consts.ProtocolName(p.ProtocolID)
		m.weight.WithLabelValues(vault, name).Set(float64(p.Weight))
		m.amount.WithLabelValues(vault, name).Set(float64(p.Amount))
		m.borrowed.WithLabelValues(vault, name).Set(float64(p.Borrowed))
		if p.Leverage != nil {
			if u, err := health.Utilisation(p.Leverage.Values); err == nil {
				f, _ := u.ToDecimal().Float64()
				m.util.WithLabelValues(vault, name).Set(f)
			}
		}
	}
	if plan != nil {
		for _, a := range plan.Actions {
			m.actions.WithLabelValues(vault, a.Kind.String()).Inc()
		}
	}
}

func (m *Metrics) SyncFailed() {
	m.syncError.Inc()
}
