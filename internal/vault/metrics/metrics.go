package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the vault engine.
type Metrics struct {
	TransfersInitiated  prometheus.Counter
	TransfersApproved   prometheus.Counter
	TransfersExecuted   prometheus.Counter
	RegistryReplacement prometheus.Counter
	PendingTransfers    prometheus.Gauge
	ReleasedTotal       prometheus.Counter
}

// New creates and registers the vault metrics against the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransfersInitiated: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_vault_transfers_initiated_total",
			Help: "Total number of transfer proposals created",
		}),
		TransfersApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_vault_transfer_approvals_total",
			Help: "Total number of transfer approvals recorded",
		}),
		TransfersExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_vault_transfers_executed_total",
			Help: "Total number of transfers executed",
		}),
		RegistryReplacement: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_vault_registry_replacements_total",
			Help: "Total number of signer set replacements",
		}),
		PendingTransfers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_vault_pending_transfers",
			Help: "Current number of unexecuted transfer proposals",
		}),
		ReleasedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_vault_released_value_total",
			Help: "Total value units released by executed transfers",
		}),
	}
}

func (m *Metrics) IncrementInitiated() {
	m.TransfersInitiated.Inc()
	m.PendingTransfers.Inc()
}

func (m *Metrics) IncrementApproved() {
	m.TransfersApproved.Inc()
}

func (m *Metrics) IncrementExecuted(amount int64) {
	m.TransfersExecuted.Inc()
	m.PendingTransfers.Dec()
	m.ReleasedTotal.Add(float64(amount))
}

func (m *Metrics) IncrementRegistryReplacements() {
	m.RegistryReplacement.Inc()
}
