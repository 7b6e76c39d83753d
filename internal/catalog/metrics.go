package catalog

import "github.com/prometheus/client_golang/prometheus"

const (
	opLoad   = "load"
	opSave   = "save"
	opAdd    = "add"
	opUpdate = "update"
	opDelete = "delete"
	opGet    = "get"

	outcomeOK        = "ok"
	outcomeEmpty     = "empty"
	outcomeCorrupt   = "corrupt"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"
	outcomeDuplicate = "duplicate"
	outcomeNotFound  = "not_found"
)

type RepoMetrics struct {
	Operations *prometheus.CounterVec
}

func NewRepoMetrics(reg prometheus.Registerer) *RepoMetrics {
	m := &RepoMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_repository_operations_total",
				Help: "Repository operations by outcome",
			},
			[]string{"op", "outcome"},
		),
	}

	reg.MustRegister(m.Operations)
	return m
}

func (m *RepoMetrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}
