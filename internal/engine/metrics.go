package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	commits        prometheus.Counter
	ops            *prometheus.CounterVec
	collected      prometheus.Counter
	cascadeLimited prometheus.Counter
	batchOps       prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "noisecomp",
			Subsystem: "engine",
			Name:      "commits_total",
			Help:      "Commits that issued at least one backend op",
		}),
		// Labels: kind (op kind), status (ok, error)
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noisecomp",
			Subsystem: "engine",
			Name:      "ops_total",
			Help:      "Backend ops issued by kind and outcome",
		}, []string{"kind", "status"}),
		collected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "noisecomp",
			Subsystem: "engine",
			Name:      "collected_nodes_total",
			Help:      "Nodes removed from the store after commits",
		}),
		cascadeLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: "noisecomp",
			Subsystem: "engine",
			Name:      "cascade_limited_total",
			Help:      "Dependent recomputations skipped at the depth limit",
		}),
		batchOps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "noisecomp",
			Subsystem: "engine",
			Name:      "ops_per_commit",
			Help:      "Backend ops per commit",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

func (m *Metrics) recordCommit(c ir.Commit) {
	if m == nil {
		return
	}
	if len(c.Ops) > 0 {
		m.commits.Inc()
		m.batchOps.Observe(float64(len(c.Ops)))
	}
	for _, op := range c.Ops {
		status := "ok"
		if op.Failed() {
			status = "error"
		}
		m.ops.WithLabelValues(string(op.Kind), status).Inc()
	}
	m.collected.Add(float64(c.Collected))
}

func (m *Metrics) recordCascadeLimit() {
	if m != nil {
		m.cascadeLimited.Inc()
	}
}
