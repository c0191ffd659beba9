package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		workspacesEvictedTotal,
		workspacesActive,
		workspacePersistFailures,
	)
}

var (
	workspacesEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workspaces_evicted_total",
			Help: "Total number of idle workspaces dropped from memory by the idle worker.",
		},
	)

	workspacesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workspaces_active",
			Help: "Current number of workspaces held in memory.",
		},
	)

	workspacePersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_persist_failures_total",
			Help: "Snapshots that could not be written to the workspace repository.",
		},
	)
)

func IncWorkspacesEvicted(count int) {
	workspacesEvictedTotal.Add(float64(count))
}

func SetWorkspacesActive(n int) {
	workspacesActive.Set(float64(n))
}

func IncWorkspacePersistFailure() {
	workspacePersistFailures.Inc()
}
