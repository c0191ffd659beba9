package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConnections, workspaceCacheRequests) }

var (
	dbPoolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workspace_db_pool_connections",
			Help: "Connections of the Postgres pool backing workspace storage, by state.",
		},
		[]string{"state"},
	)

	workspaceCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_cache_requests_total",
			Help: "Workspace snapshot lookups in Redis, by result.",
		},
		[]string{"result"}, // hit|miss|error
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolConnections.WithLabelValues("total").Set(float64(total))
	dbPoolConnections.WithLabelValues("idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues("in_use").Set(float64(inUse))
}

func IncCacheRequest(result string) {
	workspaceCacheRequests.WithLabelValues(norm(result)).Inc()
}
