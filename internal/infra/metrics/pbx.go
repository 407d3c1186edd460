package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(pbxRequestsTotal, cdrsSyncedTotal) }

var pbxRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pbx_requests_total",
		Help: "PBX REST requests by endpoint and result.",
	},
	[]string{"endpoint", "result"},
)

var cdrsSyncedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "cdrs_synced_total",
		Help: "New CDR rows ingested from the PBX.",
	},
)

func IncPBXRequest(endpoint, result string) {
	pbxRequestsTotal.WithLabelValues(norm(endpoint), norm(result)).Inc()
}

func AddCDRsSynced(n int) {
	cdrsSyncedTotal.Add(float64(n))
}
