// metrics.go - Prometheus counters of the tracking lifecycle.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan results used as metric labels.
const (
	scanResultScanned        = "scanned"
	scanResultAlreadyScanned = "already_scanned"
	scanResultNotFound       = "not_found"
	scanResultWrongEvent     = "wrong_event"
	scanResultForbidden      = "forbidden"
	scanResultMalformed      = "malformed"
	scanResultError          = "error"
)

var (
	trackingIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "es_tracking_issued_total",
			Help: "Tracking records processed by issuance, by type and outcome.",
		},
		[]string{"tracking_type", "outcome"},
	)

	trackingScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "es_tracking_scans_total",
			Help: "Scan attempts by result.",
		},
		[]string{"result"},
	)

	eventCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "es_event_cache_hits_total",
		Help: "Event lookups served from the LRU cache.",
	})
	eventCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "es_event_cache_misses_total",
		Help: "Event lookups that went to the database.",
	})
)
