// Package metrics declares the Prometheus collectors the sync engine
// exposes: marker positions, revert counts and recoverable-error counts,
// grounded on the prometheus/client_golang usage pattern in the example
// pack's storage-committee node (package-level collectors, registered
// once via sync.Once).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics groups the collectors a GenericStateSync instance updates.
// One process runs one sync engine, so these are package-level
// singletons under the hood (NewSyncMetrics returns the same instance on
// every call), matching the storage-committee node's
// register-package-collectors-once pattern.
type SyncMetrics struct {
	HeaderMarker          prometheus.Gauge
	BodyMarker            prometheus.Gauge
	StateMarker           prometheus.Gauge
	RevertCount           prometheus.Counter
	RecoverableErrorCount prometheus.Counter
}

var (
	registerOnce sync.Once
	singleton    *SyncMetrics
)

// NewSyncMetrics returns the process-wide SyncMetrics, registering its
// collectors against the default Prometheus registry on first call.
func NewSyncMetrics() *SyncMetrics {
	registerOnce.Do(func() {
		singleton = &SyncMetrics{
			HeaderMarker: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "starksync",
				Name:      "header_marker",
				Help:      "Block number of the next header expected from the central source.",
			}),
			BodyMarker: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "starksync",
				Name:      "body_marker",
				Help:      "Block number of the next body expected from the central source.",
			}),
			StateMarker: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "starksync",
				Name:      "state_marker",
				Help:      "Block number of the next state diff expected from the central source.",
			}),
			RevertCount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "starksync",
				Name:      "revert_total",
				Help:      "Number of blocks moved into the ommer tables by the revert controller.",
			}),
			RecoverableErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "starksync",
				Name:      "recoverable_errors_total",
				Help:      "Number of recoverable errors the supervisor loop has retried past.",
			}),
		}
		prometheus.MustRegister(
			singleton.HeaderMarker, singleton.BodyMarker, singleton.StateMarker,
			singleton.RevertCount, singleton.RecoverableErrorCount,
		)
	})
	return singleton
}
