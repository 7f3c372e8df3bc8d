package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "checkpoint_indexer"

type metrics struct {
	checkpointsInserted    prometheus.Counter
	blocksInserted         prometheus.Counter
	statusUpdates          *prometheus.CounterVec
	loopErrors             *prometheus.CounterVec
	remoteLatestCheckpoint prometheus.Gauge
	localLatestCheckpoint  prometheus.Gauge
	localLatestBlock       prometheus.Gauge
	resumePoint            prometheus.Gauge
}

// newMetrics builds the indexer collectors. With a nil registry they are
// created but never registered.
func newMetrics(registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)

	return &metrics{
		checkpointsInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "checkpoints_inserted_total",
			Help:      "Total number of checkpoints stored",
		}),
		blocksInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_inserted_total",
			Help:      "Total number of block headers stored",
		}),
		statusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "status_updates_total",
			Help:      "Total number of checkpoint status transitions, by new status",
		}, []string{"status"}),
		loopErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Total number of errors logged by a sync loop",
		}, []string{"loop"}),
		remoteLatestCheckpoint: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "remote_latest_checkpoint",
			Help:      "Latest checkpoint index reported by the full node",
		}),
		localLatestCheckpoint: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "local_latest_checkpoint",
			Help:      "Highest checkpoint index stored locally",
		}),
		localLatestBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "local_latest_block_height",
			Help:      "Highest L2 block height stored locally",
		}),
		resumePoint: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resume_point",
			Help:      "Checkpoint index the last checkpoint tick started from",
		}),
	}
}
