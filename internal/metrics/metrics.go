package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TransactionsTotal counts committed and rolled-back transactions by
	// outcome: "commit", "rollback", "panic".
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rodengine_transactions_total",
			Help: "Total number of transactions by outcome",
		},
		[]string{"outcome"},
	)

	// RelationViolationsTotal counts deletes rejected by the relation
	// enforcer under RESTRICT.
	RelationViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rodengine_relation_violations_total",
			Help: "Total number of deletes rejected by RESTRICT relations",
		},
	)

	// SnapshotWritesTotal counts snapshot writes by outcome: "ok", "error".
	SnapshotWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rodengine_snapshot_writes_total",
			Help: "Total number of snapshot write attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SnapshotBytesWritten is the size in bytes of the most recent
	// successful snapshot write.
	SnapshotBytesWritten = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rodengine_snapshot_bytes_written",
			Help: "Size in bytes of the most recent successful snapshot",
		},
	)

	// WriteQueueDepth tracks the number of operations currently queued for
	// the single writer goroutine.
	WriteQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rodengine_write_queue_depth",
			Help: "Number of operations currently queued for the writer",
		},
	)
)

// Collectors returns every collector defined here, for callers that want
// to register them with a prometheus.Registerer without enumerating each
// variable by hand.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		TransactionsTotal,
		RelationViolationsTotal,
		SnapshotWritesTotal,
		SnapshotBytesWritten,
		WriteQueueDepth,
	}
}
