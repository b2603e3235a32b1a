// Package metrics exposes the controller's execution counters via
// Prometheus, using github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter/histogram the controller and
// transaction context update as they run.
type Registry struct {
	TransactionsExecuted prometheus.Counter
	TransactionsFailed   prometheus.Counter
	ActionsExecuted      prometheus.Counter
	BlocksAccepted       prometheus.Counter
	BlockBuildSeconds    prometheus.Histogram
	NetUsageBytes        prometheus.Histogram
	CPUUsageMicros       prometheus.Histogram
}

// NewRegistry builds and registers a fresh Registry against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		TransactionsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsevm_transactions_executed_total",
			Help: "Number of transactions that committed successfully.",
		}),
		TransactionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsevm_transactions_failed_total",
			Help: "Number of transactions whose undo session was rolled back.",
		}),
		ActionsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsevm_actions_executed_total",
			Help: "Number of actions (top-level and inline) executed.",
		}),
		BlocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsevm_blocks_accepted_total",
			Help: "Number of blocks committed to the object store.",
		}),
		BlockBuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsevm_block_build_seconds",
			Help:    "Wall-clock time spent building a block.",
			Buckets: prometheus.DefBuckets,
		}),
		NetUsageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsevm_transaction_net_usage_bytes",
			Help:    "Billed net usage per transaction.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 12),
		}),
		CPUUsageMicros: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsevm_transaction_cpu_usage_us",
			Help:    "Billed CPU usage per transaction, in microseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 16),
		}),
	}
	reg.MustRegister(r.TransactionsExecuted, r.TransactionsFailed, r.ActionsExecuted,
		r.BlocksAccepted, r.BlockBuildSeconds, r.NetUsageBytes, r.CPUUsageMicros)
	return r
}
