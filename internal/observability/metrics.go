package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	replayCounter         *prometheus.CounterVec
	ledgerMismatchCounter *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all collectors with the default registry. Helpers are
// no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_operations_total",
			Help: "Settlement operation outcomes by operation and result kind",
		}, []string{"operation", "outcome"})

		replayCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_idempotent_replays_total",
			Help: "Confirmations answered from an earlier result",
		}, []string{"operation", "source"})

		ledgerMismatchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_ledger_mismatch_total",
			Help: "Wallets whose stored balance diverged from the movement chain",
		}, []string{"currency"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			replayCounter,
			ledgerMismatchCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncrementSettlement counts one orchestrator call. outcome is "ok" or an
// apperror kind in lower case.
func IncrementSettlement(operation, outcome string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(operation, outcome).Inc()
}

// IncrementReplay counts a confirmation served from "cache" or "store".
func IncrementReplay(operation, source string) {
	if replayCounter == nil {
		return
	}
	replayCounter.WithLabelValues(operation, source).Inc()
}

func IncrementLedgerMismatch(currency string) {
	if ledgerMismatchCounter == nil {
		return
	}
	ledgerMismatchCounter.WithLabelValues(currency).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
