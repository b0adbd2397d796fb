package worker

import (
	"context"
	"sync"
	"time"

	"ride-settlement/internal/core/ports"
	"ride-settlement/internal/observability"

	"github.com/rs/zerolog"
)

const workerName = "reconciliation"

// ReconciliationWorker runs the ledger reconciliation on a fixed interval.
type ReconciliationWorker struct {
	svc      ports.ReconciliationService
	interval time.Duration
	log      zerolog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker constructs a worker with an hourly interval.
func NewReconciliationWorker(svc ports.ReconciliationService, log zerolog.Logger) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		interval: time.Hour,
		log:      log.With().Str("component", "reconciliation_worker").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval. Non-positive values are ignored.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation until ctx is done or Stop is called.
// The first run happens immediately.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("reconciliation worker starting")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			w.log.Info().Msg("reconciliation worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop. It is safe to call more than once.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun(workerName, "failed")
		w.log.Error().Err(err).Msg("reconciliation run failed")
		return
	}
	observability.IncrementWorkerRun(workerName, "success")
}
