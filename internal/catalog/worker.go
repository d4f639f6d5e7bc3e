package catalog

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
)

// ReadinessReporter is told whether a snapshot is available.
type ReadinessReporter interface {
	SetReady(ready bool)
}

// Worker runs the syncer on a timer and on demand. Requests that arrive while
// a sync is running collapse into one follow-up sync.
type Worker struct {
	syncer   *Syncer
	interval time.Duration
	pending  chan struct{}
	ready    ReadinessReporter
	log      *zap.Logger
}

// NewWorker returns a worker. ready may be nil.
func NewWorker(syncer *Syncer, interval time.Duration, ready ReadinessReporter, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		syncer:   syncer,
		interval: interval,
		pending:  make(chan struct{}, 1),
		ready:    ready,
		log:      log.Named("catalog-worker"),
	}
}

// Trigger schedules a sync without waiting for it.
func (w *Worker) Trigger() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

// RequestSync lets the worker act as the reconciler's sync trigger when both
// run in one process.
func (w *Worker) RequestSync(ctx context.Context, req domain.SyncRequested) error {
	logger.For(ctx, w.log).Debug("sync requested",
		zap.String("reason", req.Reason),
		zap.String("session_id", req.SessionID.String()))
	w.Trigger()
	return nil
}

// HandleSyncRequested consumes sync request events.
func (w *Worker) HandleSyncRequested(ctx context.Context, msg events.Message) error {
	req, err := events.Decode[domain.SyncRequested](msg)
	if err != nil {
		return err
	}
	return w.RequestSync(ctx, req)
}

func (w *Worker) Run(ctx context.Context) {
	if _, err := w.syncer.store.Snapshot(); err == nil {
		w.setReady(true)
	}
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.runOnce(ctx)
		case <-w.pending:
			w.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.syncer.Sync(ctx); err != nil {
		w.log.Error("catalog sync failed", zap.Error(err))
		return
	}
	w.setReady(true)
}

func (w *Worker) setReady(ready bool) {
	if w.ready != nil {
		w.ready.SetReady(ready)
	}
}

// HandleSnapshotUpdated re-reads the persisted snapshot after another process
// synced.
func (s *Store) HandleSnapshotUpdated(ctx context.Context, _ events.Message) error {
	changed, err := s.Reload(ctx)
	if err != nil {
		return err
	}
	if changed {
		logger.For(ctx, s.log).Debug("reloaded catalog snapshot")
	}
	return nil
}
