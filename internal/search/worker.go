package search

import (
	"context"
	"time"

	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// RetryWorker drains the retry queue in batches until its context ends.
type RetryWorker struct {
	log      *logger.Logger
	syncer   *Syncer
	queue    RetryQueue
	batch    int
	interval time.Duration
}

func NewRetryWorker(log *logger.Logger, syncer *Syncer, queue RetryQueue, batch int, interval time.Duration) *RetryWorker {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RetryWorker{
		log:      log.With("worker", "SearchRetryWorker"),
		syncer:   syncer,
		queue:    queue,
		batch:    batch,
		interval: interval,
	}
}

func (w *RetryWorker) Run(ctx context.Context) error {
	w.log.Info("Search retry worker started", "batch", w.batch, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := w.DrainOnce(ctx)
			if err != nil {
				w.log.Warn("Search retry batch failed", "error", err)
				break
			}
			if n < w.batch {
				break
			}
		}
		select {
		case <-ctx.Done():
			w.log.Info("Search retry worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DrainOnce syncs one batch from the queue. A failed batch goes back to the
// queue. It returns the number of ids taken.
func (w *RetryWorker) DrainOnce(ctx context.Context) (int, error) {
	ids, err := w.queue.Pop(ctx, w.batch)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := w.syncer.syncWithRetry(ctx, ids); err != nil {
		if perr := w.queue.Push(ctx, ids); perr != nil {
			w.log.Error("Search retry requeue failed", "document_ids", ids, "error", perr)
		}
		w.syncer.reportDepth(ctx)
		return len(ids), err
	}
	w.syncer.metrics.IncSearchSync("ok")
	w.syncer.reportDepth(ctx)
	w.log.Debug("Search retry batch synced", "count", len(ids))
	return len(ids), nil
}
