package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/observability"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// DocumentLoader reads the current state of documents, locales and geometry
// included. Missing ids are absent from the result.
type DocumentLoader interface {
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*documents.Document, error)
	ListIDs(dbc dbctx.Context, afterID int64, limit int) ([]int64, error)
}

type SyncerConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c SyncerConfig) withDefaults() SyncerConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	return c
}

// Syncer pushes documents to the index after their transaction committed.
type Syncer struct {
	log     *logger.Logger
	docs    DocumentLoader
	index   Index
	queue   RetryQueue
	metrics *observability.Metrics
	cfg     SyncerConfig
}

func NewSyncer(log *logger.Logger, docs DocumentLoader, index Index, queue RetryQueue, metrics *observability.Metrics, cfg SyncerConfig) *Syncer {
	return &Syncer{
		log:     log.With("service", "SearchSyncer"),
		docs:    docs,
		index:   index,
		queue:   queue,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
	}
}

// SyncDocuments indexes the current state of ids and removes the ones that no
// longer exist. It runs after a write committed, so with a retry queue it
// makes a single attempt and leaves the backoff to the RetryWorker. The error
// is still returned once the ids are queued so callers can report it.
func (s *Syncer) SyncDocuments(ctx context.Context, ids []int64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	var err error
	if s.queue != nil {
		err = s.syncOnce(ctx, ids)
	} else {
		err = s.syncWithRetry(ctx, ids)
	}
	if err == nil {
		s.metrics.IncSearchSync("ok")
		return nil
	}
	if s.queue != nil {
		qerr := s.queue.Push(ctx, ids)
		if qerr == nil {
			s.metrics.IncSearchSync("queued")
			s.reportDepth(ctx)
			return fmt.Errorf("search sync failed, %d documents queued for retry: %w", len(ids), err)
		}
		err = errors.Join(err, qerr)
	}
	s.metrics.IncSearchSync("failed")
	return err
}

func (s *Syncer) syncWithRetry(ctx context.Context, ids []int64) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)

	return backoff.RetryNotify(func() error {
		return s.syncOnce(ctx, ids)
	}, policy, func(err error, wait time.Duration) {
		s.metrics.IncSearchSync("retried")
		s.log.Warn("Search sync failed, retrying", "document_ids", ids, "wait", wait, "error", err)
	})
}

func (s *Syncer) syncOnce(ctx context.Context, ids []int64) error {
	docs, err := s.docs.GetByIDs(dbctx.Background(ctx), ids)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	found := make(map[int64]bool, len(docs))
	batch := make([]SearchDocument, 0, len(docs))
	for _, d := range docs {
		found[d.DocumentID] = true
		sd, err := ToSearchDocument(d)
		if err != nil {
			return backoff.Permanent(err)
		}
		batch = append(batch, sd)
	}
	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if err := s.index.Upsert(ctx, batch); err != nil {
		return err
	}
	if len(missing) > 0 {
		if err := s.index.Remove(ctx, missing); err != nil {
			return err
		}
	}
	s.log.Debug("Search documents synced", "indexed", len(batch), "removed", len(missing))
	return nil
}

// Reindex walks every document id in pages of batchSize and syncs them.
func (s *Syncer) Reindex(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var total int
	var after int64
	for {
		ids, err := s.docs.ListIDs(dbctx.Background(ctx), after, batchSize)
		if err != nil {
			return total, fmt.Errorf("list document ids: %w", err)
		}
		if len(ids) == 0 {
			return total, nil
		}
		if err := s.syncWithRetry(ctx, ids); err != nil {
			return total, err
		}
		total += len(ids)
		after = ids[len(ids)-1]
		s.log.Info("Reindex progress", "synced", total, "last_document_id", after)
	}
}

func (s *Syncer) reportDepth(ctx context.Context) {
	if s.queue == nil {
		return
	}
	if n, err := s.queue.Len(ctx); err == nil {
		s.metrics.SetSearchRetryDepth(n)
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
