package app

import (
	"gorm.io/gorm"

	"github.com/cordee/cordee-backend/internal/data/aggregates"
	"github.com/cordee/cordee-backend/internal/data/repos"
	"github.com/cordee/cordee-backend/internal/observability"
	"github.com/cordee/cordee-backend/internal/platform/logger"
	"github.com/cordee/cordee-backend/internal/search"
	"github.com/cordee/cordee-backend/internal/services"
)

type Services struct {
	Documents *aggregates.DocumentEngine
	History   services.HistoryService

	// Search is nil without a configured index.
	Search      *search.Syncer
	RetryQueue  search.RetryQueue
	RetryWorker *search.RetryWorker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, set repos.Set, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	var out Services

	var syncer aggregates.SearchSync
	if clients.Index != nil {
		var queue search.RetryQueue = search.NewMemoryRetryQueue()
		if clients.Redis != nil {
			queue = search.NewRedisRetryQueue(clients.Redis, cfg.SearchRetryQueue)
		}
		out.RetryQueue = queue
		out.Search = search.NewSyncer(log, set.Documents, clients.Index, queue, metrics, search.SyncerConfig{
			MaxRetries: cfg.SearchMaxRetries,
		})
		out.RetryWorker = search.NewRetryWorker(log, out.Search, queue, cfg.SearchRetryBatch, cfg.SearchRetryInterval)
		syncer = out.Search
	}

	var images aggregates.ImageFileStore
	if clients.Images != nil {
		images = clients.Images
	}

	out.Documents = aggregates.NewDocumentAggregateFromSet(
		aggregates.BaseDeps{
			DB:     db,
			Log:    log,
			Runner: aggregates.NewGormTxRunnerWithOptions(db, aggregates.TxOptions{Attempts: cfg.TxAttempts}),
			Hooks: aggregates.MultiHooks(
				aggregates.NewObservabilityHooks(metrics),
				aggregates.NewLoggingHooks(log, cfg.SlowWrite),
			),
		},
		set,
		syncer,
		images,
		cfg.CacheKeySalt,
	)

	var cache services.VersionCache
	if clients.Redis != nil {
		cache = services.NewRedisVersionCache(clients.Redis, "")
	}
	out.History = services.NewHistoryService(log, out.Documents, cache, cfg.VersionCacheTTL, metrics)
	return out
}
