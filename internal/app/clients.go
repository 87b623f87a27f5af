package app

import (
	"context"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cordee/cordee-backend/internal/platform/imagestore"
	"github.com/cordee/cordee-backend/internal/platform/logger"
	"github.com/cordee/cordee-backend/internal/search"
)

// Clients holds the external collaborators. Each one is optional: a nil
// field means the matching feature runs without it.
type Clients struct {
	Redis  *goredis.Client
	Index  *search.WeaviateIndex
	Images imagestore.Store
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 5 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("redis ping: %w", err)
		}
		out.Redis = rdb
	} else {
		log.Warn("REDIS_ADDR not set; version cache disabled and search retries kept in memory")
	}

	// Weaviate
	if cfg.WeaviateURL != "" {
		idx, err := search.NewWeaviateIndex(log, cfg.WeaviateURL, cfg.WeaviateClassPrefix)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init search index: %w", err)
		}
		if err := idx.EnsureSchema(ctx); err != nil {
			log.Warn("Search schema check failed (continuing)", "error", err)
		}
		out.Index = idx
	} else {
		log.Warn("WEAVIATE_URL not set; search sync disabled")
	}

	// Image files
	images, err := imagestore.New(ctx, log, cfg.Image)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init image store: %w", err)
	}
	out.Images = images

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
		c.Redis = nil
	}
	if closer, ok := c.Images.(io.Closer); ok {
		_ = closer.Close()
	}
	c.Images = nil
}
