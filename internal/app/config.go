package app

import (
	"time"

	"github.com/cordee/cordee-backend/internal/data/db"
	"github.com/cordee/cordee-backend/internal/observability"
	"github.com/cordee/cordee-backend/internal/platform/envutil"
	"github.com/cordee/cordee-backend/internal/platform/imagestore"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

type Config struct {
	DB    db.Config
	Image imagestore.Config
	Otel  observability.OtelConfig

	CacheKeySalt    string
	RedisAddr       string
	VersionCacheTTL time.Duration
	TxAttempts      int
	SlowWrite       time.Duration

	WeaviateURL         string
	WeaviateClassPrefix string
	SearchMaxRetries    int
	SearchRetryQueue    string
	SearchRetryBatch    int
	SearchRetryInterval time.Duration

	MetricsAddr string
}

func LoadConfig(log *logger.Logger) (Config, error) {
	image, err := imagestore.ConfigFromEnv(log)
	if err != nil {
		return Config{}, err
	}
	return Config{
		DB:    db.LoadConfig(log),
		Image: image,
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false, log),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "cordee", log),
			Environment: envutil.String("APP_ENV", "development", log),
			Version:     envutil.String("APP_VERSION", "", log),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log)),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
			SampleRatio: float64(envutil.Int("OTEL_SAMPLE_PERCENT", 10, log)) / 100,
		},
		CacheKeySalt:        envutil.String("CACHE_KEY_SALT", "", log),
		RedisAddr:           envutil.String("REDIS_ADDR", "", log),
		VersionCacheTTL:     envutil.Duration("VERSION_CACHE_TTL", 24*time.Hour, log),
		TxAttempts:          envutil.Int("DB_TX_ATTEMPTS", 3, log),
		SlowWrite:           envutil.Duration("SLOW_WRITE_THRESHOLD", 2*time.Second, log),
		WeaviateURL:         envutil.String("WEAVIATE_URL", "", log),
		WeaviateClassPrefix: envutil.String("WEAVIATE_CLASS_PREFIX", "Cordee", log),
		SearchMaxRetries:    envutil.Int("SEARCH_SYNC_MAX_RETRIES", 3, log),
		SearchRetryQueue:    envutil.String("SEARCH_RETRY_QUEUE", "cordee:search:retry", log),
		SearchRetryBatch:    envutil.Int("SEARCH_RETRY_BATCH", 100, log),
		SearchRetryInterval: envutil.Duration("SEARCH_RETRY_INTERVAL", 30*time.Second, log),
		MetricsAddr:         envutil.String("METRICS_ADDR", "", log),
	}, nil
}
