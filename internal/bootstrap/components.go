package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/config"
	"github.com/yanqian/faq-search/internal/infra/embedder"
	"github.com/yanqian/faq-search/internal/infra/faqcatalog"
	"github.com/yanqian/faq-search/internal/infra/ratelimit"
)

// CatalogBackend is a catalog location that can be both read and replaced.
type CatalogBackend interface {
	faq.CatalogSource
	Store(ctx context.Context, ds faq.Dataset) error
}

// NewEmbeddingProvider builds the configured embedding provider.
func NewEmbeddingProvider(cfg *config.Config, logger *slog.Logger) (faq.EmbeddingProvider, error) {
	switch cfg.LLM.Provider {
	case config.ProviderDeterministic:
		logger.Warn("using deterministic embeddings, results are not semantic")
		return embedder.NewDeterministicEmbedder(cfg.LLM.Dimension), nil
	default:
		return embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.EmbeddingModel,
			Dimensions: cfg.LLM.Dimension,
		}, logger)
	}
}

// NewTokenCounter returns the token budget counter, or nil when the provider has no budget.
func NewTokenCounter(cfg *config.Config, logger *slog.Logger) faq.TokenCounter {
	if cfg.LLM.Provider == config.ProviderDeterministic || cfg.LLM.MaxInputTokens <= 0 {
		return nil
	}
	return embedder.NewTokenCounter(cfg.LLM.EmbeddingModel, logger)
}

// NewCatalogBackend opens the configured catalog location. The returned cleanup releases
// connections and is never nil.
func NewCatalogBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (CatalogBackend, func(), error) {
	noop := func() {}
	switch cfg.Catalog.Source {
	case config.CatalogSourceS3:
		store := cfg.Catalog.ObjectStore
		source, err := faqcatalog.NewObjectStoreSource(faqcatalog.ObjectStoreConfig{
			Endpoint:  store.Endpoint,
			AccessKey: store.AccessKey,
			SecretKey: store.SecretKey,
			Bucket:    store.Bucket,
			Region:    store.Region,
			Prefix:    store.Prefix,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return source, noop, nil
	case config.CatalogSourcePostgres:
		pool, err := NewPostgresPool(ctx, cfg.Catalog.Postgres)
		if err != nil {
			return nil, noop, err
		}
		source := faqcatalog.NewPostgresSource(pool)
		if err := source.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Info("faq postgres catalog enabled")
		return source, pool.Close, nil
	default:
		return faqcatalog.NewFileSource(cfg.Catalog.Dir), noop, nil
	}
}

// NewPostgresPool connects and pings the catalog database.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// NewRateLimiter builds the request limiter. A nil limiter disables limiting. When the
// shared Valkey limiter is unreachable it falls back to the in-memory limiter.
func NewRateLimiter(cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, func()) {
	rl := cfg.HTTP.RateLimit
	if !rl.Enabled || rl.RequestsPerMinute <= 0 {
		return nil, func() {}
	}
	fallback := ratelimit.NewMemoryLimiter(rl.RequestsPerMinute, rl.Burst)
	if !rl.Valkey.Enabled {
		return fallback, func() {}
	}

	opt, err := buildValkeyOptions(rl.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory rate limiter", "error", err)
		return fallback, func() {}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory rate limiter", "error", err)
		return fallback, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory rate limiter", "error", err)
		client.Close()
		return fallback, func() {}
	}
	logger.Info("valkey rate limiter enabled", "addr", rl.Valkey.Addr)
	return ratelimit.NewValkeyLimiter(client, rl.Valkey.Prefix, rl.RequestsPerMinute), client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
