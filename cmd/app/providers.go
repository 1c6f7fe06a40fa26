package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/yanqian/faq-search/internal/bootstrap"
	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/config"
	"github.com/yanqian/faq-search/internal/infra/ratelimit"
)

const catalogLoadTimeout = time.Minute

func provideFAQConfig(cfg *config.Config) faq.Config {
	return cfg.FAQ()
}

func provideEmbeddingProvider(cfg *config.Config, logger *slog.Logger) (faq.EmbeddingProvider, error) {
	return bootstrap.NewEmbeddingProvider(cfg, logger)
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) faq.TokenCounter {
	return bootstrap.NewTokenCounter(cfg, logger)
}

// provideCatalog loads and validates the catalog. Any integrity failure aborts startup.
// The backend connection is released once the catalog is in memory.
func provideCatalog(cfg *config.Config, logger *slog.Logger) (*faq.Catalog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), catalogLoadTimeout)
	defer cancel()

	backend, cleanup, err := bootstrap.NewCatalogBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return faq.LoadCatalog(ctx, backend, logger)
}

func provideRanker(catalog *faq.Catalog) faq.Ranker {
	return faq.NewBruteForceRanker(catalog)
}

func provideRateLimiter(cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, func()) {
	return bootstrap.NewRateLimiter(cfg, logger)
}
