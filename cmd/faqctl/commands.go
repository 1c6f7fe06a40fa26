package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/urfave/cli/v2"

	"github.com/yanqian/faq-search/internal/bootstrap"
	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/config"
	"github.com/yanqian/faq-search/internal/infra/faqcatalog"
)

// loadConfig reads the service configuration and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if provider := c.String("provider"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if dir := c.String("dir"); dir != "" {
		cfg.Catalog.Source = config.CatalogSourceFile
		cfg.Catalog.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func generateCommand(c *cli.Context) error {
	logger := slog.Default()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	provider, err := bootstrap.NewEmbeddingProvider(cfg, logger)
	if err != nil {
		return err
	}

	source := faqcatalog.NewFileSource(cfg.Catalog.Dir)
	questions, err := source.Questions()
	if err != nil {
		return err
	}

	workers := c.Int("workers")
	if workers == 0 {
		workers = cfg.Catalog.Workers
	}
	batchSize := c.Int("batch-size")
	if batchSize == 0 {
		batchSize = cfg.Catalog.BatchSize
	}
	interval := c.Int("report-interval")
	var reported atomic.Int64
	progress := func(done, total int) {
		if interval <= 0 {
			return
		}
		if done == total || int64(done)-reported.Load() >= int64(interval) {
			reported.Store(int64(done))
			logger.Info("embedding questions", "done", done, "total", total)
		}
	}

	rows, usage, err := faqcatalog.NewGenerator(provider, workers, batchSize, logger).Generate(c.Context, questions, progress)
	if err != nil {
		return err
	}
	if err := source.StoreEmbeddings(rows); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d embeddings of dimension %d to %s (%d tokens)\n",
		len(rows), len(rows[0]), cfg.Catalog.Dir+"/"+faqcatalog.EmbeddingsFile, usage.TotalTokens)
	return nil
}

func publishCommand(c *cli.Context) error {
	logger := slog.Default()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ds, err := faqcatalog.NewFileSource(cfg.Catalog.Dir).Load(c.Context)
	if err != nil {
		return err
	}
	// refuse to publish a catalog the service would reject
	if _, err := faq.NewCatalog(ds); err != nil {
		return err
	}

	target := c.String("target")
	switch target {
	case config.CatalogSourcePostgres, config.CatalogSourceS3:
		cfg.Catalog.Source = target
	default:
		return fmt.Errorf("unsupported publish target %q: must be postgres or s3", target)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config for %s: %w", target, err)
	}

	backend, cleanup, err := bootstrap.NewCatalogBackend(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := backend.Store(c.Context, ds); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "published %d questions and %d answers to %s\n", len(ds.Questions), len(ds.Answers), target)
	return nil
}

func validateCommand(c *cli.Context) error {
	logger := slog.Default()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(c, cfg, logger)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, catalog.Stats())
}

func searchCommand(c *cli.Context) error {
	logger := slog.Default()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(c, cfg, logger)
	if err != nil {
		return err
	}
	provider, err := bootstrap.NewEmbeddingProvider(cfg, logger)
	if err != nil {
		return err
	}

	faqCfg := cfg.FAQ()
	embedder := faq.NewQueryEmbedder(faqCfg, provider, bootstrap.NewTokenCounter(cfg, logger), logger)
	svc := faq.NewService(faqCfg, catalog, embedder, faq.NewBruteForceRanker(catalog), logger)

	resp, err := svc.Search(c.Context, faq.Request{Query: c.String("query"), TopK: c.Int("top-k")})
	if writeErr := writeJSON(c.App.Writer, resp); writeErr != nil {
		return writeErr
	}
	return err
}

func loadCatalog(c *cli.Context, cfg *config.Config, logger *slog.Logger) (*faq.Catalog, error) {
	backend, cleanup, err := bootstrap.NewCatalogBackend(c.Context, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return faq.LoadCatalog(c.Context, backend, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
