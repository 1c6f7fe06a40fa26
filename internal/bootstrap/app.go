package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/config"
)

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	faqSvc faq.Service
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, faqSvc faq.Service) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, faqSvc: faqSvc}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		stats := a.faqSvc.Catalog()
		a.logger.Info("http server starting",
			"address", a.cfg.HTTP.Address,
			"catalog_source", stats.Source,
			"catalog_rows", stats.Rows,
			"embedding_model", a.cfg.LLM.EmbeddingModel,
		)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
