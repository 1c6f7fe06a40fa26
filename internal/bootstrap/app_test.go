package bootstrap

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/config"
)

type stubService struct{}

func (stubService) Search(context.Context, faq.Request) (faq.Response, error) {
	return faq.Response{}, nil
}

func (stubService) Catalog() faq.CatalogStats {
	return faq.CatalogStats{Source: "test", Rows: 1}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	cfg := &config.Config{HTTP: config.HTTPConfig{Address: "127.0.0.1:0"}}
	server := &http.Server{Addr: cfg.HTTP.Address, Handler: http.NotFoundHandler()}
	app := NewApp(cfg, newTestLogger(), server, stubService{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}
