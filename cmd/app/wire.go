//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/faq-search/internal/bootstrap"
	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/config"
	httpiface "github.com/yanqian/faq-search/internal/interface/http"
	"github.com/yanqian/faq-search/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideFAQConfig,
		provideEmbeddingProvider,
		provideTokenCounter,
		provideCatalog,
		provideRanker,
		provideRateLimiter,
		faq.NewQueryEmbedder,
		faq.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
