package faq

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yanqian/faq-search/pkg/errors"
	"github.com/yanqian/faq-search/pkg/util"
)

const (
	defaultTopK    = 3
	defaultMaxTopK = 20
)

// Service exposes FAQ semantic search.
type Service interface {
	// Search answers req. On failure it returns a degraded response alongside the error
	// so user-facing callers can render it directly.
	Search(ctx context.Context, req Request) (Response, error)
	// Catalog reports metadata about the loaded catalog.
	Catalog() CatalogStats
}

type service struct {
	cfg        Config
	catalog    *Catalog
	embedder   *QueryEmbedder
	ranker     Ranker
	calibrator Calibrator
	logger     *slog.Logger
}

// NewService wires up the FAQ search facade.
func NewService(cfg Config, catalog *Catalog, embedder *QueryEmbedder, ranker Ranker, logger *slog.Logger) Service {
	return &service{
		cfg:        cfg,
		catalog:    catalog,
		embedder:   embedder,
		ranker:     ranker,
		calibrator: NewCalibrator(cfg.Calibration),
		logger:     logger.With("component", "faq.service"),
	}
}

func (s *service) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	resp := Response{Query: query, Results: []Result{}}
	topK := s.resolveTopK(req.TopK)

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if apperrors.IsCode(err, CodeProviderError) {
			s.logger.Warn("query embedding failed", "error", err)
		}
		return degrade(resp, err, start), err
	}
	if !embedding.Usage.IsZero() {
		usage := embedding.Usage
		resp.TokenUsage = &usage
	}

	ranking, err := s.ranker.Rank(embedding.Vector)
	if err != nil {
		if apperrors.IsCode(err, CodeDimensionMismatch) {
			s.logger.Error("query embedding does not match catalog, was the catalog regenerated for the current embedding model?",
				"query_dimension", len(embedding.Vector),
				"catalog_dimension", s.catalog.Dimension(),
				"embedding_model", s.cfg.EmbeddingModel,
			)
		}
		return degrade(resp, err, start), err
	}

	results, similarities := CollectUniqueAnswers(s.catalog, ranking, topK)
	resp.DurationMs = util.ElapsedMs(start)
	if len(results) == 0 {
		resp.BelowThreshold = true
		return resp, nil
	}

	resp.Results = results
	resp.Confidence = s.calibrator.Confidence(similarities)
	resp.BelowThreshold = s.calibrator.BelowThreshold(resp.Confidence)

	s.logger.Debug("faq search completed",
		"top_k", topK,
		"results", len(results),
		"confidence", resp.Confidence,
		"below_threshold", resp.BelowThreshold,
		"duration_ms", resp.DurationMs,
	)
	return resp, nil
}

func (s *service) Catalog() CatalogStats {
	return s.catalog.Stats()
}

func (s *service) resolveTopK(requested int) int {
	topK := requested
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	maxTopK := s.cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = defaultMaxTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	return topK
}

func degrade(resp Response, err error, start time.Time) Response {
	resp.Results = []Result{}
	resp.Confidence = 0
	resp.BelowThreshold = true
	resp.Error = err.Error()
	resp.DurationMs = util.ElapsedMs(start)
	return resp
}
