package faq

import "time"

// Calibration holds the knobs of the confidence formula:
//
//	similarity = clamp((s1 - SimilarityFloor) / SimilarityScale, 0, 1)
//	margin     = clamp((s1 - s2) / MarginScale, 0, 1)
//	confidence = SimilarityWeight*similarity + MarginWeight*margin
type Calibration struct {
	SimilarityWeight float64
	MarginWeight     float64
	SimilarityFloor  float64
	SimilarityScale  float64
	MarginScale      float64
	Threshold        float64
}

// DefaultCalibration returns the production calibration.
func DefaultCalibration() Calibration {
	return Calibration{
		SimilarityWeight: 0.7,
		MarginWeight:     0.3,
		SimilarityFloor:  0.5,
		SimilarityScale:  0.5,
		MarginScale:      0.15,
		Threshold:        0.7,
	}
}

// Config holds runtime knobs for the FAQ search service.
type Config struct {
	EmbeddingModel   string
	EmbeddingTimeout time.Duration
	MaxInputTokens   int
	TopK             int
	MaxTopK          int
	Calibration      Calibration
}
