package faq

import "math"

// Calibrator turns the best distinct-answer similarities into a [0,1] confidence.
type Calibrator struct {
	cal Calibration
}

// NewCalibrator constructs a calibrator. Zero scales fall back to the defaults.
func NewCalibrator(cal Calibration) Calibrator {
	def := DefaultCalibration()
	if cal.SimilarityScale <= 0 {
		cal.SimilarityScale = def.SimilarityScale
	}
	if cal.MarginScale <= 0 {
		cal.MarginScale = def.MarginScale
	}
	return Calibrator{cal: cal}
}

// Confidence blends absolute closeness of the best match with its separation from
// the runner-up. Only the first two similarities are read; fewer than two yields 0.
func (c Calibrator) Confidence(similarities []float64) float64 {
	if len(similarities) < 2 {
		return 0
	}
	s1, s2 := similarities[0], similarities[1]

	similarity := clamp01((s1 - c.cal.SimilarityFloor) / c.cal.SimilarityScale)
	margin := clamp01((s1 - s2) / c.cal.MarginScale)
	confidence := c.cal.SimilarityWeight*similarity + c.cal.MarginWeight*margin

	return math.Round(confidence*1000) / 1000
}

// BelowThreshold reports whether confidence misses the acceptance bar.
func (c Calibrator) BelowThreshold(confidence float64) bool {
	return confidence < c.cal.Threshold
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
