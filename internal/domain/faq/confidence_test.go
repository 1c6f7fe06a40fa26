package faq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfidence(t *testing.T) {
	calibrator := NewCalibrator(DefaultCalibration())

	tests := []struct {
		name         string
		similarities []float64
		want         float64
	}{
		{name: "no matches", similarities: nil, want: 0},
		{name: "single match", similarities: []float64{0.99}, want: 0},
		{name: "tied top matches", similarities: []float64{0.9, 0.9}, want: 0.56},
		{name: "clear winner", similarities: []float64{1.0, 0.7}, want: 1.0},
		{name: "clear winner among many", similarities: []float64{0.95, 0.40, 0.10}, want: 0.93},
		{name: "below floor", similarities: []float64{0.3, 0.3}, want: 0},
		{name: "negative similarities", similarities: []float64{-0.2, -0.9}, want: 0.3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := calibrator.Confidence(tc.similarities)
			require.InDelta(t, tc.want, got, 1e-9)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestConfidenceReadsOnlyTopTwo(t *testing.T) {
	calibrator := NewCalibrator(DefaultCalibration())
	base := calibrator.Confidence([]float64{0.8, 0.7})
	require.Equal(t, base, calibrator.Confidence([]float64{0.8, 0.7, 0.69, 0.1}))
	require.Equal(t, base, calibrator.Confidence([]float64{0.8, 0.7, -1}))
}

func TestConfidenceMonotonic(t *testing.T) {
	calibrator := NewCalibrator(DefaultCalibration())

	prev := -1.0
	for s1 := 0.6; s1 <= 1.0; s1 += 0.01 {
		got := calibrator.Confidence([]float64{s1, 0.6})
		require.GreaterOrEqual(t, got, prev, "raising the best similarity lowered confidence at %f", s1)
		prev = got
	}

	prev = 2.0
	for s2 := 0.5; s2 <= 0.9; s2 += 0.01 {
		got := calibrator.Confidence([]float64{0.9, s2})
		require.LessOrEqual(t, got, prev, "raising the runner-up raised confidence at %f", s2)
		prev = got
	}
}

func TestBelowThreshold(t *testing.T) {
	calibrator := NewCalibrator(DefaultCalibration())
	require.True(t, calibrator.BelowThreshold(0.699))
	require.False(t, calibrator.BelowThreshold(0.7))
	require.False(t, calibrator.BelowThreshold(0.93))
}

func TestNewCalibratorFillsZeroScales(t *testing.T) {
	cal := DefaultCalibration()
	cal.SimilarityScale = 0
	cal.MarginScale = 0
	require.InDelta(t, 0.56, NewCalibrator(cal).Confidence([]float64{0.9, 0.9}), 1e-9)
}
