package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_EmptyAnswer(t *testing.T) {
	judge := &Judge{}

	analysis := judge.Analyze(context.Background(), "question?", "", "")
	assert.Equal(t, "yellow", analysis.ConfidenceLevel)
	assert.Equal(t, 0.5, analysis.OverallUncertainty)
	assert.NotNil(t, analysis.Markers)
	assert.Empty(t, analysis.Markers)
}

func TestValidAnalysis(t *testing.T) {
	valid := &Analysis{
		OverallUncertainty: 0.3,
		ConfidenceLevel:    "yellow",
		Summary:            "some hedging on minor details",
		Markers: []Marker{
			{
				Dimension:      "Hedging Language",
				Type:           "uncertainty",
				Severity:       "low",
				Evidence:       []string{"might be"},
				Interpretation: "hedges a minor claim",
				UserGuidance:   "verify the date independently",
			},
		},
	}
	assert.True(t, validAnalysis(valid))
}

func TestValidAnalysis_NilMarkersNormalized(t *testing.T) {
	a := &Analysis{OverallUncertainty: 0.1, ConfidenceLevel: "green"}
	assert.True(t, validAnalysis(a))
	assert.NotNil(t, a.Markers)
}

func TestValidAnalysis_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		analysis Analysis
	}{
		{"unknown level", Analysis{OverallUncertainty: 0.5, ConfidenceLevel: "purple"}},
		{"uncertainty out of range", Analysis{OverallUncertainty: 1.5, ConfidenceLevel: "red"}},
		{"unknown marker type", Analysis{
			OverallUncertainty: 0.5,
			ConfidenceLevel:    "yellow",
			Markers:            []Marker{{Dimension: "Hedging Language", Type: "vibes", Severity: "low", Evidence: []string{"x"}}},
		}},
		{"unknown severity", Analysis{
			OverallUncertainty: 0.5,
			ConfidenceLevel:    "yellow",
			Markers:            []Marker{{Dimension: "Hedging Language", Type: "uncertainty", Severity: "extreme", Evidence: []string{"x"}}},
		}},
		{"missing dimension", Analysis{
			OverallUncertainty: 0.5,
			ConfidenceLevel:    "yellow",
			Markers:            []Marker{{Type: "uncertainty", Severity: "low", Evidence: []string{"x"}}},
		}},
		{"missing evidence", Analysis{
			OverallUncertainty: 0.5,
			ConfidenceLevel:    "yellow",
			Markers:            []Marker{{Dimension: "Hedging Language", Type: "uncertainty", Severity: "low"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, validAnalysis(&tc.analysis))
		})
	}
}

func TestEmptyAnalysis(t *testing.T) {
	a := emptyAnalysis("judge timed out")
	assert.Equal(t, 0.5, a.OverallUncertainty)
	assert.Equal(t, "yellow", a.ConfidenceLevel)
	assert.Equal(t, "judge timed out", a.Error)
	assert.Empty(t, a.Markers)
}
