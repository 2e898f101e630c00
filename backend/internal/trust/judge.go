package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"calibra/backend/internal/adapter"
	"calibra/backend/pkg/logger"
)

// judgePrompt drives the LLM-as-judge epistemic marker analysis
const judgePrompt = `You are an Expert AI Reliability Evaluator. Analyze the assistant's response AND reasoning trace to detect uncertainty markers.

6 EPISTEMIC DIMENSIONS

UNCERTAINTY MARKERS (detect these):

1. **Hedging Language**: "might", "could", "probably", "likely", "seems", "may", "I think"
   Severity: HIGH if hedging core claims, LOW if hedging minor details

2. **Self-Correction**: "wait", "actually", "let me reconsider", "I was wrong"
   Severity: HIGH if correcting core facts, LOW if minor clarifications

3. **Knowledge Gap Admission**: "I don't know", "I'm not sure", "beyond my knowledge"
   Severity: HIGH if gap affects core answer

4. **Lack of Specificity**: "some experts", "studies show", "it's complicated" (without details)
   Severity: HIGH if core claims lack specificity

5. **Unsupported Claim**: Strong factual assertions with NO reasoning/evidence shown
   Severity: HIGH if claim is controversial or falsifiable

STABILITY MARKER (positive signal):

6. **Stepwise Reasoning**: Numbered steps, logical connectives, consistent terminology
   Severity: HIGH if rigorous step-by-step derivation

OUTPUT FORMAT (JSON ONLY):

{
  "overall_uncertainty": <float 0.0-1.0>,
  "confidence_level": "green" | "yellow" | "red",
  "summary": "<one sentence>",
  "markers": [
    {
      "dimension": "<one of the 6 above>",
      "type": "uncertainty" | "stability",
      "severity": "low" | "medium" | "high",
      "evidence": ["<exact verbatim quote>"],
      "interpretation": "<2-4 sentences explaining the detected pattern>",
      "user_guidance": "<actionable verification steps: WHAT, WHERE, HOW>"
    }
  ]
}

SCORING:
- 0.0-0.2 (green): No uncertainty OR 1-2 low hedges + strong stability
- 0.3-0.6 (yellow): Multiple hedges OR lack of specificity OR minor gaps
- 0.7-1.0 (red): Self-correction OR knowledge gap OR high hedging on core claims

CRITICAL INSTRUCTIONS:
1. Quote EXACT text (verbatim) in evidence
2. Analyze BOTH answer AND reasoning trace
3. Prioritize HIGH-IMPACT markers (3-4 max if many detected)
4. Output ONLY valid JSON (no markdown, no extra text)

Begin analysis.`

// Marker is one detected epistemic signal
type Marker struct {
	Dimension      string   `json:"dimension"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Evidence       []string `json:"evidence"`
	Interpretation string   `json:"interpretation"`
	UserGuidance   string   `json:"user_guidance"`
}

// Analysis is the judge's structured verdict on an assistant response
type Analysis struct {
	OverallUncertainty float64  `json:"overall_uncertainty"`
	ConfidenceLevel    string   `json:"confidence_level"`
	Summary            string   `json:"summary"`
	Markers            []Marker `json:"markers"`
	Error              string   `json:"error,omitempty"`
}

// Judge runs LLM-as-judge analysis over assistant responses. Any failure
// on the judge path yields a degraded-but-valid Analysis, never an error:
// trust display must not break the chat experience.
type Judge struct {
	llm     *adapter.LLMAdapter
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewJudge creates a judge backed by the shared adapter
func NewJudge(llm *adapter.LLMAdapter, model string, timeout time.Duration) *Judge {
	return &Judge{
		llm:     llm,
		model:   model,
		timeout: timeout,
		logger:  logger.Get().Named("judge"),
	}
}

// Analyze evaluates an assistant answer (and optional reasoning trace)
// against the epistemic marker methodology.
func (j *Judge) Analyze(ctx context.Context, userQuestion, assistantAnswer, assistantReasoning string) *Analysis {
	if assistantAnswer == "" {
		return emptyAnalysis("")
	}

	input := fmt.Sprintf("[ASSISTANT ANSWER TO ANALYZE]\n%s\n\n[ORIGINAL QUESTION]\n%s", assistantAnswer, userQuestion)
	if assistantReasoning != "" {
		input += fmt.Sprintf("\n\n[ASSISTANT'S REASONING TRACE]\n%s", assistantReasoning)
	}

	raw, err := j.llm.Complete(ctx, j.model, judgePrompt, input, adapter.CompletionOptions{
		Temperature: 0.0,
		MaxTokens:   2500,
		JSONMode:    true,
		Timeout:     j.timeout,
	})
	if err != nil {
		j.logger.Warn("Judge call failed", zap.Error(err))
		return emptyAnalysis(err.Error())
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		j.logger.Warn("Judge response not valid JSON",
			zap.Int("response_length", len(raw)),
			zap.Error(err),
		)
		return emptyAnalysis("invalid judge response")
	}

	if !validAnalysis(&analysis) {
		j.logger.Warn("Judge response failed structural validation")
		return emptyAnalysis("invalid judge response")
	}

	j.logger.Debug("Judge analysis complete",
		zap.String("confidence_level", analysis.ConfidenceLevel),
		zap.Float64("overall_uncertainty", analysis.OverallUncertainty),
		zap.Int("markers", len(analysis.Markers)),
	)

	return &analysis
}

func emptyAnalysis(errMsg string) *Analysis {
	return &Analysis{
		OverallUncertainty: 0.5,
		ConfidenceLevel:    "yellow",
		Summary:            "Analysis unavailable - judge error. Check backend logs for details.",
		Markers:            []Marker{},
		Error:              errMsg,
	}
}

var (
	validLevels     = map[string]bool{"green": true, "yellow": true, "red": true}
	validTypes      = map[string]bool{"uncertainty": true, "stability": true}
	validSeverities = map[string]bool{"low": true, "medium": true, "high": true}
)

// validAnalysis checks the judge output structurally before trusting it
func validAnalysis(a *Analysis) bool {
	if !validLevels[a.ConfidenceLevel] {
		return false
	}
	if a.OverallUncertainty < 0 || a.OverallUncertainty > 1 {
		return false
	}
	if a.Markers == nil {
		a.Markers = []Marker{}
	}
	for _, m := range a.Markers {
		if !validTypes[m.Type] || !validSeverities[m.Severity] {
			return false
		}
		if m.Dimension == "" || m.Evidence == nil {
			return false
		}
	}
	return true
}
