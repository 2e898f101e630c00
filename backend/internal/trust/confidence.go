package trust

import (
	"math"
	"regexp"
	"strings"
)

// Confidence is a lightweight lexical estimate of how assertive an
// assistant reply is. It is a display heuristic, not a calibration
// measurement; the judge produces the structured analysis.
type Confidence struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

var hedgePhrases = []string{
	"maybe", "might", "could", "i think", "possibly", "perhaps", "not sure",
}

var strongPhrases = []string{
	"definitely", "certainly", "absolutely", "clearly",
}

// ScoreConfidence scores assistant text: hedging pulls the score down,
// assertive phrasing pushes it up, and very short replies are penalized.
func ScoreConfidence(text string) Confidence {
	lower := strings.ToLower(text)

	score := 0.6
	if len(strings.Fields(text)) < 6 {
		score -= 0.2
	}
	for _, h := range hedgePhrases {
		if strings.Contains(lower, h) {
			score -= 0.1
		}
	}
	for _, s := range strongPhrases {
		if strings.Contains(lower, s) {
			score += 0.1
		}
	}

	score = math.Max(0.0, math.Min(1.0, score))
	score = math.Round(score*1000) / 1000

	label := "low"
	switch {
	case score >= 0.7:
		label = "high"
	case score >= 0.4:
		label = "medium"
	}

	return Confidence{Label: label, Score: score}
}

var nonWordRe = regexp.MustCompile(`[\W_]+`)

var topicStopwords = map[string]bool{
	"the": true, "is": true, "and": true, "a": true,
	"an": true, "of": true, "to": true, "in": true,
}

// SimpleTopic picks the first substantial word of the text as a rough
// topic tag for the message log. Returns "" when nothing qualifies.
func SimpleTopic(text string) string {
	if text == "" {
		return ""
	}
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 3 && !topicStopwords[w] {
			return w
		}
	}
	return ""
}
