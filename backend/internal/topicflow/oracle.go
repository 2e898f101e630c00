package topicflow

import (
	"context"
	"time"

	"calibra/backend/internal/adapter"
)

// Oracle proposes topic candidates for a conversation segment. It returns
// the model's raw text; tolerant parsing is the extractor's job. Injected
// as an interface so tests can substitute a deterministic stub.
type Oracle interface {
	Propose(ctx context.Context, conversationText string) (string, error)
}

// extractionPrompt instructs the model to extract concrete, hierarchical
// topics and to avoid generic meta-topics.
const extractionPrompt = `You are a topic extraction specialist. Analyze conversation messages and extract hierarchical topics.

CRITICAL RULES:
1. Extract CONCRETE topics, NOT generic meta-topics
   GOOD: "D3 force-directed graph", "LLM uncertainty estimation", "SQLite database schema"
   BAD: "analysis", "learning", "discussion", "knowledge", "study"

2. Three-level hierarchy (EXTRACT SPARINGLY):
   - topic: Main domain/subject (e.g., "Trust Calibration System")
   - subtopic: ONLY major functional subdivisions (e.g., "Uncertainty Metrics")
   - subsubtopic: ONLY if essential and significantly different from subtopic

3. IMPORTANT CONSTRAINTS:
   - Extract MAXIMUM 2-4 topic triples per batch of 10 messages
   - Only extract subtopics if they represent MAJOR distinct aspects
   - Only extract subsubtopics if they add SIGNIFICANT value (not minor details)
   - Prefer broader categories over detailed breakdowns
   - If in doubt, use EMPTY STRING "" for subsubtopic_label

4. For each topic triple, provide:
   - topic_label: The main domain name
   - subtopic_label: Major subdivision (or "" if topic alone is sufficient)
   - subsubtopic_label: Important detail (or "" if not needed)
   - confidence: 0-1 score (only extract if confidence >= 0.7)
   - keywords: List of 3-5 representative keywords

5. Avoid redundancy: If "Python programming" and "Python syntax" refer to same concept, use one
6. Focus on NOUNS and NOUN PHRASES, not verbs or actions

Output Format (strict JSON array):
[
  {
    "topic_label": "Main Domain",
    "subtopic_label": "Subdivision",
    "subsubtopic_label": "Concrete Detail",
    "confidence": 0.85,
    "keywords": ["keyword1", "keyword2", "keyword3"]
  }
]`

// LLMOracle is the production oracle backed by the shared LLM adapter
type LLMOracle struct {
	llm     *adapter.LLMAdapter
	model   string
	timeout time.Duration
}

// NewLLMOracle creates an oracle using the given extraction model
func NewLLMOracle(llm *adapter.LLMAdapter, model string, timeout time.Duration) *LLMOracle {
	return &LLMOracle{
		llm:     llm,
		model:   model,
		timeout: timeout,
	}
}

// Propose asks the model for topic candidates over the batch text.
// The call blocks for at most the configured timeout; failures are
// returned to the extractor, which degrades to its local heuristic.
func (o *LLMOracle) Propose(ctx context.Context, conversationText string) (string, error) {
	userMsg := "Analyze this conversation segment and extract hierarchical topics:\n\n" + conversationText
	return o.llm.Complete(ctx, o.model, extractionPrompt, userMsg, adapter.CompletionOptions{
		Temperature: 0.3,
		MaxTokens:   1500,
		Timeout:     o.timeout,
	})
}
