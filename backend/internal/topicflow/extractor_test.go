package topicflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle returns a canned response (or error) and counts calls
type stubOracle struct {
	response string
	err      error
	calls    int
}

func (s *stubOracle) Propose(ctx context.Context, conversationText string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestSanitizeMessages(t *testing.T) {
	messages := []RawMessage{
		{ID: 1, Role: "user", Content: "  hello  "},
		{ID: 2, Role: "system", Content: "you are an assistant"},
		{ID: 3, Role: "ASSISTANT", Content: "hi"},
		{ID: 4, Role: "user", Content: "   "},
		{ID: 5, Role: "tool", Content: "result"},
	}

	out := sanitizeMessages(messages)
	require.Len(t, out, 2)
	assert.Equal(t, uint(1), out[0].ID)
	assert.Equal(t, "hello", out[0].Content)
	assert.Equal(t, "assistant", out[1].Role)
}

func TestBatchMessages(t *testing.T) {
	messages := make([]RawMessage, 7)
	for i := range messages {
		messages[i] = RawMessage{ID: uint(i + 1)}
	}

	batches := batchMessages(messages, 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, uint(7), batches[2][0].ID)
}

func TestParseOracleResponse_Array(t *testing.T) {
	raw := `[
		{"topic_label": "Machine Learning", "subtopic_label": "Transformers", "subsubtopic_label": "Attention", "confidence": 0.85, "keywords": ["attention", "heads"]},
		{"topic_label": "Databases", "subtopic_label": "Indexing", "subsubtopic_label": ""}
	]`

	candidates, err := parseOracleResponse(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, 0.85, candidates[0].Confidence)
	assert.Equal(t, []string{"attention", "heads"}, candidates[0].Keywords)
	// Missing confidence and keywords fall back to defaults
	assert.Equal(t, 0.5, candidates[1].Confidence)
	assert.Empty(t, candidates[1].Keywords)
}

func TestParseOracleResponse_CodeFence(t *testing.T) {
	raw := "```json\n[{\"topic_label\": \"Go\", \"subtopic_label\": \"Testing\", \"subsubtopic_label\": \"\"}]\n```"

	candidates, err := parseOracleResponse(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Go", candidates[0].TopicLabel)
}

func TestParseOracleResponse_BareObject(t *testing.T) {
	raw := `{"topic_label": "Go", "subtopic_label": "Modules", "subsubtopic_label": "Versioning"}`

	candidates, err := parseOracleResponse(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Modules", candidates[0].SubtopicLabel)
}

func TestParseOracleResponse_DropsMissingLabels(t *testing.T) {
	raw := `[
		{"topic_label": "Kept", "subtopic_label": "Yes", "subsubtopic_label": ""},
		{"topic_label": "Dropped", "subtopic_label": "Missing leaf"}
	]`

	candidates, err := parseOracleResponse(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Kept", candidates[0].TopicLabel)
}

func TestParseOracleResponse_Garbage(t *testing.T) {
	_, err := parseOracleResponse("Sorry, I cannot help with that.")
	assert.Error(t, err)
}

func TestExtract_TagsBatchSpan(t *testing.T) {
	oracle := &stubOracle{
		response: `[{"topic_label": "Distributed Systems", "subtopic_label": "Consensus", "subsubtopic_label": "Raft", "confidence": 0.9, "keywords": ["quorum"]}]`,
	}
	extractor := NewExtractor(oracle, 10)

	candidates := extractor.Extract(context.Background(), []RawMessage{
		{ID: 3, Role: "user", Content: "tell me about transformers"},
		{ID: 4, Role: "assistant", Content: "transformers use attention"},
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, uint(3), candidates[0].FirstSeenMessageID)
	assert.Equal(t, uint(4), candidates[0].LastSeenMessageID)
	assert.Equal(t, []uint{3, 4}, candidates[0].SourceMessages)
	assert.Equal(t, 1, oracle.calls)
}

func TestExtract_EmptyInput(t *testing.T) {
	oracle := &stubOracle{response: "[]"}
	extractor := NewExtractor(oracle, 10)

	candidates := extractor.Extract(context.Background(), nil)
	assert.Empty(t, candidates)
	assert.Equal(t, 0, oracle.calls, "no oracle call without messages")
}

func TestExtract_FallbackOnOracleFailure(t *testing.T) {
	oracle := &stubOracle{err: errors.New("boom")}
	extractor := NewExtractor(oracle, 10)

	candidates := extractor.Extract(context.Background(), []RawMessage{
		{ID: 1, Role: "user", Content: "kubernetes cluster deployment with kubernetes operators"},
		{ID: 2, Role: "assistant", Content: "kubernetes cluster networking"},
	})

	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.Equal(t, fallbackConfidence, c.Confidence)
	assert.Equal(t, "kubernetes", c.TopicLabel)
	assert.Equal(t, "cluster", c.SubtopicLabel)
	assert.LessOrEqual(t, len(c.Keywords), 5)
	assert.Equal(t, uint(1), c.FirstSeenMessageID)
	assert.Equal(t, uint(2), c.LastSeenMessageID)
}

func TestExtract_FallbackOnUnparseableResponse(t *testing.T) {
	oracle := &stubOracle{response: "I could not find any topics, sorry."}
	extractor := NewExtractor(oracle, 10)

	candidates := extractor.Extract(context.Background(), []RawMessage{
		{ID: 1, Role: "user", Content: "postgres indexing strategies for postgres tables"},
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, fallbackConfidence, candidates[0].Confidence)
}

func TestMergeSimilar_CollapsesDuplicates(t *testing.T) {
	candidates := []Candidate{
		{TopicLabel: "Machine Learning", SubtopicLabel: "Neural Networks", SubsubtopicLabel: "Training", Confidence: 0.8, Keywords: []string{"loss"}, SourceMessages: []uint{1, 2}},
		{TopicLabel: "Machine Learning", SubtopicLabel: "Neural Networks", SubsubtopicLabel: "Training", Confidence: 0.9, Keywords: []string{"epochs"}, SourceMessages: []uint{3}},
		{TopicLabel: "Cooking", SubtopicLabel: "Baking", SubsubtopicLabel: "Sourdough", Confidence: 0.7, SourceMessages: []uint{4}},
	}

	merged := mergeSimilar(candidates)
	require.Len(t, merged, 2)

	ml := merged[0]
	assert.Equal(t, 2, ml.Frequency)
	assert.InDelta(t, 0.85, ml.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"loss", "epochs"}, ml.Keywords)
	assert.Equal(t, []uint{1, 2, 3}, ml.SourceMessages)
	assert.Equal(t, uint(1), ml.FirstSeenMessageID)
	assert.Equal(t, uint(3), ml.LastSeenMessageID)

	assert.Equal(t, 1, merged[1].Frequency)
}

func TestMergeSimilar_KeepsDistinct(t *testing.T) {
	candidates := []Candidate{
		{TopicLabel: "Machine Learning", SubtopicLabel: "Transformers", SubsubtopicLabel: "Attention", Confidence: 0.8},
		{TopicLabel: "Gardening", SubtopicLabel: "Composting", SubsubtopicLabel: "Worms", Confidence: 0.8},
	}

	merged := mergeSimilar(candidates)
	assert.Len(t, merged, 2)
}

func TestFilterLowQuality(t *testing.T) {
	candidates := []Candidate{
		{TopicLabel: "Distributed Systems", SubtopicLabel: "Consensus", SubsubtopicLabel: "Raft", Confidence: 0.9},
		{TopicLabel: "Weak Signal", SubtopicLabel: "Noise", SubsubtopicLabel: "", Confidence: 0.5},
		{TopicLabel: "General Discussion", SubtopicLabel: "Whatever", SubsubtopicLabel: "", Confidence: 0.95},
		{TopicLabel: "Rust", SubtopicLabel: "Ownership", SubsubtopicLabel: "Details", Confidence: 0.8},
	}

	filtered := filterLowQuality(candidates)
	require.Len(t, filtered, 2)

	// Sorted by confidence, highest first
	assert.Equal(t, "Distributed Systems", filtered[0].TopicLabel)
	assert.Equal(t, "Rust", filtered[1].TopicLabel)

	// The generic leaf label degrades to empty instead of dropping the triple
	assert.Equal(t, "", filtered[1].SubsubtopicLabel)
}

func TestFilterLowQuality_GenericSubstring(t *testing.T) {
	// "learning" matches as a substring, so even a substantive label like
	// "Machine Learning" is filtered out.
	candidates := []Candidate{
		{TopicLabel: "Machine Learning", SubtopicLabel: "Transformers", SubsubtopicLabel: "", Confidence: 0.9},
	}
	assert.Empty(t, filterLowQuality(candidates))
}

func TestFilterLowQuality_Cap(t *testing.T) {
	candidates := make([]Candidate, 0, maxCandidates+5)
	for i := 0; i < maxCandidates+5; i++ {
		candidates = append(candidates, Candidate{
			TopicLabel:    "Topic",
			SubtopicLabel: "Sub",
			Confidence:    0.7,
		})
	}

	filtered := filterLowQuality(candidates)
	assert.Len(t, filtered, maxCandidates)
}
