package topicflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"calibra/backend/pkg/logger"
)

const (
	// DefaultBatchSize bounds the number of messages per oracle call
	DefaultBatchSize = 15

	// similarityThreshold is the average per-level word overlap at which
	// two candidates are treated as the same concept
	similarityThreshold = 0.5

	// minConfidence drops merged candidates below this score
	minConfidence = 0.6

	// maxCandidates caps the extractor's final output per call
	maxCandidates = 15

	// mergedKeywordCap bounds keywords of a merged candidate group
	mergedKeywordCap = 10

	// fallbackConfidence is assigned to the synthetic triple produced by
	// the keyword heuristic when the oracle fails
	fallbackConfidence = 0.65
)

// RawMessage is one chat turn as handed to the extractor
type RawMessage struct {
	ID      uint
	Role    string
	Content string
}

// Candidate is a proposed topic triple before it reaches the store
type Candidate struct {
	TopicLabel         string
	SubtopicLabel      string
	SubsubtopicLabel   string
	Confidence         float64
	Keywords           []string
	SourceMessages     []uint
	FirstSeenMessageID uint
	LastSeenMessageID  uint
	Frequency          int
}

// genericTerms are labels too vague to be useful graph nodes
var genericTerms = map[string]bool{
	"discussion": true, "analysis": true, "learning": true, "study": true,
	"knowledge": true, "information": true, "data": true, "details": true,
	"general": true, "various": true, "other": true, "miscellaneous": true,
	"stuff": true, "things": true, "items": true,
}

// Extractor turns message batches into deduplicated topic candidates.
// It never writes to storage; it only proposes.
type Extractor struct {
	oracle    Oracle
	batchSize int
	logger    *zap.Logger
}

// NewExtractor creates an extractor. batchSize <= 0 selects the default.
func NewExtractor(oracle Oracle, batchSize int) *Extractor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Extractor{
		oracle:    oracle,
		batchSize: batchSize,
		logger:    logger.Get().Named("extractor"),
	}
}

// Extract runs the full pipeline: sanitize, batch, propose (with local
// fallback on oracle failure), merge similar candidates and filter out
// low-quality ones. Oracle failures degrade per batch and are never fatal.
func (e *Extractor) Extract(ctx context.Context, messages []RawMessage) []Candidate {
	sanitized := sanitizeMessages(messages)
	if len(sanitized) == 0 {
		return []Candidate{}
	}

	var all []Candidate
	for _, batch := range batchMessages(sanitized, e.batchSize) {
		all = append(all, e.extractBatch(ctx, batch)...)
	}

	merged := mergeSimilar(all)
	return filterLowQuality(merged)
}

// sanitizeMessages keeps trimmed, non-empty user/assistant turns only
func sanitizeMessages(messages []RawMessage) []RawMessage {
	out := make([]RawMessage, 0, len(messages))
	for _, msg := range messages {
		role := strings.ToLower(msg.Role)
		if role != "user" && role != "assistant" {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		out = append(out, RawMessage{ID: msg.ID, Role: role, Content: content})
	}
	return out
}

// batchMessages splits into consecutive fixed-size batches, order preserved
func batchMessages(messages []RawMessage, size int) [][]RawMessage {
	var batches [][]RawMessage
	for i := 0; i < len(messages); i += size {
		end := i + size
		if end > len(messages) {
			end = len(messages)
		}
		batches = append(batches, messages[i:end])
	}
	return batches
}

func (e *Extractor) extractBatch(ctx context.Context, batch []RawMessage) []Candidate {
	raw, err := e.oracle.Propose(ctx, formatBatch(batch))
	if err != nil {
		e.logger.Warn("Oracle call failed, using keyword fallback",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return fallbackKeywordExtraction(batch)
	}

	candidates, err := parseOracleResponse(raw)
	if err != nil {
		e.logger.Warn("Oracle response unparseable, using keyword fallback",
			zap.Int("response_length", len(raw)),
			zap.Error(err),
		)
		return fallbackKeywordExtraction(batch)
	}

	tagBatchSpan(candidates, batch)
	return candidates
}

// formatBatch renders a batch as numbered role-prefixed lines
func formatBatch(batch []RawMessage) string {
	var b strings.Builder
	for i, msg := range batch {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, strings.ToUpper(msg.Role), msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	fenceOpenRe  = regexp.MustCompile("(?m)^```json\\s*")
	fenceCloseRe = regexp.MustCompile("(?m)^```\\s*$")
)

// parseOracleResponse tolerantly decodes the oracle's text: markdown code
// fences are stripped, a bare object is treated as a one-element list, and
// candidates missing any of the three label fields are dropped. Missing
// confidence defaults to 0.5 and missing keywords to empty.
func parseOracleResponse(raw string) ([]Candidate, error) {
	cleaned := fenceOpenRe.ReplaceAllString(raw, "")
	cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var payloads []map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &payloads); err != nil {
		var single map[string]interface{}
		if err2 := json.Unmarshal([]byte(cleaned), &single); err2 != nil {
			return nil, fmt.Errorf("decode oracle response: %w", err)
		}
		payloads = []map[string]interface{}{single}
	}

	candidates := make([]Candidate, 0, len(payloads))
	for _, p := range payloads {
		topic, okTopic := stringField(p, "topic_label")
		subtopic, okSub := stringField(p, "subtopic_label")
		subsubtopic, okSubsub := stringField(p, "subsubtopic_label")
		if !okTopic || !okSub || !okSubsub {
			continue
		}

		c := Candidate{
			TopicLabel:       topic,
			SubtopicLabel:    subtopic,
			SubsubtopicLabel: subsubtopic,
			Confidence:       0.5,
			Keywords:         []string{},
		}
		if conf, ok := p["confidence"].(float64); ok {
			c.Confidence = conf
		}
		if kws, ok := p["keywords"].([]interface{}); ok {
			for _, kw := range kws {
				if s, ok := kw.(string); ok {
					c.Keywords = append(c.Keywords, s)
				}
			}
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func stringField(p map[string]interface{}, key string) (string, bool) {
	v, present := p[key]
	if !present {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// tagBatchSpan stamps every candidate with the batch's message id span
func tagBatchSpan(candidates []Candidate, batch []RawMessage) {
	ids := make([]uint, 0, len(batch))
	for _, msg := range batch {
		if msg.ID != 0 {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	for i := range candidates {
		candidates[i].SourceMessages = append([]uint(nil), ids...)
		candidates[i].FirstSeenMessageID = ids[0]
		candidates[i].LastSeenMessageID = ids[len(ids)-1]
	}
}

var fallbackWordRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b|\b[a-z]{4,}\b`)

var fallbackStopwords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "this": true,
	"that": true, "these": true, "those": true,
}

// fallbackKeywordExtraction builds a single synthetic triple from word
// frequencies when the oracle is unavailable, so the batch still
// contributes to the graph instead of being lost.
func fallbackKeywordExtraction(batch []RawMessage) []Candidate {
	var parts []string
	for _, msg := range batch {
		parts = append(parts, msg.Content)
	}
	text := strings.Join(parts, " ")

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0
	for _, w := range fallbackWordRe.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if fallbackStopwords[w] || len(w) <= 3 {
			continue
		}
		if _, ok := counts[w]; !ok {
			firstSeen[w] = order
			order++
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	// Most frequent first; ties resolve by first occurrence so the
	// heuristic stays deterministic.
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})
	if len(words) > 10 {
		words = words[:10]
	}

	if len(words) == 0 {
		return []Candidate{}
	}

	pick := func(i int, fallback string) string {
		if i < len(words) {
			return words[i]
		}
		return fallback
	}
	keywords := words
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	c := Candidate{
		TopicLabel:       pick(0, "Conversation"),
		SubtopicLabel:    pick(1, "Discussion"),
		SubsubtopicLabel: pick(2, "Details"),
		Confidence:       fallbackConfidence,
		Keywords:         append([]string(nil), keywords...),
	}

	ids := make([]uint, 0, len(batch))
	for _, msg := range batch {
		if msg.ID != 0 {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) > 0 {
		c.SourceMessages = ids
		c.FirstSeenMessageID = ids[0]
		c.LastSeenMessageID = ids[len(ids)-1]
	}

	return []Candidate{c}
}

// mergeSimilar clusters candidates greedily: walking in order, each
// unclustered candidate absorbs every later one whose average per-level
// word overlap meets the threshold, and the group collapses to a single
// candidate.
func mergeSimilar(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return []Candidate{}
	}

	used := make([]bool, len(candidates))
	var merged []Candidate

	for i := range candidates {
		if used[i] {
			continue
		}
		group := []Candidate{candidates[i]}
		used[i] = true

		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			if areSimilar(candidates[i], candidates[j]) {
				group = append(group, candidates[j])
				used[j] = true
			}
		}

		merged = append(merged, mergeGroup(group))
	}

	return merged
}

// areSimilar averages Jaccard word overlap across the three label levels
func areSimilar(a, b Candidate) bool {
	overlaps := []float64{
		wordOverlap(a.TopicLabel, b.TopicLabel),
		wordOverlap(a.SubtopicLabel, b.SubtopicLabel),
		wordOverlap(a.SubsubtopicLabel, b.SubsubtopicLabel),
	}
	sum := 0.0
	for _, o := range overlaps {
		sum += o
	}
	return sum/float64(len(overlaps)) >= similarityThreshold
}

func wordOverlap(s1, s2 string) float64 {
	words1 := tokenSet(s1)
	words2 := tokenSet(s2)
	if len(words1) == 0 || len(words2) == 0 {
		return 0.0
	}
	intersection := 0
	union := len(words2)
	for w := range words1 {
		if words2[w] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// mergeGroup collapses a similarity group: the highest-confidence member
// supplies the labels, keywords union (capped), source messages union with
// the span recomputed, frequency = group size, confidence = group mean.
func mergeGroup(group []Candidate) Candidate {
	if len(group) == 1 {
		c := group[0]
		if c.Frequency == 0 {
			c.Frequency = 1
		}
		return c
	}

	best := group[0]
	for _, c := range group[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	merged := best

	var allKeywords []string
	var allMessages []uint
	confidenceSum := 0.0
	for _, c := range group {
		allKeywords = append(allKeywords, c.Keywords...)
		allMessages = append(allMessages, c.SourceMessages...)
		confidenceSum += c.Confidence
	}

	merged.Keywords = dedupeStrings(allKeywords, mergedKeywordCap)
	merged.SourceMessages = dedupeUints(allMessages)
	if len(merged.SourceMessages) > 0 {
		merged.FirstSeenMessageID = merged.SourceMessages[0]
		merged.LastSeenMessageID = merged.SourceMessages[len(merged.SourceMessages)-1]
	}
	merged.Frequency = len(group)
	merged.Confidence = confidenceSum / float64(len(group))

	return merged
}

func dedupeStrings(values []string, limit int) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func dedupeUints(values []uint) []uint {
	seen := make(map[uint]bool, len(values))
	out := make([]uint, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// filterLowQuality drops low-confidence and generic-labeled candidates,
// normalizes generic subsubtopics to empty, and keeps the top candidates
// by confidence.
func filterLowQuality(candidates []Candidate) []Candidate {
	filtered := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if c.Confidence < minConfidence {
			continue
		}
		if containsGenericTerm(c.TopicLabel) || containsGenericTerm(c.SubtopicLabel) {
			continue
		}
		// A vague subsubtopic degrades to "not applicable" rather than
		// sinking the whole candidate.
		if c.SubsubtopicLabel == "" || genericTerms[strings.ToLower(c.SubsubtopicLabel)] {
			c.SubsubtopicLabel = ""
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Confidence > filtered[j].Confidence
	})
	if len(filtered) > maxCandidates {
		filtered = filtered[:maxCandidates]
	}
	return filtered
}

func containsGenericTerm(label string) bool {
	lower := strings.ToLower(label)
	for term := range genericTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
