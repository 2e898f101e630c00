package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "calibra/backend/pkg/errors"
	"calibra/backend/pkg/logger"
)

// keywordCap bounds the stored keyword list after upsert merging
const keywordCap = 15

// TopicStore persists topic triples. It exclusively owns the topic_flow
// table; the extractor only proposes candidates and never writes here.
type TopicStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTopicStore creates a topic store
func NewTopicStore(db *gorm.DB) *TopicStore {
	return &TopicStore{
		db:     db,
		logger: logger.Get().Named("topic_store"),
	}
}

// TopicID generates the deterministic identity of a triple. Labels are
// lowercased and trimmed so equivalent spellings resolve to one row, and
// the user id prefix keeps identities partitioned per user.
func TopicID(userID uint, topic, subtopic, subsubtopic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	st := strings.ToLower(strings.TrimSpace(subtopic))
	sst := strings.ToLower(strings.TrimSpace(subsubtopic))

	base := strings.ReplaceAll(fmt.Sprintf("%s::%s::%s", t, st, sst), " ", "-")
	return fmt.Sprintf("u%d::%s", userID, base)
}

// TopicUpsert carries one extracted occurrence of a triple into the store
type TopicUpsert struct {
	TopicLabel         string
	SubtopicLabel      string
	SubsubtopicLabel   string
	FirstSeenMessageID uint
	LastSeenMessageID  uint
	Confidence         float64
	Keywords           []string
	CoOccurrence       []string
}

// Upsert inserts a new triple with frequency 1, or merges the occurrence
// into the existing row with the same identity: frequency increments,
// last_seen and confidence are overwritten, keywords and co_occurrence are
// union-merged preserving first-occurrence order. created_at never changes
// after the first insert. Returns the triple's identity.
func (s *TopicStore) Upsert(ctx context.Context, userID uint, in TopicUpsert) (string, error) {
	topicID := TopicID(userID, in.TopicLabel, in.SubtopicLabel, in.SubsubtopicLabel)

	var existing TopicTriple
	err := s.db.WithContext(ctx).
		Where("topic_id = ? AND user_id = ?", topicID, userID).
		First(&existing).Error

	switch {
	case err == nil:
		keywords := orderedUnion(existing.KeywordList(), in.Keywords, keywordCap)
		coOccurrence := orderedUnion(existing.CoOccurrenceList(), in.CoOccurrence, 0)

		updates := map[string]interface{}{
			"frequency":            gorm.Expr("frequency + 1"),
			"last_seen_message_id": in.LastSeenMessageID,
			"confidence":           in.Confidence,
			"keywords":             encodeStringList(keywords),
			"co_occurrence":        encodeStringList(coOccurrence),
		}
		if err := s.db.WithContext(ctx).
			Model(&TopicTriple{}).
			Where("topic_id = ? AND user_id = ?", topicID, userID).
			Updates(updates).Error; err != nil {
			return "", apperrors.NewStorageError("update topic triple", err)
		}

	case errors.Is(err, gorm.ErrRecordNotFound):
		row := TopicTriple{
			TopicID:            topicID,
			UserID:             userID,
			TopicLabel:         in.TopicLabel,
			SubtopicLabel:      in.SubtopicLabel,
			SubsubtopicLabel:   in.SubsubtopicLabel,
			FirstSeenMessageID: in.FirstSeenMessageID,
			LastSeenMessageID:  in.LastSeenMessageID,
			Frequency:          1,
			Confidence:         in.Confidence,
			Keywords:           encodeStringList(in.Keywords),
			CoOccurrence:       encodeStringList(in.CoOccurrence),
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return "", apperrors.NewStorageError("insert topic triple", err)
		}

	default:
		return "", apperrors.NewStorageError("lookup topic triple", err)
	}

	return topicID, nil
}

// GetAll returns every triple for the user, most recently updated first.
// Consumers rely on this ordering for "recent topics" views, so ties are
// broken by topic_id to keep it deterministic.
func (s *TopicStore) GetAll(ctx context.Context, userID uint) ([]TopicTriple, error) {
	var triples []TopicTriple
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("topic_id ASC").
		Find(&triples).Error; err != nil {
		return nil, apperrors.NewStorageError("list topic triples", err)
	}
	return triples, nil
}

// LastProcessedMessageID returns the incremental cursor: the highest
// last_seen_message_id across the user's triples. ok is false when no
// triples exist yet (first-run state).
func (s *TopicStore) LastProcessedMessageID(ctx context.Context, userID uint) (uint, bool, error) {
	var maxID *uint
	if err := s.db.WithContext(ctx).
		Model(&TopicTriple{}).
		Select("MAX(last_seen_message_id)").
		Where("user_id = ?", userID).
		Scan(&maxID).Error; err != nil {
		return 0, false, apperrors.NewStorageError("read topic cursor", err)
	}
	if maxID == nil || *maxID == 0 {
		return 0, false, nil
	}
	return *maxID, true, nil
}

// Clear removes all triples for the user
func (s *TopicStore) Clear(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&TopicTriple{}).Error; err != nil {
		return apperrors.NewStorageError("clear topic triples", err)
	}
	s.logger.Info("Topic flow cleared", zap.Uint("user_id", userID))
	return nil
}

// TopicStats aggregates counts over the user's topic table
type TopicStats struct {
	TotalTriples       int64   `json:"total_triples"`
	UniqueTopics       int64   `json:"unique_topics"`
	UniqueSubtopics    int64   `json:"unique_subtopics"`
	UniqueSubsubtopics int64   `json:"unique_subsubtopics"`
	AvgFrequency       float64 `json:"avg_frequency"`
	AvgConfidence      float64 `json:"avg_confidence"`
}

// Stats computes aggregate statistics for the user's triples
func (s *TopicStore) Stats(ctx context.Context, userID uint) (TopicStats, error) {
	var stats TopicStats

	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&TopicTriple{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&stats.TotalTriples).Error; err != nil {
		return stats, apperrors.NewStorageError("count topic triples", err)
	}
	if err := base().Distinct("topic_label").Count(&stats.UniqueTopics).Error; err != nil {
		return stats, apperrors.NewStorageError("count unique topics", err)
	}
	if err := base().Distinct("subtopic_label").Count(&stats.UniqueSubtopics).Error; err != nil {
		return stats, apperrors.NewStorageError("count unique subtopics", err)
	}
	if err := base().Distinct("subsubtopic_label").Count(&stats.UniqueSubsubtopics).Error; err != nil {
		return stats, apperrors.NewStorageError("count unique subsubtopics", err)
	}

	var avgs struct {
		AvgFrequency  *float64
		AvgConfidence *float64
	}
	if err := base().
		Select("AVG(frequency) AS avg_frequency, AVG(confidence) AS avg_confidence").
		Scan(&avgs).Error; err != nil {
		return stats, apperrors.NewStorageError("average topic metrics", err)
	}
	if avgs.AvgFrequency != nil {
		stats.AvgFrequency = round2(*avgs.AvgFrequency)
	}
	if avgs.AvgConfidence != nil {
		stats.AvgConfidence = round2(*avgs.AvgConfidence)
	}

	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// orderedUnion merges two lists keeping first occurrences in order.
// A limit of 0 means unbounded.
func orderedUnion(old, add []string, limit int) []string {
	seen := make(map[string]bool, len(old)+len(add))
	out := make([]string, 0, len(old)+len(add))
	for _, list := range [][]string{old, add} {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}
