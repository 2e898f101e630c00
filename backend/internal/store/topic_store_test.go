package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicID_Deterministic(t *testing.T) {
	a := TopicID(1, "Machine Learning", "Neural Networks", "Backpropagation")
	b := TopicID(1, "Machine Learning", "Neural Networks", "Backpropagation")
	assert.Equal(t, a, b)
	assert.Equal(t, "u1::machine-learning::neural-networks::backpropagation", a)
}

func TestTopicID_Normalization(t *testing.T) {
	a := TopicID(1, "Machine Learning", "Neural Networks", "")
	b := TopicID(1, "  machine learning  ", "NEURAL NETWORKS", "")
	assert.Equal(t, a, b)
}

func TestTopicID_PartitionedByUser(t *testing.T) {
	a := TopicID(1, "Go", "Concurrency", "Channels")
	b := TopicID(2, "Go", "Concurrency", "Channels")
	assert.NotEqual(t, a, b)
}

func TestUpsert_InsertThenMerge(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	id, err := store.Upsert(ctx, 1, TopicUpsert{
		TopicLabel:         "Machine Learning",
		SubtopicLabel:      "Neural Networks",
		SubsubtopicLabel:   "Backpropagation",
		FirstSeenMessageID: 1,
		LastSeenMessageID:  5,
		Confidence:         0.8,
		Keywords:           []string{"gradient", "loss"},
		CoOccurrence:       []string{"u1::a::b::c"},
	})
	require.NoError(t, err)

	triples, err := store.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	first := triples[0]
	assert.Equal(t, id, first.TopicID)
	assert.Equal(t, 1, first.Frequency)
	assert.Equal(t, uint(1), first.FirstSeenMessageID)
	assert.Equal(t, uint(5), first.LastSeenMessageID)
	createdAt := first.CreatedAt

	// Same identity again: frequency increments, last_seen and confidence
	// are overwritten, keywords and co-occurrence union while first_seen
	// and created_at stay put.
	id2, err := store.Upsert(ctx, 1, TopicUpsert{
		TopicLabel:         "machine learning",
		SubtopicLabel:      "NEURAL NETWORKS",
		SubsubtopicLabel:   "Backpropagation",
		FirstSeenMessageID: 6,
		LastSeenMessageID:  9,
		Confidence:         0.9,
		Keywords:           []string{"loss", "chain rule"},
		CoOccurrence:       []string{"u1::d::e::f"},
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	triples, err = store.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	merged := triples[0]
	assert.Equal(t, 2, merged.Frequency)
	assert.Equal(t, uint(1), merged.FirstSeenMessageID)
	assert.Equal(t, uint(9), merged.LastSeenMessageID)
	assert.Equal(t, 0.9, merged.Confidence)
	assert.Equal(t, []string{"gradient", "loss", "chain rule"}, merged.KeywordList())
	assert.Equal(t, []string{"u1::a::b::c", "u1::d::e::f"}, merged.CoOccurrenceList())
	assert.Equal(t, createdAt.Unix(), merged.CreatedAt.Unix())
}

func TestUpsert_KeywordCap(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	many := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		many = append(many, string(rune('a'+i)))
	}

	_, err := store.Upsert(ctx, 1, TopicUpsert{
		TopicLabel:    "Go",
		SubtopicLabel: "Testing",
		Confidence:    0.7,
		Keywords:      many[:10],
	})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, 1, TopicUpsert{
		TopicLabel:    "Go",
		SubtopicLabel: "Testing",
		Confidence:    0.7,
		Keywords:      many[10:],
	})
	require.NoError(t, err)

	triples, err := store.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Len(t, triples[0].KeywordList(), 15)
	assert.Equal(t, many[:15], triples[0].KeywordList())
}

func TestGetAll_MostRecentlyUpdatedFirst(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	_, err := store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "First", SubtopicLabel: "A", Confidence: 0.7})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "Second", SubtopicLabel: "B", Confidence: 0.7})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	// Touching the older triple moves it back to the front
	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "First", SubtopicLabel: "A", Confidence: 0.8})
	require.NoError(t, err)

	triples, err := store.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "First", triples[0].TopicLabel)
	assert.Equal(t, "Second", triples[1].TopicLabel)
}

func TestGetAll_FilteredByUser(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	_, err := store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "Mine", Confidence: 0.7})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, 2, TopicUpsert{TopicLabel: "Theirs", Confidence: 0.7})
	require.NoError(t, err)

	triples, err := store.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "Mine", triples[0].TopicLabel)
}

func TestLastProcessedMessageID(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	_, ok, err := store.LastProcessedMessageID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "no cursor expected before any upsert")

	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "A", LastSeenMessageID: 7, Confidence: 0.7})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "B", LastSeenMessageID: 12, Confidence: 0.7})
	require.NoError(t, err)

	cursor, ok, err := store.LastProcessedMessageID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint(12), cursor)

	// Another user's triples never influence the cursor
	_, ok, err = store.LastProcessedMessageID(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	_, err := store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "A", Confidence: 0.7})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, 2, TopicUpsert{TopicLabel: "B", Confidence: 0.7})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, 1))

	mine, err := store.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := store.GetAll(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	store := NewTopicStore(db)
	ctx := context.Background()

	stats, err := store.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalTriples)
	assert.Equal(t, 0.0, stats.AvgFrequency)

	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "Go", SubtopicLabel: "Channels", SubsubtopicLabel: "Select", Confidence: 0.8})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "Go", SubtopicLabel: "Goroutines", SubsubtopicLabel: "Scheduling", Confidence: 0.6})
	require.NoError(t, err)
	// Second occurrence of the first triple
	_, err = store.Upsert(ctx, 1, TopicUpsert{TopicLabel: "Go", SubtopicLabel: "Channels", SubsubtopicLabel: "Select", Confidence: 0.8})
	require.NoError(t, err)

	stats, err = store.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTriples)
	assert.Equal(t, int64(1), stats.UniqueTopics)
	assert.Equal(t, int64(2), stats.UniqueSubtopics)
	assert.Equal(t, int64(2), stats.UniqueSubsubtopics)
	assert.Equal(t, 1.5, stats.AvgFrequency)
	assert.Equal(t, 0.7, stats.AvgConfidence)
}
