package topicflow

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"calibra/backend/internal/store"
	"calibra/backend/pkg/logger"
)

// Result is the full response of an update: the complete current graph,
// not just the delta's contribution.
type Result struct {
	Nodes          []store.GraphNode `json:"nodes"`
	Links          []store.GraphLink `json:"links"`
	Stats          store.TopicStats  `json:"stats"`
	ProcessedCount int               `json:"processed_count"`
	IsIncremental  bool              `json:"is_incremental"`
}

// Snapshot is the read-only view returned without any processing
type Snapshot struct {
	Nodes []store.GraphNode `json:"nodes"`
	Links []store.GraphLink `json:"links"`
	Stats store.TopicStats  `json:"stats"`
}

// Service orchestrates incremental topic flow updates. The cursor is
// derived from stored triples (max last_seen_message_id), never stored
// separately, so the store remains the single source of truth.
//
// Updates for the same user are serialized with a per-user lock: two
// concurrent calls computing the same cursor would both treat the same
// message range as new and double-count frequency.
type Service struct {
	extractor *Extractor
	topics    *store.TopicStore
	logger    *zap.Logger

	locks sync.Map // user id -> *sync.Mutex
}

// NewService creates the orchestrator with its collaborators injected
func NewService(extractor *Extractor, topics *store.TopicStore) *Service {
	return &Service{
		extractor: extractor,
		topics:    topics,
		logger:    logger.Get().Named("topicflow"),
	}
}

func (s *Service) userLock(userID uint) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Update processes the unprocessed suffix of the message history (or the
// whole history when forceFull is set), persists the surviving candidates
// and returns the complete current graph. Storage failures are fatal to
// the call; oracle failures are absorbed by the extractor's fallback.
func (s *Service) Update(ctx context.Context, messages []RawMessage, userID uint, forceFull bool) (*Result, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if len(messages) == 0 {
		return &Result{
			Nodes: []store.GraphNode{},
			Links: []store.GraphLink{},
		}, nil
	}

	toProcess, isIncremental, err := s.selectDelta(ctx, messages, userID, forceFull)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Processing messages",
		zap.Uint("user_id", userID),
		zap.Int("count", len(toProcess)),
		zap.Bool("incremental", isIncremental),
	)

	if len(toProcess) == 0 {
		// Caught up: return current state untouched, no oracle call.
		snapshot, err := s.snapshot(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Result{
			Nodes:          snapshot.Nodes,
			Links:          snapshot.Links,
			Stats:          snapshot.Stats,
			ProcessedCount: 0,
			IsIncremental:  isIncremental,
		}, nil
	}

	candidates := s.extractor.Extract(ctx, toProcess)

	s.logger.Info("Extracted topic candidates",
		zap.Uint("user_id", userID),
		zap.Int("count", len(candidates)),
	)

	if err := s.persist(ctx, userID, candidates); err != nil {
		return nil, err
	}

	snapshot, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Nodes:          snapshot.Nodes,
		Links:          snapshot.Links,
		Stats:          snapshot.Stats,
		ProcessedCount: len(toProcess),
		IsIncremental:  isIncremental,
	}, nil
}

// selectDelta picks which messages to process. First run and forced-full
// both walk everything; otherwise only messages beyond the cursor are new.
func (s *Service) selectDelta(ctx context.Context, messages []RawMessage, userID uint, forceFull bool) ([]RawMessage, bool, error) {
	if forceFull {
		return messages, false, nil
	}

	cursor, ok, err := s.topics.LastProcessedMessageID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return messages, false, nil
	}

	var delta []RawMessage
	for _, msg := range messages {
		if msg.ID > cursor {
			delta = append(delta, msg)
		}
	}
	return delta, true, nil
}

// persist resolves each candidate's co-occurring peers to topic identities
// and upserts. The store merges additively against any previously stored
// triple with the same identity.
func (s *Service) persist(ctx context.Context, userID uint, candidates []Candidate) error {
	coOccurrences := ComputeCoOccurrences(candidates)

	for i, c := range candidates {
		coIDs := make([]string, 0, len(coOccurrences[i]))
		for _, j := range coOccurrences[i] {
			peer := candidates[j]
			coIDs = append(coIDs, store.TopicID(userID, peer.TopicLabel, peer.SubtopicLabel, peer.SubsubtopicLabel))
		}

		if _, err := s.topics.Upsert(ctx, userID, store.TopicUpsert{
			TopicLabel:         c.TopicLabel,
			SubtopicLabel:      c.SubtopicLabel,
			SubsubtopicLabel:   c.SubsubtopicLabel,
			FirstSeenMessageID: c.FirstSeenMessageID,
			LastSeenMessageID:  c.LastSeenMessageID,
			Confidence:         c.Confidence,
			Keywords:           c.Keywords,
			CoOccurrence:       coIDs,
		}); err != nil {
			return err
		}
	}

	return nil
}

// GetCurrent returns the stored graph without processing anything
func (s *Service) GetCurrent(ctx context.Context, userID uint) (*Snapshot, error) {
	return s.snapshot(ctx, userID)
}

// Reset clears all stored triples for the user
func (s *Service) Reset(ctx context.Context, userID uint) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.topics.Clear(ctx, userID)
}

func (s *Service) snapshot(ctx context.Context, userID uint) (*Snapshot, error) {
	triples, err := s.topics.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.topics.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	graph := store.BuildGraph(triples)
	return &Snapshot{
		Nodes: graph.Nodes,
		Links: graph.Links,
		Stats: stats,
	}, nil
}
