package store

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	apperrors "calibra/backend/pkg/errors"
)

// MessageStore persists chat messages. Message ids are autoincrement and
// therefore monotonic per user, which the topic flow cursor depends on.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a message store
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Save inserts a message and returns its id
func (s *MessageStore) Save(ctx context.Context, msg *Message) (uint, error) {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return 0, apperrors.NewStorageError("insert message", err)
	}
	return msg.ID, nil
}

// ListByUser returns the user's full conversation ordered by message id
func (s *MessageStore) ListByUser(ctx context.Context, userID uint) ([]Message, error) {
	var messages []Message
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, apperrors.NewStorageError("list messages", err)
	}
	return messages, nil
}

// UpdateTrustAnalysis stores a judge analysis on a message. When messageID
// is non-nil it addresses the message directly; otherwise the most recent
// assistant message with exactly matching content is used. Returns
// ErrMessageNotFound when nothing matches.
func (s *MessageStore) UpdateTrustAnalysis(ctx context.Context, userID uint, messageID *uint, content string, analysis interface{}) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return apperrors.NewStorageError("encode trust analysis", err)
	}

	if messageID != nil {
		res := s.db.WithContext(ctx).
			Model(&Message{}).
			Where("id = ? AND user_id = ?", *messageID, userID).
			Update("trust_analysis", raw)
		if res.Error != nil {
			return apperrors.NewStorageError("update trust analysis", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrMessageNotFound
		}
		return nil
	}

	var msg Message
	err = s.db.WithContext(ctx).
		Where("role = ? AND content = ? AND user_id = ?", "assistant", content, userID).
		Order("id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrMessageNotFound
	}
	if err != nil {
		return apperrors.NewStorageError("find message for trust analysis", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&Message{}).
		Where("id = ?", msg.ID).
		Update("trust_analysis", raw).Error; err != nil {
		return apperrors.NewStorageError("update trust analysis", err)
	}
	return nil
}
