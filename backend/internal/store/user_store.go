package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "calibra/backend/pkg/errors"
)

// UserStore persists registered accounts
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a user store
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user. Returns ErrUserExists when the username is taken.
func (s *UserStore) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	user := User{
		Username:     username,
		PasswordHash: passwordHash,
	}
	err := s.db.WithContext(ctx).Create(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, apperrors.ErrUserExists
		}
		return nil, apperrors.NewStorageError("insert user", err)
	}
	return &user, nil
}

// GetByUsername looks a user up; returns (nil, nil) when no such user exists
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("lookup user", err)
	}
	return &user, nil
}

// GetByID looks a user up by id; returns (nil, nil) when no such user exists
func (s *UserStore) GetByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("lookup user", err)
	}
	return &user, nil
}

// isUniqueViolation recognizes unique constraint errors across drivers;
// sqlite surfaces them as plain errors rather than gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed") ||
		strings.Contains(msg, "duplicate key")
}
