package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(s *domain.Session) error
	FindActiveByTokenHash(hash string) (*domain.Session, error)
	DeleteByTokenHash(hash string) error
	HasActiveByUserID(userID uint) (bool, error)
	DeleteExpired() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

// FindActiveByTokenHash filters expired rows in the query predicate;
// expired sessions are never purged here, only ignored.
func (r *GormSessionRepository) FindActiveByTokenHash(hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("token_hash = ? AND expires_at > ?", hash, time.Now()).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token_hash", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token_hash", "success")
	return &s, nil
}

// DeleteByTokenHash is idempotent; deleting an absent row is not an error.
func (r *GormSessionRepository) DeleteByTokenHash(hash string) error {
	err := r.db.Where("token_hash = ?", hash).Delete(&domain.Session{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_token_hash", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_token_hash", "success")
	return nil
}

func (r *GormSessionRepository) HasActiveByUserID(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&domain.Session{}).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "has_active_by_user_id", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "has_active_by_user_id", "success")
	return count > 0, nil
}

func (r *GormSessionRepository) DeleteExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_expired", "success")
	return res.RowsAffected, nil
}
