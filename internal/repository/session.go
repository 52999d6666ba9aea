package repository

import (
	"errors"
	"time"

	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionRepository is a repository for clarification sessions.
type SessionRepository struct {
	DB *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

// CreateSession stores a new awaiting session. Any prior awaiting session for
// the user is expired in the same transaction, so supersession is atomic.
func (r *SessionRepository) CreateSession(session *models.ClarificationSession) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ClarificationSession{}).
			Where("user_id = ? AND state = ?", session.UserID, models.SessionAwaitingClarification).
			Update("state", models.SessionExpired).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		logger.Get().Error("failed to create clarification session", zap.Uint("user_id", session.UserID), zap.Error(err))
		return err
	}
	return nil
}

// GetActiveSessionByKey retrieves an awaiting session by key. A session past
// its TTL is treated as not found.
func (r *SessionRepository) GetActiveSessionByKey(sessionKey string, now time.Time) (*models.ClarificationSession, error) {
	var session models.ClarificationSession
	if err := r.DB.Where("session_key = ? AND state = ?", sessionKey, models.SessionAwaitingClarification).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("clarification session not found")
		}
		logger.Get().Error("failed to get clarification session", zap.String("session_key", sessionKey), zap.Error(err))
		return nil, err
	}
	if session.Expired(now) {
		return nil, NewNotFoundError("clarification session expired")
	}
	return &session, nil
}

// InvalidateUserSessions expires every awaiting session of the user.
func (r *SessionRepository) InvalidateUserSessions(userID uint) error {
	if err := r.DB.Model(&models.ClarificationSession{}).
		Where("user_id = ? AND state = ?", userID, models.SessionAwaitingClarification).
		Update("state", models.SessionExpired).Error; err != nil {
		logger.Get().Error("failed to invalidate sessions", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// MarkResolved transitions a session to the resolved state.
func (r *SessionRepository) MarkResolved(sessionKey string) error {
	if err := r.DB.Model(&models.ClarificationSession{}).
		Where("session_key = ?", sessionKey).
		Update("state", models.SessionResolved).Error; err != nil {
		logger.Get().Error("failed to mark session resolved", zap.String("session_key", sessionKey), zap.Error(err))
		return err
	}
	return nil
}

// DeleteExpired removes sessions past their TTL.
func (r *SessionRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.DB.Where("expires_at <= ?", now).Delete(&models.ClarificationSession{})
	if result.Error != nil {
		logger.Get().Error("failed to delete expired sessions", zap.Error(result.Error))
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

var _ SessionRepo = (*SessionRepository)(nil)
