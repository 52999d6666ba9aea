package repository

import (
	"time"

	"github.com/mealscan/mealscan-api/internal/models"
)

// SessionRepo manages clarification sessions. At most one session per user is
// in the awaiting state at any time.
type SessionRepo interface {
	// CreateSession stores a new awaiting session, invalidating any prior
	// active session for the same user in the same transaction.
	CreateSession(session *models.ClarificationSession) error
	// GetActiveSessionByKey returns the awaiting, unexpired session for the
	// key, or NotFoundError.
	GetActiveSessionByKey(sessionKey string, now time.Time) (*models.ClarificationSession, error)
	// InvalidateUserSessions marks every awaiting session of the user expired.
	InvalidateUserSessions(userID uint) error
	// MarkResolved transitions a session out of the awaiting state.
	MarkResolved(sessionKey string) error
	// DeleteExpired removes sessions past their TTL.
	DeleteExpired(now time.Time) (int64, error)
}

// MealLogRepo manages the persisted meal history.
type MealLogRepo interface {
	CreateMealLog(log *models.MealLog) error
	GetUserMealLogs(userID uint, page, perPage int) ([]models.MealLog, int64, error)
	GetMealLogByID(id uint) (*models.MealLog, error)
	UpdateMealLogPhotoURL(id uint, photoURL string) error
}
