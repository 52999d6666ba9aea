package models

import "time"

// SessionState tracks where a clarification dialogue stands.
type SessionState string

const (
	SessionAwaitingClarification SessionState = "awaiting_clarification"
	SessionResolved              SessionState = "resolved"
	SessionExpired               SessionState = "expired"
)

// ClarificationSession holds a partial, low-confidence analysis while the
// user is asked a disambiguating question. At most one active session exists
// per user; a newer analysis supersedes (invalidates) a pending one, it is
// never merged with it.
type ClarificationSession struct {
	ID            uint         `gorm:"primarykey"`
	SessionKey    string       `gorm:"size:64;uniqueIndex"`
	UserID        uint         `gorm:"index"`
	Fingerprint   string       `gorm:"size:128"`
	Description   string       // raw description from the partial result
	PartialResult []byte       `gorm:"type:bytea"` // serialized ProviderResult
	Question      string
	State         SessionState `gorm:"size:32"`
	CreatedAt     time.Time
	ExpiresAt     time.Time `gorm:"index"`
}

// Expired reports whether the session TTL has elapsed at the given instant.
func (s *ClarificationSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
