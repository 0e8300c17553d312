package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks a user's import session lifecycle.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusExpired   SessionStatus = "EXPIRED"
)

// Session is a time-bounded handle correlating a user's import activity.
// Batches reference sessions only for correlation; a batch outlives the
// session that started it.
type Session struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	Token          string            `json:"token"`
	Status         SessionStatus     `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ExpiredAt reports whether the session has outlived its idle deadline.
func (s Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
