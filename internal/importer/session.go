package importer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

// ErrSessionExpired is returned when a touched session has already passed
// its idle deadline or reached a terminal status.
var ErrSessionExpired = errors.New("session expired")

// SessionManager scopes a user's import operations to a time-bounded
// session. Sessions only correlate batches; a batch outlives the session
// that started it.
type SessionManager struct {
	repo repository.SessionRepository
	clk  clock.Clock
	idle time.Duration
}

// NewSessionManager creates a manager with the given idle timeout.
func NewSessionManager(repo repository.SessionRepository, clk clock.Clock, idle time.Duration) *SessionManager {
	return &SessionManager{repo: repo, clk: clk, idle: idle}
}

// Open starts an ACTIVE session for the user with a fresh opaque token.
func (m *SessionManager) Open(ctx context.Context, userID uuid.UUID) (domain.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return domain.Session{}, err
	}

	now := m.clk.Now()
	return m.repo.Create(ctx, domain.Session{
		ID:             uuid.New(),
		UserID:         userID,
		Token:          token,
		Status:         domain.SessionStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.idle),
	})
}

// Get loads a session by id.
func (m *SessionManager) Get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	return m.repo.GetByID(ctx, id)
}

// Touch bumps the session's last-activity time and extends its idle
// deadline. Touching a session past its deadline transitions it to EXPIRED
// and fails with ErrSessionExpired.
func (m *SessionManager) Touch(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	session, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}

	if session.Status != domain.SessionStatusActive {
		return domain.Session{}, ErrSessionExpired
	}

	now := m.clk.Now()
	if session.ExpiredAt(now) {
		session.Status = domain.SessionStatusExpired
		if _, updateErr := m.repo.Update(ctx, session); updateErr != nil {
			return domain.Session{}, updateErr
		}
		return domain.Session{}, ErrSessionExpired
	}

	session.LastActivityAt = now
	session.ExpiresAt = now.Add(m.idle)
	return m.repo.Update(ctx, session)
}

// Complete closes the session normally.
func (m *SessionManager) Complete(ctx context.Context, id uuid.UUID) error {
	return m.finish(ctx, id, domain.SessionStatusCompleted)
}

// Expire forces the session into its EXPIRED terminal status.
func (m *SessionManager) Expire(ctx context.Context, id uuid.UUID) error {
	return m.finish(ctx, id, domain.SessionStatusExpired)
}

func (m *SessionManager) finish(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	session, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionStatusActive {
		// Already terminal; finishing twice is a no-op.
		return nil
	}

	session.Status = status
	session.LastActivityAt = m.clk.Now()
	_, err = m.repo.Update(ctx, session)
	return err
}

func newSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
