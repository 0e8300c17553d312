package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository wires a repository backed by pgxpool.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_sessions (id, user_id, token, status, started_at, last_activity_at,
		        expires_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID,
		session.UserID,
		session.Token,
		string(session.Status),
		session.StartedAt,
		session.LastActivityAt,
		session.ExpiresAt,
		metadata,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, user_id, token, status, started_at, last_activity_at, expires_at, metadata
		 FROM import_sessions
		 WHERE id = $1`,
		id,
	)

	var (
		session  domain.Session
		status   string
		metadata []byte
	)
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&status,
		&session.StartedAt,
		&session.LastActivityAt,
		&session.ExpiresAt,
		&metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	session.Status = domain.SessionStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &session.Metadata); err != nil {
			return domain.Session{}, fmt.Errorf("failed to unmarshal session metadata: %w", err)
		}
	}

	return session, nil
}

func (r *sessionRepository) Update(ctx context.Context, session domain.Session) (domain.Session, error) {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_sessions
		 SET status = $1, last_activity_at = $2, expires_at = $3, metadata = $4
		 WHERE id = $5`,
		string(session.Status),
		session.LastActivityAt,
		session.ExpiresAt,
		metadata,
		session.ID,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Session{}, ErrNotFound
	}

	return session, nil
}
