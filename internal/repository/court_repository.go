package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type courtRepository struct {
	pool *pgxpool.Pool
}

// NewCourtRepository wires a repository backed by pgxpool.
func NewCourtRepository(pool *pgxpool.Pool) CourtRepository {
	return &courtRepository{pool: pool}
}

func (r *courtRepository) GetByCode(ctx context.Context, code string) (domain.Court, error) {
	return r.scanByCode(ctx, code)
}

func (r *courtRepository) Create(ctx context.Context, court domain.Court) (domain.Court, error) {
	// ON CONFLICT DO NOTHING keeps concurrent create-if-absent callers
	// safe; whoever lost the race reads the winner's row back.
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO courts (id, code, name, type, county, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (code) DO NOTHING`,
		court.ID,
		court.Code,
		court.Name,
		court.Type,
		court.County,
		court.CreatedAt,
		court.UpdatedAt,
	)
	if err != nil {
		return domain.Court{}, fmt.Errorf("failed to create court: %w", err)
	}

	return r.scanByCode(ctx, court.Code)
}

func (r *courtRepository) scanByCode(ctx context.Context, code string) (domain.Court, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, code, name, type, county, created_at, updated_at
		 FROM courts
		 WHERE code = $1`,
		code,
	)

	var court domain.Court
	err := row.Scan(
		&court.ID,
		&court.Code,
		&court.Name,
		&court.Type,
		&court.County,
		&court.CreatedAt,
		&court.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Court{}, ErrNotFound
		}
		return domain.Court{}, fmt.Errorf("failed to get court: %w", err)
	}

	return court, nil
}
