package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type caseTypeRepository struct {
	pool *pgxpool.Pool
}

// NewCaseTypeRepository wires a repository backed by pgxpool.
func NewCaseTypeRepository(pool *pgxpool.Pool) CaseTypeRepository {
	return &caseTypeRepository{pool: pool}
}

func (r *caseTypeRepository) GetByCode(ctx context.Context, code string) (domain.CaseType, error) {
	return r.scanByCode(ctx, code)
}

func (r *caseTypeRepository) Create(ctx context.Context, caseType domain.CaseType) (domain.CaseType, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO case_types (id, code, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (code) DO NOTHING`,
		caseType.ID,
		caseType.Code,
		caseType.Name,
		caseType.CreatedAt,
		caseType.UpdatedAt,
	)
	if err != nil {
		return domain.CaseType{}, fmt.Errorf("failed to create case type: %w", err)
	}

	return r.scanByCode(ctx, caseType.Code)
}

func (r *caseTypeRepository) scanByCode(ctx context.Context, code string) (domain.CaseType, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, code, name, created_at, updated_at
		 FROM case_types
		 WHERE code = $1`,
		code,
	)

	var caseType domain.CaseType
	err := row.Scan(
		&caseType.ID,
		&caseType.Code,
		&caseType.Name,
		&caseType.CreatedAt,
		&caseType.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CaseType{}, ErrNotFound
		}
		return domain.CaseType{}, fmt.Errorf("failed to get case type: %w", err)
	}

	return caseType, nil
}
