package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type judgeRepository struct {
	pool *pgxpool.Pool
}

// NewJudgeRepository wires a repository backed by pgxpool.
func NewJudgeRepository(pool *pgxpool.Pool) JudgeRepository {
	return &judgeRepository{pool: pool}
}

func (r *judgeRepository) ListByNormalizedName(ctx context.Context, normalized string) ([]domain.Judge, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, full_name, normalized_name, active, created_at, updated_at
		 FROM judges
		 WHERE normalized_name = $1
		 ORDER BY updated_at DESC, id`,
		normalized,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list judges: %w", err)
	}
	defer rows.Close()

	judges := []domain.Judge{}
	for rows.Next() {
		var judge domain.Judge
		if scanErr := rows.Scan(
			&judge.ID,
			&judge.FullName,
			&judge.NormalizedName,
			&judge.Active,
			&judge.CreatedAt,
			&judge.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan judge: %w", scanErr)
		}
		judges = append(judges, judge)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate judges: %w", rowsErr)
	}

	return judges, nil
}

func (r *judgeRepository) Create(ctx context.Context, judge domain.Judge) (domain.Judge, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO judges (id, full_name, normalized_name, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		judge.ID,
		judge.FullName,
		judge.NormalizedName,
		judge.Active,
		judge.CreatedAt,
		judge.UpdatedAt,
	)
	if err != nil {
		return domain.Judge{}, fmt.Errorf("failed to create judge: %w", err)
	}

	return judge, nil
}
