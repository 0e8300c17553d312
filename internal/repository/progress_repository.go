package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type progressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository wires a repository backed by pgxpool.
func NewProgressRepository(pool *pgxpool.Pool) ProgressRepository {
	return &progressRepository{pool: pool}
}

func (r *progressRepository) Upsert(ctx context.Context, snapshot domain.ProgressSnapshot) error {
	var percent any
	if snapshot.Percent != nil {
		percent = *snapshot.Percent
	}

	// GREATEST keeps the stored percentage monotonic even if flushes land
	// out of order.
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO import_progress (batch_id, percent, step, message, processed_rows,
		        total_rows, error_count, warning_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (batch_id) DO UPDATE SET
		     percent = GREATEST(COALESCE(import_progress.percent, 0), COALESCE(EXCLUDED.percent, import_progress.percent)),
		     step = EXCLUDED.step,
		     message = EXCLUDED.message,
		     processed_rows = GREATEST(import_progress.processed_rows, EXCLUDED.processed_rows),
		     total_rows = EXCLUDED.total_rows,
		     error_count = GREATEST(import_progress.error_count, EXCLUDED.error_count),
		     warning_count = GREATEST(import_progress.warning_count, EXCLUDED.warning_count),
		     updated_at = EXCLUDED.updated_at`,
		snapshot.BatchID,
		percent,
		snapshot.Step,
		snapshot.Message,
		snapshot.ProcessedRows,
		snapshot.TotalRows,
		snapshot.ErrorCount,
		snapshot.WarningCount,
		snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress snapshot: %w", err)
	}
	return nil
}

func (r *progressRepository) Latest(ctx context.Context, batchID uuid.UUID) (domain.ProgressSnapshot, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT batch_id, percent, step, message, processed_rows, total_rows,
		        error_count, warning_count, updated_at
		 FROM import_progress
		 WHERE batch_id = $1`,
		batchID,
	)

	var (
		snapshot domain.ProgressSnapshot
		percent  pgtype.Int4
	)
	err := row.Scan(
		&snapshot.BatchID,
		&percent,
		&snapshot.Step,
		&snapshot.Message,
		&snapshot.ProcessedRows,
		&snapshot.TotalRows,
		&snapshot.ErrorCount,
		&snapshot.WarningCount,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProgressSnapshot{}, ErrNotFound
		}
		return domain.ProgressSnapshot{}, fmt.Errorf("failed to get progress snapshot: %w", err)
	}

	if percent.Valid {
		value := int(percent.Int32)
		snapshot.Percent = &value
	}

	return snapshot, nil
}
