package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type batchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository wires a repository backed by pgxpool.
func NewBatchRepository(pool *pgxpool.Pool) BatchRepository {
	return &batchRepository{pool: pool}
}

func (r *batchRepository) Create(ctx context.Context, batch domain.Batch) (domain.Batch, error) {
	configJSON, err := json.Marshal(batch.Config)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("failed to marshal batch config: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_batches (id, import_date, file_name, file_size, checksum, total_rows,
		        succeeded_rows, failed_rows, config, warnings, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		batch.ID,
		batch.ImportDate,
		batch.FileName,
		batch.FileSize,
		batch.Checksum,
		batch.TotalRows,
		batch.SucceededRows,
		batch.FailedRows,
		configJSON,
		batch.Warnings,
		string(batch.Status),
		batch.CreatedAt,
	)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("failed to create batch: %w", err)
	}

	return batch, nil
}

func (r *batchRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Batch, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, import_date, file_name, file_size, checksum, total_rows, succeeded_rows,
		        failed_rows, config, warnings, status, created_at, started_at,
		        estimated_completion, completed_at
		 FROM import_batches
		 WHERE id = $1`,
		id,
	)

	var (
		batch      domain.Batch
		configJSON []byte
		status     string
		startedAt  pgtype.Timestamptz
		estimated  pgtype.Timestamptz
		completed  pgtype.Timestamptz
	)
	err := row.Scan(
		&batch.ID,
		&batch.ImportDate,
		&batch.FileName,
		&batch.FileSize,
		&batch.Checksum,
		&batch.TotalRows,
		&batch.SucceededRows,
		&batch.FailedRows,
		&configJSON,
		&batch.Warnings,
		&status,
		&batch.CreatedAt,
		&startedAt,
		&estimated,
		&completed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, ErrNotFound
		}
		return domain.Batch{}, fmt.Errorf("failed to get batch: %w", err)
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &batch.Config); err != nil {
			return domain.Batch{}, fmt.Errorf("failed to unmarshal batch config: %w", err)
		}
	}
	batch.Status = domain.BatchStatus(status)
	if startedAt.Valid {
		batch.StartedAt = &startedAt.Time
	}
	if estimated.Valid {
		batch.EstimatedCompletion = &estimated.Time
	}
	if completed.Valid {
		batch.CompletedAt = &completed.Time
	}

	return batch, nil
}

func (r *batchRepository) ExistsByChecksum(ctx context.Context, checksum string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM import_batches
		    WHERE checksum = $1 AND status <> $2
		 )`,
		checksum,
		string(domain.BatchStatusFailed),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check batch checksum: %w", err)
	}
	return exists, nil
}

func (r *batchRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.BatchStatus, at time.Time) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_batches
		 SET status = $1,
		     started_at = CASE WHEN $1 = 'PROCESSING' THEN $2 ELSE started_at END,
		     completed_at = CASE WHEN $1 IN ('COMPLETED', 'FAILED') THEN $2 ELSE completed_at END
		 WHERE id = $3 AND status = $4`,
		string(to),
		at,
		id,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to transition batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *batchRepository) SetTotalRows(ctx context.Context, id uuid.UUID, total int) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE import_batches SET total_rows = $1 WHERE id = $2`,
		total,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to set batch total rows: %w", err)
	}
	return nil
}

func (r *batchRepository) SetCounts(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE import_batches SET succeeded_rows = $1, failed_rows = $2 WHERE id = $3`,
		succeeded,
		failed,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to set batch counts: %w", err)
	}
	return nil
}

func (r *batchRepository) SetEstimatedCompletion(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE import_batches SET estimated_completion = $1 WHERE id = $2 AND status = 'PROCESSING'`,
		at,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to set estimated completion: %w", err)
	}
	return nil
}

func (r *batchRepository) AppendWarning(ctx context.Context, id uuid.UUID, warning string) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE import_batches SET warnings = array_append(warnings, $1) WHERE id = $2`,
		warning,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to append batch warning: %w", err)
	}
	return nil
}
