package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importErrorRepository struct {
	pool *pgxpool.Pool
}

// NewImportErrorRepository wires a repository backed by pgxpool.
func NewImportErrorRepository(pool *pgxpool.Pool) ImportErrorRepository {
	return &importErrorRepository{pool: pool}
}

func (r *importErrorRepository) Record(ctx context.Context, entry domain.ImportError) error {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO import_errors (id, batch_id, row_number, column_name, kind, message,
		        raw_value, suggested_fix, severity, resolved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.BatchID,
		entry.RowNumber,
		entry.Column,
		string(entry.Kind),
		entry.Message,
		entry.RawValue,
		entry.SuggestedFix,
		string(entry.Severity),
		entry.Resolved,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record import error: %w", err)
	}
	return nil
}

func (r *importErrorRepository) List(ctx context.Context, batchID uuid.UUID, filter domain.ImportErrorFilter, limit, offset int) ([]domain.ImportError, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var severity any
	if filter.Severity != nil {
		severity = string(*filter.Severity)
	}
	var resolved any
	if filter.Resolved != nil {
		resolved = *filter.Resolved
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, batch_id, row_number, column_name, kind, message, raw_value,
		        suggested_fix, severity, resolved, created_at
		 FROM import_errors
		 WHERE batch_id = $1
		   AND ($2::text IS NULL OR severity = $2)
		   AND ($3::boolean IS NULL OR resolved = $3)
		 ORDER BY row_number, created_at
		 LIMIT $4 OFFSET $5`,
		batchID,
		severity,
		resolved,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import errors: %w", err)
	}
	defer rows.Close()

	entries := []domain.ImportError{}
	for rows.Next() {
		var (
			entry        domain.ImportError
			column       pgtype.Text
			rawValue     pgtype.Text
			suggestedFix pgtype.Text
			kind         string
			severityRaw  string
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.BatchID,
			&entry.RowNumber,
			&column,
			&kind,
			&entry.Message,
			&rawValue,
			&suggestedFix,
			&severityRaw,
			&entry.Resolved,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import error: %w", scanErr)
		}

		entry.Kind = domain.ErrorKind(kind)
		entry.Severity = domain.ErrorSeverity(severityRaw)
		if column.Valid {
			entry.Column = &column.String
		}
		if rawValue.Valid {
			entry.RawValue = &rawValue.String
		}
		if suggestedFix.Valid {
			entry.SuggestedFix = &suggestedFix.String
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import errors: %w", rowsErr)
	}

	return entries, nil
}

func (r *importErrorRepository) MarkResolved(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_errors SET resolved = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import error resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
