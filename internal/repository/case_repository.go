package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/courtdata/internal/db"
	"github.com/rpattn/courtdata/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type caseRepository struct {
	conn *db.Connection
}

// NewCaseRepository wires a repository backed by the shared connection.
func NewCaseRepository(conn *db.Connection) CaseRepository {
	return &caseRepository{conn: conn}
}

func (r *caseRepository) GetByKey(ctx context.Context, caseNumber, courtName string) (domain.CourtCase, error) {
	row := r.conn.Pool.QueryRow(
		ctx,
		selectCaseSQL+` WHERE case_number = $1 AND court_name = $2`,
		caseNumber,
		courtName,
	)
	return scanCase(row)
}

func (r *caseRepository) ListAssignments(ctx context.Context, caseID uuid.UUID) ([]domain.JudgeAssignment, error) {
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT case_id, judge_id, is_primary, created_at
		 FROM judge_assignments
		 WHERE case_id = $1
		 ORDER BY created_at, judge_id`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list judge assignments: %w", err)
	}
	defer rows.Close()

	assignments := []domain.JudgeAssignment{}
	for rows.Next() {
		var assignment domain.JudgeAssignment
		if scanErr := rows.Scan(
			&assignment.CaseID,
			&assignment.JudgeID,
			&assignment.IsPrimary,
			&assignment.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan judge assignment: %w", scanErr)
		}
		assignments = append(assignments, assignment)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate judge assignments: %w", rowsErr)
	}

	return assignments, nil
}

func (r *caseRepository) InTx(ctx context.Context, fn func(CaseTx) error) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&caseTx{tx: tx})
	})
}

type caseTx struct {
	tx pgx.Tx
}

func (t *caseTx) EnsureCase(ctx context.Context, candidate domain.CourtCase) (domain.CourtCase, error) {
	// The unique (case_number, court_name) index makes the insert race
	// safe; FOR UPDATE then serializes concurrent rows for the same case
	// for the remainder of the transaction.
	_, err := t.tx.Exec(
		ctx,
		`INSERT INTO court_cases (id, case_number, court_name, court_id, case_type_id,
		        filed_date, status, total_activities, last_activity_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NULL, $8, $8)
		 ON CONFLICT (case_number, court_name) DO NOTHING`,
		candidate.ID,
		candidate.CaseNumber,
		candidate.CourtName,
		candidate.CourtID,
		candidate.CaseTypeID,
		candidate.FiledDate,
		candidate.Status,
		candidate.CreatedAt,
	)
	if err != nil {
		return domain.CourtCase{}, fmt.Errorf("failed to ensure case: %w", err)
	}

	row := t.tx.QueryRow(
		ctx,
		selectCaseSQL+` WHERE case_number = $1 AND court_name = $2 FOR UPDATE`,
		candidate.CaseNumber,
		candidate.CourtName,
	)
	return scanCase(row)
}

func (t *caseTx) InsertActivity(ctx context.Context, activity domain.HearingActivity) (bool, error) {
	tag, err := t.tx.Exec(
		ctx,
		`INSERT INTO hearing_activities (id, case_id, batch_id, row_number, activity_date,
		        outcome, custody_status, next_hearing_date, witness_count, victim_count,
		        completion_percent, primary_judge_id, judge_names_raw, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (batch_id, row_number) DO NOTHING`,
		activity.ID,
		activity.CaseID,
		activity.BatchID,
		activity.RowNumber,
		activity.ActivityDate,
		activity.Outcome,
		activity.CustodyStatus,
		activity.NextHearingDate,
		activity.WitnessCount,
		activity.VictimCount,
		activity.CompletionPercent,
		activity.PrimaryJudgeID,
		activity.JudgeNamesRaw,
		activity.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert hearing activity: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (t *caseTx) EnsurePrimaryAssignment(ctx context.Context, caseID, judgeID uuid.UUID) error {
	// Demote-then-upsert keeps exactly one primary per case within the
	// row's transaction.
	_, err := t.tx.Exec(
		ctx,
		`UPDATE judge_assignments
		 SET is_primary = FALSE
		 WHERE case_id = $1 AND judge_id <> $2 AND is_primary`,
		caseID,
		judgeID,
	)
	if err != nil {
		return fmt.Errorf("failed to demote primary assignments: %w", err)
	}

	_, err = t.tx.Exec(
		ctx,
		`INSERT INTO judge_assignments (case_id, judge_id, is_primary, created_at)
		 VALUES ($1, $2, TRUE, NOW())
		 ON CONFLICT (case_id, judge_id) DO UPDATE SET is_primary = TRUE`,
		caseID,
		judgeID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert primary assignment: %w", err)
	}

	return nil
}

func (t *caseTx) EnsureSecondaryAssignment(ctx context.Context, caseID, judgeID uuid.UUID) error {
	// DO NOTHING preserves an existing primary flag for this judge.
	_, err := t.tx.Exec(
		ctx,
		`INSERT INTO judge_assignments (case_id, judge_id, is_primary, created_at)
		 VALUES ($1, $2, FALSE, NOW())
		 ON CONFLICT (case_id, judge_id) DO NOTHING`,
		caseID,
		judgeID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert secondary assignment: %w", err)
	}
	return nil
}

func (t *caseTx) BumpActivityStats(ctx context.Context, caseID uuid.UUID, activityDate time.Time) error {
	_, err := t.tx.Exec(
		ctx,
		`UPDATE court_cases
		 SET total_activities = total_activities + 1,
		     last_activity_date = GREATEST(COALESCE(last_activity_date, $2), $2),
		     updated_at = NOW()
		 WHERE id = $1`,
		caseID,
		activityDate,
	)
	if err != nil {
		return fmt.Errorf("failed to bump case activity stats: %w", err)
	}
	return nil
}

const selectCaseSQL = `SELECT id, case_number, court_name, court_id, case_type_id, filed_date,
        status, total_activities, last_activity_date, created_at, updated_at
 FROM court_cases`

func scanCase(row pgx.Row) (domain.CourtCase, error) {
	var (
		courtCase    domain.CourtCase
		filedDate    pgtype.Timestamptz
		lastActivity pgtype.Timestamptz
	)
	err := row.Scan(
		&courtCase.ID,
		&courtCase.CaseNumber,
		&courtCase.CourtName,
		&courtCase.CourtID,
		&courtCase.CaseTypeID,
		&filedDate,
		&courtCase.Status,
		&courtCase.TotalActivities,
		&lastActivity,
		&courtCase.CreatedAt,
		&courtCase.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CourtCase{}, ErrNotFound
		}
		return domain.CourtCase{}, fmt.Errorf("failed to scan case: %w", err)
	}

	if filedDate.Valid {
		courtCase.FiledDate = &filedDate.Time
	}
	if lastActivity.Valid {
		courtCase.LastActivityDate = &lastActivity.Time
	}

	return courtCase, nil
}
