package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStatusConflict is returned when a guarded batch transition matched no
// row, i.e. the batch was not in the expected source status.
var ErrStatusConflict = errors.New("batch status conflict")

// BatchRepository persists batch lifecycle records.
type BatchRepository interface {
	Create(ctx context.Context, batch domain.Batch) (domain.Batch, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Batch, error)
	// ExistsByChecksum reports whether a batch with this checksum exists in
	// any status other than FAILED. This is the advisory dedup check; the
	// store does not enforce checksum uniqueness.
	ExistsByChecksum(ctx context.Context, checksum string) (bool, error)
	// Transition moves a batch from one status to another, stamping
	// started_at or completed_at as appropriate. Returns ErrStatusConflict
	// when the batch is not currently in the expected source status.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.BatchStatus, at time.Time) error
	SetTotalRows(ctx context.Context, id uuid.UUID, total int) error
	SetCounts(ctx context.Context, id uuid.UUID, succeeded, failed int) error
	SetEstimatedCompletion(ctx context.Context, id uuid.UUID, at time.Time) error
	AppendWarning(ctx context.Context, id uuid.UUID, warning string) error
}

// ProgressRepository stores the latest progress snapshot per batch.
type ProgressRepository interface {
	// Upsert writes a snapshot; the stored percentage never decreases.
	Upsert(ctx context.Context, snapshot domain.ProgressSnapshot) error
	Latest(ctx context.Context, batchID uuid.UUID) (domain.ProgressSnapshot, error)
}

// ImportErrorRepository stores row diagnostics for observability.
type ImportErrorRepository interface {
	Record(ctx context.Context, entry domain.ImportError) error
	List(ctx context.Context, batchID uuid.UUID, filter domain.ImportErrorFilter, limit, offset int) ([]domain.ImportError, error)
	// MarkResolved flips exactly one record's resolved flag; idempotent.
	MarkResolved(ctx context.Context, id uuid.UUID) error
}

// SessionRepository persists import sessions.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) (domain.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Session, error)
	Update(ctx context.Context, session domain.Session) (domain.Session, error)
}

// CourtRepository resolves courts by their natural code.
type CourtRepository interface {
	GetByCode(ctx context.Context, code string) (domain.Court, error)
	// Create inserts a court, tolerating a concurrent insert of the same
	// code and returning whichever row won.
	Create(ctx context.Context, court domain.Court) (domain.Court, error)
}

// CaseTypeRepository resolves case types by their natural code.
type CaseTypeRepository interface {
	GetByCode(ctx context.Context, code string) (domain.CaseType, error)
	Create(ctx context.Context, caseType domain.CaseType) (domain.CaseType, error)
}

// JudgeRepository resolves judges by normalized full name.
type JudgeRepository interface {
	// ListByNormalizedName returns matches ordered by most recently updated
	// first, so ambiguous picks stay deterministic.
	ListByNormalizedName(ctx context.Context, normalized string) ([]domain.Judge, error)
	Create(ctx context.Context, judge domain.Judge) (domain.Judge, error)
}

// CaseTx groups the per-row writes that must apply atomically: the case,
// its activity, the judge assignments, and the counter update.
type CaseTx interface {
	// EnsureCase finds the case by its (case number, court name) key,
	// creating it when absent, and locks it for the rest of the
	// transaction so concurrent same-case rows serialize.
	EnsureCase(ctx context.Context, candidate domain.CourtCase) (domain.CourtCase, error)
	// InsertActivity inserts the hearing activity keyed by
	// (batch_id, row_number). It reports false without error when the
	// activity already exists, which signals an idempotent retry.
	InsertActivity(ctx context.Context, activity domain.HearingActivity) (bool, error)
	// EnsurePrimaryAssignment upserts the primary assignment and demotes
	// any other primary assignment on the case.
	EnsurePrimaryAssignment(ctx context.Context, caseID, judgeID uuid.UUID) error
	// EnsureSecondaryAssignment inserts a non-primary assignment if the
	// (case, judge) pair has none yet.
	EnsureSecondaryAssignment(ctx context.Context, caseID, judgeID uuid.UUID) error
	// BumpActivityStats increments the case activity counter and advances
	// last_activity_date to the later of its current value and the given
	// date.
	BumpActivityStats(ctx context.Context, caseID uuid.UUID, activityDate time.Time) error
}

// CaseRepository persists cases, activities, and judge assignments.
type CaseRepository interface {
	GetByKey(ctx context.Context, caseNumber, courtName string) (domain.CourtCase, error)
	ListAssignments(ctx context.Context, caseID uuid.UUID) ([]domain.JudgeAssignment, error)
	// InTx runs fn inside one database transaction; either every write in
	// fn applies or none do.
	InTx(ctx context.Context, fn func(CaseTx) error) error
}
