package importer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

// errRetryExhausted marks a store failure that outlived the retry budget.
// The lifecycle controller promotes it to a batch-fatal condition.
var errRetryExhausted = errors.New("store retry budget exhausted")

const lockStripes = 64

// keyLocks serializes rows that target the same case within this process.
// Cross-process safety comes from the unique case key and row-level locking
// inside the transaction; the stripes just avoid needless conflict retries.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}

// UpsertEngine commits resolved rows: find-or-create the case, append one
// hearing activity, attach judge assignments, and bump the case counters,
// all inside a single per-row transaction.
type UpsertEngine struct {
	cases       repository.CaseRepository
	clk         clock.Clock
	retryBudget int
	locks       keyLocks
}

// NewUpsertEngine creates an engine over the case repository. retryBudget
// bounds transient store retries per row.
func NewUpsertEngine(cases repository.CaseRepository, clk clock.Clock, retryBudget int) *UpsertEngine {
	if retryBudget < 1 {
		retryBudget = 1
	}
	return &UpsertEngine{
		cases:       cases,
		clk:         clk,
		retryBudget: retryBudget,
	}
}

// CommitRow applies one resolved row atomically. Safe to re-run for an
// already-committed row: the (batch, row) activity key makes the retry a
// no-op with no duplicate assignments and no double-counted activity.
// The boolean reports whether this call committed the row; false means
// an earlier attempt already had.
func (e *UpsertEngine) CommitRow(ctx context.Context, batchID uuid.UUID, row ResolvedRow) (bool, error) {
	key := row.Record.CaseNumber + "\x00" + row.Record.CourtName
	mu := e.locks.lock(key)
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < e.retryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		committed, err := e.commitOnce(ctx, batchID, row)
		if err == nil {
			return committed, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}

	return false, fmt.Errorf("%w: %v", errRetryExhausted, lastErr)
}

func (e *UpsertEngine) commitOnce(ctx context.Context, batchID uuid.UUID, row ResolvedRow) (bool, error) {
	now := e.clk.Now()

	committed := false
	err := e.cases.InTx(ctx, func(tx repository.CaseTx) error {
		courtCase, err := tx.EnsureCase(ctx, domain.CourtCase{
			ID:         uuid.New(),
			CaseNumber: row.Record.CaseNumber,
			CourtName:  row.Record.CourtName,
			CourtID:    row.Court.ID,
			CaseTypeID: row.CaseType.ID,
			FiledDate:  row.Record.FiledDate,
			Status:     row.Record.CaseStatus,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}

		activity := domain.HearingActivity{
			ID:                uuid.New(),
			CaseID:            courtCase.ID,
			BatchID:           batchID,
			RowNumber:         row.Row.Number,
			ActivityDate:      row.Record.ActivityDate,
			Outcome:           row.Record.Outcome,
			CustodyStatus:     row.Record.CustodyStatus,
			NextHearingDate:   row.Record.NextHearingDate,
			WitnessCount:      row.Record.WitnessCount,
			VictimCount:       row.Record.VictimCount,
			CompletionPercent: row.Record.CompletionPercent,
			JudgeNamesRaw:     row.Record.JudgeNames,
			CreatedAt:         now,
		}
		if len(row.Judges) > 0 {
			primaryID := row.Judges[0].ID
			activity.PrimaryJudgeID = &primaryID
		}

		inserted, err := tx.InsertActivity(ctx, activity)
		if err != nil {
			return err
		}
		if !inserted {
			// Idempotent retry of an already-committed row.
			return nil
		}
		committed = true

		for idx, judge := range row.Judges {
			if idx == 0 {
				err = tx.EnsurePrimaryAssignment(ctx, courtCase.ID, judge.ID)
			} else {
				err = tx.EnsureSecondaryAssignment(ctx, courtCase.ID, judge.ID)
			}
			if err != nil {
				return err
			}
		}

		return tx.BumpActivityStats(ctx, courtCase.ID, row.Record.ActivityDate)
	})
	if err != nil {
		return false, err
	}
	return committed, nil
}
