package importer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

// Delta is one batch of counter increments.
type Delta struct {
	Processed int
	Errors    int
	Warnings  int
}

type trackerState struct {
	total        int
	processed    int
	errorCount   int
	warningCount int
	lastPercent  int
	sinceFlush   int
	step         string
	startedAt    time.Time
}

// Tracker maintains monotonically advancing completion statistics per
// batch. Row deltas coalesce in memory and flush to the store every
// flushEvery rows so frequent updates never block the upsert pipeline; the
// terminal flush is synchronous and exact.
type Tracker struct {
	repo       repository.ProgressRepository
	batches    repository.BatchRepository
	clk        clock.Clock
	flushEvery int

	mu     sync.Mutex
	states map[uuid.UUID]*trackerState
}

// NewTracker creates a progress tracker flushing every flushEvery rows.
// Periodic flushes also refresh the batch's estimated completion time.
func NewTracker(repo repository.ProgressRepository, batches repository.BatchRepository, clk clock.Clock, flushEvery int) *Tracker {
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &Tracker{
		repo:       repo,
		batches:    batches,
		clk:        clk,
		flushEvery: flushEvery,
		states:     make(map[uuid.UUID]*trackerState),
	}
}

// Begin registers a batch with its declared total and writes the initial
// snapshot.
func (t *Tracker) Begin(ctx context.Context, batchID uuid.UUID, total int, step string) {
	t.mu.Lock()
	t.states[batchID] = &trackerState{total: total, step: step, startedAt: t.clk.Now()}
	snapshot := t.snapshotLocked(batchID, "import started")
	t.mu.Unlock()

	t.write(ctx, snapshot)
}

// Advance increments the batch counters, flushing a snapshot when enough
// rows accumulated since the last write.
func (t *Tracker) Advance(ctx context.Context, batchID uuid.UUID, delta Delta) {
	t.mu.Lock()
	state, ok := t.states[batchID]
	if !ok {
		t.mu.Unlock()
		return
	}

	state.processed += delta.Processed
	state.errorCount += delta.Errors
	state.warningCount += delta.Warnings
	state.sinceFlush += delta.Processed

	if state.sinceFlush < t.flushEvery {
		t.mu.Unlock()
		return
	}
	state.sinceFlush = 0
	snapshot := t.snapshotLocked(batchID, "processing rows")
	estimate := t.estimateLocked(state)
	t.mu.Unlock()

	t.write(ctx, snapshot)
	if estimate != nil {
		if err := t.batches.SetEstimatedCompletion(ctx, batchID, *estimate); err != nil {
			// Advisory, like the snapshot itself.
			log.Printf("failed to set estimated completion for batch %s: %v", batchID, err)
		}
	}
}

// estimateLocked extrapolates the finish time from the per-row pace so far.
// Returns nil until at least one row is processed or once the batch has
// caught up with its declared total.
func (t *Tracker) estimateLocked(state *trackerState) *time.Time {
	if state.processed <= 0 || state.total <= state.processed {
		return nil
	}
	now := t.clk.Now()
	perRow := now.Sub(state.startedAt) / time.Duration(state.processed)
	eta := now.Add(perRow * time.Duration(state.total-state.processed))
	return &eta
}

// Finish writes the exact terminal snapshot and forgets the batch.
func (t *Tracker) Finish(ctx context.Context, batchID uuid.UUID, step, message string) {
	t.mu.Lock()
	state, ok := t.states[batchID]
	if !ok {
		t.mu.Unlock()
		return
	}
	state.step = step
	snapshot := t.snapshotLocked(batchID, message)
	delete(t.states, batchID)
	t.mu.Unlock()

	t.write(ctx, snapshot)
}

// Latest returns the most recent persisted snapshot for a batch.
func (t *Tracker) Latest(ctx context.Context, batchID uuid.UUID) (domain.ProgressSnapshot, error) {
	return t.repo.Latest(ctx, batchID)
}

func (t *Tracker) snapshotLocked(batchID uuid.UUID, message string) domain.ProgressSnapshot {
	state := t.states[batchID]

	percent := domain.ComputePercent(state.processed, state.total)
	if percent != nil {
		// Never report a lower percentage than a previous snapshot, even
		// if the declared total was revised upward mid-batch.
		if *percent < state.lastPercent {
			*percent = state.lastPercent
		}
		state.lastPercent = *percent
	}

	return domain.ProgressSnapshot{
		BatchID:       batchID,
		Percent:       percent,
		Step:          state.step,
		Message:       message,
		ProcessedRows: state.processed,
		TotalRows:     state.total,
		ErrorCount:    state.errorCount,
		WarningCount:  state.warningCount,
		UpdatedAt:     t.clk.Now(),
	}
}

func (t *Tracker) write(ctx context.Context, snapshot domain.ProgressSnapshot) {
	if err := t.repo.Upsert(ctx, snapshot); err != nil {
		// Progress is advisory; a failed flush must not stall the import.
		log.Printf("failed to flush progress for batch %s: %v", snapshot.BatchID, err)
	}
}
