package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

// ErrBatchNotRunning is returned when an abort targets a batch with no
// active dispatch in this process.
var ErrBatchNotRunning = errors.New("batch is not running")

// Lifecycle drives the batch state machine
// PENDING → PROCESSING → {COMPLETED, FAILED} → CLEANED and keeps the abort
// registry for running batches. All transitions are guarded in the store,
// so a terminal batch never regresses.
type Lifecycle struct {
	batches repository.BatchRepository
	clk     clock.Clock

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// NewLifecycle creates a lifecycle controller over the batch repository.
func NewLifecycle(batches repository.BatchRepository, clk clock.Clock) *Lifecycle {
	return &Lifecycle{
		batches: batches,
		clk:     clk,
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start moves the batch to PROCESSING, stamping the processing-start time.
func (l *Lifecycle) Start(ctx context.Context, id uuid.UUID) error {
	return l.batches.Transition(ctx, id, domain.BatchStatusPending, domain.BatchStatusProcessing, l.clk.Now())
}

// Complete finalizes a batch whose row stream was exhausted. Row-level
// failures do not fail the batch; they only show in the counts.
func (l *Lifecycle) Complete(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	if err := l.batches.SetCounts(ctx, id, succeeded, failed); err != nil {
		return err
	}
	return l.batches.Transition(ctx, id, domain.BatchStatusProcessing, domain.BatchStatusCompleted, l.clk.Now())
}

// Fail marks a batch-fatal condition: unreadable file, exhausted store
// retries, or an operator abort. Rows committed before the failure remain.
func (l *Lifecycle) Fail(ctx context.Context, id uuid.UUID, succeeded, failed int, reason string) error {
	if err := l.batches.SetCounts(ctx, id, succeeded, failed); err != nil {
		return err
	}
	if err := l.batches.AppendWarning(ctx, id, reason); err != nil {
		return err
	}
	return l.batches.Transition(ctx, id, domain.BatchStatusProcessing, domain.BatchStatusFailed, l.clk.Now())
}

// Clean archives a terminal batch. It is an explicit operator action, never
// automatic, and never deletes anything.
func (l *Lifecycle) Clean(ctx context.Context, id uuid.UUID) error {
	now := l.clk.Now()
	err := l.batches.Transition(ctx, id, domain.BatchStatusCompleted, domain.BatchStatusCleaned, now)
	if errors.Is(err, repository.ErrStatusConflict) {
		err = l.batches.Transition(ctx, id, domain.BatchStatusFailed, domain.BatchStatusCleaned, now)
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return fmt.Errorf("batch %s is not in a terminal state: %w", id, err)
	}
	return err
}

// Register records the cancel function for a running batch dispatch.
func (l *Lifecycle) Register(id uuid.UUID, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels[id] = cancel
}

// Unregister drops the cancel function once dispatch finished.
func (l *Lifecycle) Unregister(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cancels, id)
}

// Abort cancels a running batch's row dispatch. Rows already committed
// remain.
func (l *Lifecycle) Abort(id uuid.UUID) error {
	l.mu.Lock()
	cancel, ok := l.cancels[id]
	l.mu.Unlock()
	if !ok {
		return ErrBatchNotRunning
	}
	cancel()
	return nil
}
