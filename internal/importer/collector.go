package importer

import (
	"context"
	"log"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

// Collector records structured row diagnostics for a batch. Records are
// append-only; a failed write is logged and dropped rather than aborting
// the worker that produced it.
type Collector struct {
	repo repository.ImportErrorRepository
	clk  clock.Clock
}

// NewCollector creates an error collector over the error repository.
func NewCollector(repo repository.ImportErrorRepository, clk clock.Clock) *Collector {
	return &Collector{repo: repo, clk: clk}
}

// Record persists one finding as an import error record.
func (c *Collector) Record(ctx context.Context, batchID uuid.UUID, finding domain.RowFinding) {
	entry := domain.ImportError{
		ID:        uuid.New(),
		BatchID:   batchID,
		RowNumber: finding.RowNumber,
		Kind:      finding.Kind,
		Message:   finding.Message,
		Severity:  finding.Severity,
		CreatedAt: c.clk.Now(),
	}
	if finding.Column != "" {
		column := finding.Column
		entry.Column = &column
	}
	if finding.RawValue != "" {
		raw := finding.RawValue
		entry.RawValue = &raw
	}
	if finding.SuggestedFix != "" {
		fix := finding.SuggestedFix
		entry.SuggestedFix = &fix
	}

	if err := c.repo.Record(ctx, entry); err != nil {
		log.Printf("failed to record import error for batch %s row %d: %v",
			batchID, finding.RowNumber, err)
	}
}

// RecordAll persists every finding of a row.
func (c *Collector) RecordAll(ctx context.Context, batchID uuid.UUID, findings []domain.RowFinding) {
	for _, finding := range findings {
		c.Record(ctx, batchID, finding)
	}
}

// List returns the batch's error records, optionally filtered by severity
// and resolved state.
func (c *Collector) List(ctx context.Context, batchID uuid.UUID, filter domain.ImportErrorFilter, limit, offset int) ([]domain.ImportError, error) {
	return c.repo.List(ctx, batchID, filter, limit, offset)
}

// MarkResolved flips one record's resolved flag; repeat calls are no-ops.
func (c *Collector) MarkResolved(ctx context.Context, id uuid.UUID) error {
	return c.repo.MarkResolved(ctx, id)
}
