package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressSnapshot is a point-in-time statistic for a batch. Percent is nil
// while the total row count is unknown, otherwise within [0,100] and
// non-decreasing across a batch's lifetime.
type ProgressSnapshot struct {
	BatchID       uuid.UUID `json:"batch_id"`
	Percent       *int      `json:"percent,omitempty"`
	Step          string    `json:"step"`
	Message       string    `json:"message"`
	ProcessedRows int       `json:"processed_rows"`
	TotalRows     int       `json:"total_rows"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ComputePercent derives the clamped completion percentage, or nil when the
// declared total is unknown.
func ComputePercent(processed, total int) *int {
	if total <= 0 {
		return nil
	}
	pct := processed * 100 / total
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &pct
}
