package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus tracks the lifecycle of one file-import attempt.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusFailed     BatchStatus = "FAILED"
	BatchStatusCleaned    BatchStatus = "CLEANED"
)

// Terminal reports whether the status admits no further processing.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusCleaned:
		return true
	}
	return false
}

// ImportConfig carries the caller-supplied options for one import.
type ImportConfig struct {
	AutoCreateCourts    bool `json:"auto_create_courts"`
	AutoCreateCaseTypes bool `json:"auto_create_case_types"`
	DryRun              bool `json:"dry_run"`
	TotalRowHint        int  `json:"total_row_hint"`
}

// Batch represents one file-import attempt and its lifecycle record.
// SucceededRows+FailedRows never exceeds TotalRows, and Status never
// regresses from a terminal state.
type Batch struct {
	ID                  uuid.UUID    `json:"id"`
	ImportDate          time.Time    `json:"import_date"`
	FileName            string       `json:"file_name"`
	FileSize            int64        `json:"file_size"`
	Checksum            string       `json:"checksum"`
	TotalRows           int          `json:"total_rows"`
	SucceededRows       int          `json:"succeeded_rows"`
	FailedRows          int          `json:"failed_rows"`
	Config              ImportConfig `json:"config"`
	Warnings            []string     `json:"warnings,omitempty"`
	Status              BatchStatus  `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
	StartedAt           *time.Time   `json:"started_at,omitempty"`
	EstimatedCompletion *time.Time   `json:"estimated_completion,omitempty"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
}

// NewBatch creates a pending batch for an admitted file.
func NewBatch(fileName string, fileSize int64, checksum string, cfg ImportConfig, now time.Time) Batch {
	return Batch{
		ID:         uuid.New(),
		ImportDate: now,
		FileName:   fileName,
		FileSize:   fileSize,
		Checksum:   checksum,
		TotalRows:  cfg.TotalRowHint,
		Config:     cfg,
		Status:     BatchStatusPending,
		CreatedAt:  now,
	}
}
