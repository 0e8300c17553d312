package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrorSeverity ranks a row diagnostic.
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "ERROR"
	SeverityWarning ErrorSeverity = "WARNING"
	SeverityInfo    ErrorSeverity = "INFO"
)

// ErrorKind classifies what went wrong with a row or column.
type ErrorKind string

const (
	ErrKindMissingField        ErrorKind = "MISSING_FIELD"
	ErrKindInvalidFormat       ErrorKind = "INVALID_FORMAT"
	ErrKindUnknownValue        ErrorKind = "UNKNOWN_VALUE"
	ErrKindUnresolvedReference ErrorKind = "UNRESOLVED_REFERENCE"
	ErrKindAmbiguousReference  ErrorKind = "AMBIGUOUS_REFERENCE"
	ErrKindDuplicateRow        ErrorKind = "DUPLICATE_ROW"
	ErrKindStoreFailure        ErrorKind = "STORE_FAILURE"
)

// ImportError captures one diagnostic tied to a batch row and optionally a
// column. Records are append-only; repeated identical findings across rows
// stay distinct.
type ImportError struct {
	ID           uuid.UUID     `json:"id"`
	BatchID      uuid.UUID     `json:"batch_id"`
	RowNumber    int           `json:"row_number"`
	Column       *string       `json:"column,omitempty"`
	Kind         ErrorKind     `json:"kind"`
	Message      string        `json:"message"`
	RawValue     *string       `json:"raw_value,omitempty"`
	SuggestedFix *string       `json:"suggested_fix,omitempty"`
	Severity     ErrorSeverity `json:"severity"`
	Resolved     bool          `json:"resolved"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ImportErrorFilter narrows error queries for a batch.
type ImportErrorFilter struct {
	Severity *ErrorSeverity
	Resolved *bool
}
