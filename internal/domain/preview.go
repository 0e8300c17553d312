package domain

import "time"

// RowFinding is one validation finding surfaced in a preview.
type RowFinding struct {
	RowNumber    int           `json:"row_number"`
	Column       string        `json:"column,omitempty"`
	Kind         ErrorKind     `json:"kind"`
	Message      string        `json:"message"`
	RawValue     string        `json:"raw_value,omitempty"`
	SuggestedFix string        `json:"suggested_fix,omitempty"`
	Severity     ErrorSeverity `json:"severity"`
}

// PreviewRow carries a capped sample of parsed row data.
type PreviewRow struct {
	RowNumber int               `json:"row_number"`
	Values    map[string]string `json:"values"`
	Errors    []string          `json:"errors,omitempty"`
}

// ValidationPreview is the ephemeral, non-committing result of a dry-run
// validation. It is never referenced by a Batch and must be treated as gone
// once ExpiresAt passes.
type ValidationPreview struct {
	Token       string       `json:"token"`
	FileName    string       `json:"file_name"`
	TotalRows   int          `json:"total_rows"`
	ValidRows   int          `json:"valid_rows"`
	InvalidRows int          `json:"invalid_rows"`
	Errors      []RowFinding `json:"errors"`
	Warnings    []RowFinding `json:"warnings"`
	Rows        []PreviewRow `json:"rows"`
	ExpiresAt   time.Time    `json:"expires_at"`
}
