package domain

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus enumerates the recognized case states.
type CaseStatus string

const (
	CaseStatusOpen      CaseStatus = "OPEN"
	CaseStatusPending   CaseStatus = "PENDING"
	CaseStatusClosed    CaseStatus = "CLOSED"
	CaseStatusAppealed  CaseStatus = "APPEALED"
	CaseStatusDismissed CaseStatus = "DISMISSED"
)

// CaseStatuses lists the closed set of case statuses for membership checks.
func CaseStatuses() []string {
	return []string{
		string(CaseStatusOpen),
		string(CaseStatusPending),
		string(CaseStatusClosed),
		string(CaseStatusAppealed),
		string(CaseStatusDismissed),
	}
}

// CustodyStatuses lists the closed set of custody states.
func CustodyStatuses() []string {
	return []string{"IN_CUSTODY", "RELEASED", "BAIL", "REMAND", "UNKNOWN"}
}

// CourtCase is the proceeding a hearing activity belongs to, uniquely keyed
// by (CaseNumber, CourtName). The import pipeline never creates two cases
// for the same pair.
type CourtCase struct {
	ID               uuid.UUID  `json:"id"`
	CaseNumber       string     `json:"case_number"`
	CourtName        string     `json:"court_name"`
	CourtID          uuid.UUID  `json:"court_id"`
	CaseTypeID       uuid.UUID  `json:"case_type_id"`
	FiledDate        *time.Time `json:"filed_date,omitempty"`
	Status           string     `json:"status"`
	TotalActivities  int        `json:"total_activities"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HearingActivity is one event on a case, produced one-per-valid-row and
// tied to exactly one owning batch. The raw judge name slots are kept as
// display-only audit attributes; the assignment relation is the source of
// truth for who heard the case.
type HearingActivity struct {
	ID                uuid.UUID  `json:"id"`
	CaseID            uuid.UUID  `json:"case_id"`
	BatchID           uuid.UUID  `json:"batch_id"`
	RowNumber         int        `json:"row_number"`
	ActivityDate      time.Time  `json:"activity_date"`
	Outcome           string     `json:"outcome"`
	CustodyStatus     string     `json:"custody_status"`
	NextHearingDate   *time.Time `json:"next_hearing_date,omitempty"`
	WitnessCount      int        `json:"witness_count"`
	VictimCount       int        `json:"victim_count"`
	CompletionPercent int        `json:"completion_percent"`
	PrimaryJudgeID    *uuid.UUID `json:"primary_judge_id,omitempty"`
	JudgeNamesRaw     []string   `json:"judge_names_raw,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
