package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Judge is a reference entity matched by normalized full name. Judges
// created as import stubs start inactive until confirmed by an operator.
type Judge struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	NormalizedName string    `json:"normalized_name"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeJudgeName lowercases and collapses whitespace so that
// "  Hon.  J.  Smith " and "hon. j. smith" match the same judge.
func NormalizeJudgeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// JudgeAssignment links a judge to a case. Exactly one assignment per case
// carries IsPrimary after any successfully committed row for that case.
type JudgeAssignment struct {
	CaseID    uuid.UUID `json:"case_id"`
	JudgeID   uuid.UUID `json:"judge_id"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}
