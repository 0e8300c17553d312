package domain

import (
	"time"

	"github.com/google/uuid"
)

// CourtType enumerates the recognized court categories.
type CourtType string

const (
	CourtTypeDistrict  CourtType = "DISTRICT"
	CourtTypeSuperior  CourtType = "SUPERIOR"
	CourtTypeMunicipal CourtType = "MUNICIPAL"
	CourtTypeAppeals   CourtType = "APPEALS"
	CourtTypeFamily    CourtType = "FAMILY"
	CourtTypeJuvenile  CourtType = "JUVENILE"
)

// CourtTypes lists the closed set of court types for membership checks.
func CourtTypes() []string {
	return []string{
		string(CourtTypeDistrict),
		string(CourtTypeSuperior),
		string(CourtTypeMunicipal),
		string(CourtTypeAppeals),
		string(CourtTypeFamily),
		string(CourtTypeJuvenile),
	}
}

// Court is a reference entity resolved by its unique code.
type Court struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	County    string    `json:"county,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CaseType is a reference entity resolved by its unique code.
type CaseType struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
