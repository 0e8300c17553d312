package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/courtdata/internal/domain"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Column names after header sanitization. Judge slots judge1..judge7 exist
// for historical export-format reasons; see judgeSlots.
const (
	colCaseNumber        = "case_number"
	colCourtName         = "court_name"
	colCourtCode         = "court_code"
	colCourtType         = "court_type"
	colCounty            = "county"
	colCaseTypeCode      = "case_type_code"
	colCaseTypeName      = "case_type_name"
	colFiledDate         = "filed_date"
	colCaseStatus        = "case_status"
	colActivityDate      = "activity_date"
	colOutcome           = "outcome"
	colCustodyStatus     = "custody_status"
	colNextHearingDate   = "next_hearing_date"
	colWitnessCount      = "witness_count"
	colVictimCount       = "victim_count"
	colCompletionPercent = "completion_percent"
)

const judgeSlotCount = 7

const suggestionThreshold = 0.8

var requiredColumns = []string{
	colCaseNumber,
	colCourtName,
	colCaseTypeCode,
	colActivityDate,
	colOutcome,
	colCustodyStatus,
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// RowRecord is the typed form of one validated import row.
type RowRecord struct {
	CaseNumber        string
	CourtName         string
	CourtCode         string
	CourtType         string
	County            string
	CaseTypeCode      string
	CaseTypeName      string
	FiledDate         *time.Time
	CaseStatus        string
	ActivityDate      time.Time
	Outcome           string
	CustodyStatus     string
	NextHearingDate   *time.Time
	WitnessCount      int
	VictimCount       int
	CompletionPercent int
	// JudgeNames preserves the non-empty judge slots in order; the first
	// entry is the primary judge.
	JudgeNames []string
}

// ValidatedRow pairs a parsed row with its validation findings.
type ValidatedRow struct {
	Row      RawRow
	Record   RowRecord
	Findings []domain.RowFinding
}

// HasErrors reports whether any finding excludes the row from commit.
func (v ValidatedRow) HasErrors() bool {
	for _, finding := range v.Findings {
		if finding.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

// Warnings returns the WARNING-severity findings.
func (v ValidatedRow) Warnings() []domain.RowFinding {
	var warnings []domain.RowFinding
	for _, finding := range v.Findings {
		if finding.Severity == domain.SeverityWarning {
			warnings = append(warnings, finding)
		}
	}
	return warnings
}

// ValidateRow runs the fixed check sequence against one raw row: required
// fields, type coercion, closed-set membership, then cross-field checks.
func ValidateRow(row RawRow) ValidatedRow {
	validated := ValidatedRow{Row: row}
	record := &validated.Record

	for _, column := range requiredColumns {
		if row.Get(column) == "" {
			validated.fail(column, domain.ErrKindMissingField,
				fmt.Sprintf("required field %s is missing", column), "")
		}
	}

	record.CaseNumber = row.Get(colCaseNumber)
	record.CourtName = row.Get(colCourtName)
	record.CourtCode = row.Get(colCourtCode)
	record.County = row.Get(colCounty)
	record.CaseTypeCode = row.Get(colCaseTypeCode)
	record.CaseTypeName = row.Get(colCaseTypeName)
	record.Outcome = row.Get(colOutcome)

	if raw := row.Get(colActivityDate); raw != "" {
		if ts, err := parseDate(raw); err != nil {
			validated.fail(colActivityDate, domain.ErrKindInvalidFormat,
				fmt.Sprintf("unable to parse %q as a date", raw), raw)
		} else {
			record.ActivityDate = ts
		}
	}

	if raw := row.Get(colFiledDate); raw != "" {
		if ts, err := parseDate(raw); err != nil {
			validated.fail(colFiledDate, domain.ErrKindInvalidFormat,
				fmt.Sprintf("unable to parse %q as a date", raw), raw)
		} else {
			record.FiledDate = &ts
		}
	}

	if raw := row.Get(colNextHearingDate); raw != "" {
		if ts, err := parseDate(raw); err != nil {
			validated.fail(colNextHearingDate, domain.ErrKindInvalidFormat,
				fmt.Sprintf("unable to parse %q as a date", raw), raw)
		} else {
			record.NextHearingDate = &ts
		}
	}

	record.WitnessCount = validated.coerceCount(row, colWitnessCount)
	record.VictimCount = validated.coerceCount(row, colVictimCount)
	record.CompletionPercent = validated.coercePercent(row, colCompletionPercent)

	record.CourtType = validated.checkEnum(row, colCourtType, domain.CourtTypes())
	record.CaseStatus = validated.checkEnum(row, colCaseStatus, domain.CaseStatuses())
	record.CustodyStatus = validated.checkEnum(row, colCustodyStatus, domain.CustodyStatuses())

	if record.NextHearingDate != nil && !record.ActivityDate.IsZero() &&
		record.NextHearingDate.Before(record.ActivityDate) {
		validated.fail(colNextHearingDate, domain.ErrKindInvalidFormat,
			"next hearing date precedes the activity date", row.Get(colNextHearingDate))
	}

	for slot := 1; slot <= judgeSlotCount; slot++ {
		if name := row.Get(fmt.Sprintf("judge%d", slot)); name != "" {
			record.JudgeNames = append(record.JudgeNames, name)
		}
	}

	return validated
}

func (v *ValidatedRow) fail(column string, kind domain.ErrorKind, message, rawValue string) {
	v.Findings = append(v.Findings, domain.RowFinding{
		RowNumber: v.Row.Number,
		Column:    column,
		Kind:      kind,
		Message:   message,
		RawValue:  rawValue,
		Severity:  domain.SeverityError,
	})
}

func (v *ValidatedRow) warn(column string, kind domain.ErrorKind, message, rawValue, suggestion string) {
	v.Findings = append(v.Findings, domain.RowFinding{
		RowNumber:    v.Row.Number,
		Column:       column,
		Kind:         kind,
		Message:      message,
		RawValue:     rawValue,
		SuggestedFix: suggestion,
		Severity:     domain.SeverityWarning,
	})
}

// coerceCount parses a non-negative integer, defaulting to 0 when absent.
func (v *ValidatedRow) coerceCount(row RawRow, column string) int {
	raw := row.Get(column)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		v.fail(column, domain.ErrKindInvalidFormat,
			fmt.Sprintf("unable to parse %q as a count", raw), raw)
		return 0
	}
	return value
}

// coercePercent parses an integer clamped to [0,100], defaulting to 0.
func (v *ValidatedRow) coercePercent(row RawRow, column string) int {
	raw := row.Get(column)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		v.fail(column, domain.ErrKindInvalidFormat,
			fmt.Sprintf("unable to parse %q as a percentage", raw), raw)
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// checkEnum normalizes the value against a closed set. Unknown values are a
// WARNING, not an error, with a nearest-match suggestion when one is close
// enough.
func (v *ValidatedRow) checkEnum(row RawRow, column string, allowed []string) string {
	raw := row.Get(column)
	if raw == "" {
		return ""
	}

	upper := strings.ToUpper(strings.Join(strings.Fields(raw), "_"))
	for _, candidate := range allowed {
		if upper == candidate {
			return candidate
		}
	}

	suggestion := nearestMatch(upper, allowed)
	message := fmt.Sprintf("unknown %s value %q", column, raw)
	if suggestion != "" {
		message = fmt.Sprintf("%s, did you mean %q", message, suggestion)
	}
	v.warn(column, domain.ErrKindUnknownValue, message, raw, suggestion)
	return upper
}

// nearestMatch finds the closest allowed value using Jaro-Winkler, which
// works well for short enum tokens.
func nearestMatch(value string, allowed []string) string {
	metric := metrics.NewJaroWinkler()

	best := ""
	highest := 0.0
	for _, candidate := range allowed {
		score := strutil.Similarity(value, candidate, metric)
		if score > highest {
			highest = score
			best = candidate
		}
	}

	if highest >= suggestionThreshold {
		return best
	}
	return ""
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
