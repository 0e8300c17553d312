package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

// Resolver maps a validated row onto existing or new reference entities.
type Resolver struct {
	courts    repository.CourtRepository
	caseTypes repository.CaseTypeRepository
	judges    repository.JudgeRepository
	clk       clock.Clock
}

// NewResolver creates an entity resolver over the reference repositories.
func NewResolver(
	courts repository.CourtRepository,
	caseTypes repository.CaseTypeRepository,
	judges repository.JudgeRepository,
	clk clock.Clock,
) *Resolver {
	return &Resolver{
		courts:    courts,
		caseTypes: caseTypes,
		judges:    judges,
		clk:       clk,
	}
}

// ResolvedRow is a validated row with its reference entities attached.
type ResolvedRow struct {
	ValidatedRow
	Court    domain.Court
	CaseType domain.CaseType
	// Judges holds the resolved judges in slot order; the first entry is
	// the primary judge when any slot was filled.
	Judges []domain.Judge
}

// Resolve works through the row's references in order, short-circuiting on
// the first unresolvable one: court, case type, then judges. Resolution
// findings are appended to the row's findings; an ERROR finding means the
// row must be skipped for persistence.
func (r *Resolver) Resolve(ctx context.Context, row ValidatedRow, cfg domain.ImportConfig) (ResolvedRow, error) {
	resolved := ResolvedRow{ValidatedRow: row}

	court, err := r.resolveCourt(ctx, &resolved, cfg)
	if err != nil {
		return resolved, err
	}
	if resolved.HasErrors() {
		return resolved, nil
	}
	resolved.Court = court

	caseType, err := r.resolveCaseType(ctx, &resolved, cfg)
	if err != nil {
		return resolved, err
	}
	if resolved.HasErrors() {
		return resolved, nil
	}
	resolved.CaseType = caseType

	for _, name := range row.Record.JudgeNames {
		judge, err := r.resolveJudge(ctx, &resolved, name)
		if err != nil {
			return resolved, err
		}
		resolved.Judges = append(resolved.Judges, judge)
	}

	return resolved, nil
}

func (r *Resolver) resolveCourt(ctx context.Context, row *ResolvedRow, cfg domain.ImportConfig) (domain.Court, error) {
	code := row.Record.CourtCode
	if code == "" {
		// Fall back to the court name as a natural key when the export
		// omits codes.
		code = row.Record.CourtName
	}

	court, err := r.courts.GetByCode(ctx, code)
	if err == nil {
		return court, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Court{}, fmt.Errorf("failed to resolve court %q: %w", code, err)
	}

	if !cfg.AutoCreateCourts {
		row.fail(colCourtCode, domain.ErrKindUnresolvedReference,
			fmt.Sprintf("court %q does not exist and auto-create is disabled", code), code)
		return domain.Court{}, nil
	}

	now := r.clk.Now()
	return r.courts.Create(ctx, domain.Court{
		ID:        uuid.New(),
		Code:      code,
		Name:      row.Record.CourtName,
		Type:      row.Record.CourtType,
		County:    row.Record.County,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (r *Resolver) resolveCaseType(ctx context.Context, row *ResolvedRow, cfg domain.ImportConfig) (domain.CaseType, error) {
	code := row.Record.CaseTypeCode

	caseType, err := r.caseTypes.GetByCode(ctx, code)
	if err == nil {
		return caseType, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.CaseType{}, fmt.Errorf("failed to resolve case type %q: %w", code, err)
	}

	if !cfg.AutoCreateCaseTypes {
		row.fail(colCaseTypeCode, domain.ErrKindUnresolvedReference,
			fmt.Sprintf("case type %q does not exist and auto-create is disabled", code), code)
		return domain.CaseType{}, nil
	}

	name := row.Record.CaseTypeName
	if name == "" {
		name = code
	}

	now := r.clk.Now()
	return r.caseTypes.Create(ctx, domain.CaseType{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (r *Resolver) resolveJudge(ctx context.Context, row *ResolvedRow, name string) (domain.Judge, error) {
	normalized := domain.NormalizeJudgeName(name)

	matches, err := r.judges.ListByNormalizedName(ctx, normalized)
	if err != nil {
		return domain.Judge{}, fmt.Errorf("failed to resolve judge %q: %w", name, err)
	}

	switch len(matches) {
	case 0:
		// Stub judges stay inactive until an operator confirms them.
		now := r.clk.Now()
		return r.judges.Create(ctx, domain.Judge{
			ID:             uuid.New(),
			FullName:       name,
			NormalizedName: normalized,
			Active:         false,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	case 1:
		return matches[0], nil
	default:
		// Matches arrive most-recently-updated first, so picking the head
		// stays deterministic.
		row.warn("", domain.ErrKindAmbiguousReference,
			fmt.Sprintf("%d judges match %q, selected the most recently updated", len(matches), name),
			name, "")
		return matches[0], nil
	}
}
