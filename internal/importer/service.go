package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/config"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrDuplicateFile is returned when an uploaded file's checksum matches a
// previously processed batch that did not fail.
var ErrDuplicateFile = errors.New("duplicate import file")

// ErrDryRunIntake is returned when a dry-run configuration reaches the
// committing intake path; dry runs go through Preview and never create a
// batch.
var ErrDryRunIntake = errors.New("dry-run imports must use the preview endpoint")

// IntakeRequest describes one uploaded import file.
type IntakeRequest struct {
	FileName string
	FileSize int64
	Data     io.Reader
	Config   domain.ImportConfig
}

// Service orchestrates the daily import pipeline: checksum gate, row
// validation, entity resolution, case/activity upsert, and batch lifecycle.
type Service struct {
	batches   repository.BatchRepository
	collector *Collector
	tracker   *Tracker
	resolver  *Resolver
	engine    *UpsertEngine
	lifecycle *Lifecycle
	previews  *PreviewCache
	clk       clock.Clock

	workers       int
	previewRowCap int
}

// NewService wires the pipeline components together.
func NewService(
	batches repository.BatchRepository,
	collector *Collector,
	tracker *Tracker,
	resolver *Resolver,
	engine *UpsertEngine,
	lifecycle *Lifecycle,
	previews *PreviewCache,
	clk clock.Clock,
	cfg config.ImportConfig,
) *Service {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	previewRowCap := cfg.PreviewRowCap
	if previewRowCap < 1 {
		previewRowCap = 10
	}
	return &Service{
		batches:       batches,
		collector:     collector,
		tracker:       tracker,
		resolver:      resolver,
		engine:        engine,
		lifecycle:     lifecycle,
		previews:      previews,
		clk:           clk,
		workers:       workers,
		previewRowCap: previewRowCap,
	}
}

// Import admits a file through the checksum gate and processes it to a
// terminal batch status. Row-level failures never fail the batch; the
// returned batch carries the final counts and status.
func (s *Service) Import(ctx context.Context, req IntakeRequest) (domain.Batch, error) {
	batch, payload, err := s.intake(ctx, req)
	if err != nil {
		return domain.Batch{}, err
	}

	s.run(ctx, batch, payload)

	return s.batches.GetByID(ctx, batch.ID)
}

// intake implements the checksum and dedup gate: it computes the content
// checksum, rejects duplicates of non-failed batches, and persists the new
// PENDING batch. The existence check is advisory; two concurrent identical
// uploads may both pass, which downstream case-key uniqueness keeps safe.
func (s *Service) intake(ctx context.Context, req IntakeRequest) (domain.Batch, []byte, error) {
	if req.Config.DryRun {
		return domain.Batch{}, nil, ErrDryRunIntake
	}
	if strings.TrimSpace(req.FileName) == "" {
		return domain.Batch{}, nil, errors.New("file name is required")
	}
	if req.Data == nil {
		return domain.Batch{}, nil, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return domain.Batch{}, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return domain.Batch{}, nil, errors.New("file is empty")
	}

	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	exists, err := s.batches.ExistsByChecksum(ctx, checksum)
	if err != nil {
		return domain.Batch{}, nil, fmt.Errorf("failed to check for duplicate file: %w", err)
	}
	if exists {
		return domain.Batch{}, nil, fmt.Errorf("%w: checksum %s", ErrDuplicateFile, checksum)
	}

	size := req.FileSize
	if size <= 0 {
		size = int64(len(payload))
	}

	batch, err := s.batches.Create(ctx, domain.NewBatch(req.FileName, size, checksum, req.Config, s.clk.Now()))
	if err != nil {
		return domain.Batch{}, nil, fmt.Errorf("failed to create batch: %w", err)
	}

	return batch, payload, nil
}

// run drives one admitted batch to a terminal status.
func (s *Service) run(ctx context.Context, batch domain.Batch, payload []byte) {
	if err := s.lifecycle.Start(ctx, batch.ID); err != nil {
		s.collector.Record(ctx, batch.ID, domain.RowFinding{
			Kind:     domain.ErrKindStoreFailure,
			Message:  fmt.Sprintf("failed to start batch: %v", err),
			Severity: domain.SeverityError,
		})
		return
	}

	table, err := parseTable(batch.FileName, payload)
	if err != nil {
		s.tracker.Begin(ctx, batch.ID, batch.TotalRows, "parsing")
		s.failBatch(ctx, batch.ID, 0, 0, fmt.Sprintf("unreadable source file: %v", err))
		return
	}

	total := len(table.Rows)
	if err := s.batches.SetTotalRows(ctx, batch.ID, total); err != nil {
		s.failBatch(ctx, batch.ID, 0, 0, fmt.Sprintf("failed to record row count: %v", err))
		return
	}

	s.tracker.Begin(ctx, batch.ID, total, "processing")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.lifecycle.Register(batch.ID, cancel)
	defer s.lifecycle.Unregister(batch.ID)

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.workers)

	for _, row := range table.Rows {
		if gctx.Err() != nil {
			// Abort or a batch-fatal condition halts further dispatch;
			// rows already committed stay committed.
			break
		}

		validated := ValidateRow(row)
		s.collector.RecordAll(ctx, batch.ID, validated.Findings)

		if validated.HasErrors() {
			failed.Add(1)
			s.tracker.Advance(ctx, batch.ID, rowDelta(validated.Findings))
			continue
		}

		g.Go(func() error {
			return s.commitRow(gctx, batch, validated, &succeeded, &failed)
		})
	}

	err = g.Wait()

	switch {
	case err != nil && errors.Is(err, errRetryExhausted):
		s.failBatch(ctx, batch.ID, int(succeeded.Load()), int(failed.Load()),
			fmt.Sprintf("store retry budget exhausted: %v", err))
	case runCtx.Err() != nil:
		s.failBatch(ctx, batch.ID, int(succeeded.Load()), int(failed.Load()), "import aborted")
	default:
		if err := s.lifecycle.Complete(ctx, batch.ID, int(succeeded.Load()), int(failed.Load())); err != nil {
			s.failBatch(ctx, batch.ID, int(succeeded.Load()), int(failed.Load()),
				fmt.Sprintf("failed to finalize batch: %v", err))
			return
		}
		s.tracker.Finish(ctx, batch.ID, "completed", "import completed")
	}
}

// commitRow resolves and persists one validated row. Row-level problems are
// recorded and absorbed; only an exhausted store-retry budget propagates,
// which the caller promotes to a batch-fatal condition.
func (s *Service) commitRow(ctx context.Context, batch domain.Batch, validated ValidatedRow, succeeded, failed *atomic.Int64) error {
	if ctx.Err() != nil {
		return nil
	}

	resolved, err := s.resolver.Resolve(ctx, validated, batch.Config)
	if err != nil {
		s.collector.Record(ctx, batch.ID, storeFinding(validated.Row.Number, err))
		failed.Add(1)
		delta := rowDelta(validated.Findings)
		delta.Errors++
		s.tracker.Advance(ctx, batch.ID, delta)
		return nil
	}

	resolutionFindings := resolved.Findings[len(validated.Findings):]
	s.collector.RecordAll(ctx, batch.ID, resolutionFindings)

	if resolved.HasErrors() {
		failed.Add(1)
		s.tracker.Advance(ctx, batch.ID, rowDelta(resolved.Findings))
		return nil
	}

	committed, err := s.engine.CommitRow(ctx, batch.ID, resolved)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		s.collector.Record(ctx, batch.ID, storeFinding(validated.Row.Number, err))
		failed.Add(1)
		delta := rowDelta(resolved.Findings)
		delta.Errors++
		s.tracker.Advance(ctx, batch.ID, delta)
		if errors.Is(err, errRetryExhausted) {
			return err
		}
		return nil
	}
	if !committed {
		s.collector.Record(ctx, batch.ID, domain.RowFinding{
			RowNumber: validated.Row.Number,
			Kind:      domain.ErrKindDuplicateRow,
			Message:   "row already committed by an earlier attempt; skipped",
			Severity:  domain.SeverityInfo,
		})
	}

	succeeded.Add(1)
	s.tracker.Advance(ctx, batch.ID, rowDelta(resolved.Findings))
	return nil
}

func (s *Service) failBatch(ctx context.Context, batchID uuid.UUID, succeeded, failed int, reason string) {
	if err := s.lifecycle.Fail(ctx, batchID, succeeded, failed, reason); err != nil {
		s.collector.Record(ctx, batchID, domain.RowFinding{
			Kind:     domain.ErrKindStoreFailure,
			Message:  fmt.Sprintf("failed to mark batch failed: %v", err),
			Severity: domain.SeverityError,
		})
	}
	s.tracker.Finish(ctx, batchID, "failed", reason)
}

// Preview validates a file without committing anything: no batch, no
// entities, only an ephemeral result with a bounded lifetime.
func (s *Service) Preview(ctx context.Context, req IntakeRequest) (domain.ValidationPreview, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return domain.ValidationPreview{}, errors.New("file name is required")
	}
	if req.Data == nil {
		return domain.ValidationPreview{}, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return domain.ValidationPreview{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return domain.ValidationPreview{}, errors.New("file is empty")
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return domain.ValidationPreview{}, err
	}

	preview := domain.ValidationPreview{
		Token:     uuid.NewString(),
		FileName:  req.FileName,
		TotalRows: len(table.Rows),
		Errors:    []domain.RowFinding{},
		Warnings:  []domain.RowFinding{},
		Rows:      []domain.PreviewRow{},
		ExpiresAt: s.clk.Now().Add(s.previews.TTL()),
	}

	for idx, row := range table.Rows {
		validated := ValidateRow(row)

		var rowErrors []string
		for _, finding := range validated.Findings {
			switch finding.Severity {
			case domain.SeverityError:
				preview.Errors = append(preview.Errors, finding)
				rowErrors = append(rowErrors, finding.Message)
			case domain.SeverityWarning:
				preview.Warnings = append(preview.Warnings, finding)
			}
		}

		if validated.HasErrors() {
			preview.InvalidRows++
		} else {
			preview.ValidRows++
		}

		if idx < s.previewRowCap {
			preview.Rows = append(preview.Rows, domain.PreviewRow{
				RowNumber: row.Number,
				Values:    row.Values,
				Errors:    rowErrors,
			})
		}
	}

	s.previews.Put(preview)

	return preview, nil
}

// GetPreview returns a cached preview while it is still alive.
func (s *Service) GetPreview(token string) (domain.ValidationPreview, error) {
	return s.previews.Get(token)
}

// GetBatch loads a batch by id.
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (domain.Batch, error) {
	return s.batches.GetByID(ctx, id)
}

// Progress returns the latest progress snapshot for a batch.
func (s *Service) Progress(ctx context.Context, batchID uuid.UUID) (domain.ProgressSnapshot, error) {
	return s.tracker.Latest(ctx, batchID)
}

// Errors returns a batch's diagnostics, optionally filtered.
func (s *Service) Errors(ctx context.Context, batchID uuid.UUID, filter domain.ImportErrorFilter, limit, offset int) ([]domain.ImportError, error) {
	return s.collector.List(ctx, batchID, filter, limit, offset)
}

// ResolveError marks one diagnostic resolved.
func (s *Service) ResolveError(ctx context.Context, id uuid.UUID) error {
	return s.collector.MarkResolved(ctx, id)
}

// Abort cancels a running batch's dispatch.
func (s *Service) Abort(batchID uuid.UUID) error {
	return s.lifecycle.Abort(batchID)
}

// Clean archives a terminal batch.
func (s *Service) Clean(ctx context.Context, batchID uuid.UUID) error {
	return s.lifecycle.Clean(ctx, batchID)
}

func rowDelta(findings []domain.RowFinding) Delta {
	delta := Delta{Processed: 1}
	for _, finding := range findings {
		switch finding.Severity {
		case domain.SeverityError:
			delta.Errors++
		case domain.SeverityWarning:
			delta.Warnings++
		}
	}
	return delta
}

func storeFinding(rowNumber int, err error) domain.RowFinding {
	return domain.RowFinding{
		RowNumber: rowNumber,
		Kind:      domain.ErrKindStoreFailure,
		Message:   err.Error(),
		Severity:  domain.SeverityError,
	}
}
