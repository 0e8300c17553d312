package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/config"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

type pipelineFixture struct {
	clk       *clock.Mock
	batches   *stubBatchRepo
	progress  *stubProgressRepo
	errs      *stubErrorRepo
	courts    *stubCourtRepo
	caseTypes *stubCaseTypeRepo
	judges    *stubJudgeRepo
	cases     *stubCaseRepo
	service   *Service
}

func newPipelineFixture(t *testing.T, cfg config.ImportConfig) *pipelineFixture {
	t.Helper()

	clk := clock.NewMock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	batches := newStubBatchRepo()
	progress := newStubProgressRepo()
	errs := &stubErrorRepo{}
	courts := newStubCourtRepo()
	caseTypes := newStubCaseTypeRepo()
	judges := newStubJudgeRepo()
	cases := newStubCaseRepo()

	collector := NewCollector(errs, clk)
	tracker := NewTracker(progress, batches, clk, cfg.ProgressFlushRows)
	resolver := NewResolver(courts, caseTypes, judges, clk)
	engine := NewUpsertEngine(cases, clk, cfg.RetryBudget)
	lifecycle := NewLifecycle(batches, clk)
	previews := NewPreviewCache(clk, cfg.PreviewTTL)

	service := NewService(batches, collector, tracker, resolver, engine, lifecycle, previews, clk, cfg)

	return &pipelineFixture{
		clk:       clk,
		batches:   batches,
		progress:  progress,
		errs:      errs,
		courts:    courts,
		caseTypes: caseTypes,
		judges:    judges,
		cases:     cases,
		service:   service,
	}
}

func testImportConfig() config.ImportConfig {
	return config.ImportConfig{
		Workers:           2,
		RetryBudget:       2,
		ProgressFlushRows: 1,
		PreviewTTL:        15 * time.Minute,
		PreviewRowCap:     10,
		SessionIdle:       30 * time.Minute,
	}
}

const importHeader = "case_number,court_name,court_code,case_type_code,activity_date,outcome,custody_status,judge1\n"

func validRowLine(caseNumber string, day int) string {
	return fmt.Sprintf("%s,King County District Court,KCDC,CRIM,2025-03-%02d,CONTINUED,IN_CUSTODY,Hon. A Mercer\n", caseNumber, day)
}

func TestServiceImportCommitsValidRowsAndRecordsFailures(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	var data strings.Builder
	data.WriteString(importHeader)
	for i := 1; i <= 8; i++ {
		data.WriteString(validRowLine(fmt.Sprintf("25CR%04d", i), i))
	}
	// Missing case_number and missing outcome respectively.
	data.WriteString(",King County District Court,KCDC,CRIM,2025-03-09,CONTINUED,IN_CUSTODY,\n")
	data.WriteString("25CR0100,King County District Court,KCDC,CRIM,2025-03-09,,IN_CUSTODY,\n")

	batch, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data.String()),
		Config:   domain.ImportConfig{AutoCreateCourts: true, AutoCreateCaseTypes: true},
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if batch.Status != domain.BatchStatusCompleted {
		t.Fatalf("expected COMPLETED batch, got %s", batch.Status)
	}
	if batch.TotalRows != 10 || batch.SucceededRows != 8 || batch.FailedRows != 2 {
		t.Fatalf("unexpected counts: total=%d succeeded=%d failed=%d",
			batch.TotalRows, batch.SucceededRows, batch.FailedRows)
	}

	if got := fixture.cases.activityCount(); got != 8 {
		t.Fatalf("expected 8 activities, got %d", got)
	}

	missing := 0
	for _, record := range fixture.errs.records {
		if record.Kind == domain.ErrKindMissingField && record.Severity == domain.SeverityError {
			missing++
		}
	}
	if missing != 2 {
		t.Fatalf("expected 2 missing-field errors, got %d", missing)
	}

	snapshot, err := fixture.progress.Latest(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("latest progress returned error: %v", err)
	}
	if snapshot.Percent == nil || *snapshot.Percent != 100 {
		t.Fatalf("expected terminal progress at 100%%, got %+v", snapshot.Percent)
	}
	if snapshot.ProcessedRows != 10 {
		t.Fatalf("expected 10 processed rows in terminal snapshot, got %d", snapshot.ProcessedRows)
	}
}

func TestServiceImportRejectsDuplicateChecksum(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	data := importHeader + validRowLine("25CR0001", 1)
	cfg := domain.ImportConfig{AutoCreateCourts: true, AutoCreateCaseTypes: true}

	if _, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data),
		Config:   cfg,
	}); err != nil {
		t.Fatalf("first import returned error: %v", err)
	}

	_, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily-again.csv",
		Data:     strings.NewReader(data),
		Config:   cfg,
	})
	if !errors.Is(err, ErrDuplicateFile) {
		t.Fatalf("expected ErrDuplicateFile, got %v", err)
	}

	if got := fixture.batches.count(); got != 1 {
		t.Fatalf("expected a single batch, got %d", got)
	}
}

func TestServiceImportUnresolvedReferencesWithAutoCreateDisabled(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())
	fixture.courts.seed(domain.Court{ID: uuid.New(), Code: "KCDC", Name: "King County District Court"})
	fixture.caseTypes.seed(domain.CaseType{ID: uuid.New(), Code: "CRIM", Name: "Criminal"})

	var data strings.Builder
	data.WriteString(importHeader)
	for i := 1; i <= 8; i++ {
		data.WriteString(validRowLine(fmt.Sprintf("25CR%04d", i), i))
	}
	data.WriteString("25CR0900,Out Of State Court,OOSC,CRIM,2025-03-09,CONTINUED,RELEASED,\n")
	data.WriteString("25CR0901,Out Of State Court,OOSC,CRIM,2025-03-09,CONTINUED,RELEASED,\n")

	batch, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data.String()),
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if batch.Status != domain.BatchStatusCompleted {
		t.Fatalf("expected COMPLETED batch, got %s", batch.Status)
	}
	if batch.SucceededRows != 8 || batch.FailedRows != 2 {
		t.Fatalf("unexpected counts: succeeded=%d failed=%d", batch.SucceededRows, batch.FailedRows)
	}

	unresolved := 0
	for _, record := range fixture.errs.records {
		if record.Kind == domain.ErrKindUnresolvedReference {
			unresolved++
		}
	}
	if unresolved != 2 {
		t.Fatalf("expected 2 unresolved-reference errors, got %d", unresolved)
	}
	if fixture.courts.count() != 1 {
		t.Fatalf("expected no courts auto-created, got %d", fixture.courts.count())
	}
}

func TestServiceImportSameCaseAccumulatesActivities(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	data := importHeader +
		validRowLine("25CR0001", 1) +
		validRowLine("25CR0001", 2)

	batch, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data),
		Config:   domain.ImportConfig{AutoCreateCourts: true, AutoCreateCaseTypes: true},
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if batch.SucceededRows != 2 {
		t.Fatalf("expected 2 committed rows, got %d", batch.SucceededRows)
	}

	courtCase, err := fixture.cases.GetByKey(context.Background(), "25CR0001", "King County District Court")
	if err != nil {
		t.Fatalf("case lookup returned error: %v", err)
	}
	if courtCase.TotalActivities != 2 {
		t.Fatalf("expected 2 activities on the case, got %d", courtCase.TotalActivities)
	}
	if courtCase.LastActivityDate == nil || courtCase.LastActivityDate.Day() != 2 {
		t.Fatalf("expected last activity date to advance, got %v", courtCase.LastActivityDate)
	}
	if fixture.cases.caseCount() != 1 {
		t.Fatalf("expected a single case, got %d", fixture.cases.caseCount())
	}

	assignments, err := fixture.cases.ListAssignments(context.Background(), courtCase.ID)
	if err != nil {
		t.Fatalf("assignment lookup returned error: %v", err)
	}
	primaries := 0
	for _, assignment := range assignments {
		if assignment.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary assignment, got %d", primaries)
	}
}

func TestServiceImportUnreadableFileFailsBatch(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	batch, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.txt",
		Data:     strings.NewReader("not a table"),
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if batch.Status != domain.BatchStatusFailed {
		t.Fatalf("expected FAILED batch, got %s", batch.Status)
	}
	if len(batch.Warnings) == 0 || !strings.Contains(batch.Warnings[0], "unreadable") {
		t.Fatalf("expected an unreadable-file warning, got %v", batch.Warnings)
	}
}

func TestServiceImportStoreFailureFailsBatch(t *testing.T) {
	cfg := testImportConfig()
	cfg.Workers = 1
	fixture := newPipelineFixture(t, cfg)
	fixture.cases.failInserts = 100

	data := importHeader + validRowLine("25CR0001", 1) + validRowLine("25CR0002", 2)

	batch, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data),
		Config:   domain.ImportConfig{AutoCreateCourts: true, AutoCreateCaseTypes: true},
	})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if batch.Status != domain.BatchStatusFailed {
		t.Fatalf("expected FAILED batch, got %s", batch.Status)
	}

	storeFailures := 0
	for _, record := range fixture.errs.records {
		if record.Kind == domain.ErrKindStoreFailure {
			storeFailures++
		}
	}
	if storeFailures == 0 {
		t.Fatalf("expected a store-failure diagnostic")
	}
}

func TestServiceImportAbortHaltsDispatchAndKeepsCommittedRows(t *testing.T) {
	cfg := testImportConfig()
	cfg.Workers = 1
	fixture := newPipelineFixture(t, cfg)

	inserting := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fixture.cases.insertHook = func() {
		once.Do(func() {
			close(inserting)
			<-release
		})
	}

	data := importHeader +
		validRowLine("25CR0001", 1) +
		validRowLine("25CR0002", 2) +
		validRowLine("25CR0003", 3)

	type result struct {
		batch domain.Batch
		err   error
	}
	done := make(chan result, 1)
	go func() {
		batch, err := fixture.service.Import(context.Background(), IntakeRequest{
			FileName: "daily.csv",
			Data:     strings.NewReader(data),
			Config:   domain.ImportConfig{AutoCreateCourts: true, AutoCreateCaseTypes: true},
		})
		done <- result{batch: batch, err: err}
	}()

	// The first row is mid-commit once the hook fires, so the batch exists
	// and is registered as running.
	<-inserting
	running, ok := fixture.batches.first()
	if !ok {
		t.Fatal("expected a batch before aborting")
	}
	if err := fixture.service.Abort(running.ID); err != nil {
		t.Fatalf("abort returned error: %v", err)
	}
	close(release)

	got := <-done
	if got.err != nil {
		t.Fatalf("import returned error: %v", got.err)
	}
	if got.batch.Status != domain.BatchStatusFailed {
		t.Fatalf("expected FAILED batch after abort, got %s", got.batch.Status)
	}

	aborted := false
	for _, warning := range got.batch.Warnings {
		if warning == "import aborted" {
			aborted = true
		}
	}
	if !aborted {
		t.Fatalf("expected abort reason in warnings, got %v", got.batch.Warnings)
	}

	// The in-flight row finishes and stays committed; the remaining rows
	// were never dispatched.
	if count := fixture.cases.activityCount(); count != 1 {
		t.Fatalf("expected 1 committed activity, got %d", count)
	}
	if got.batch.SucceededRows != 1 || got.batch.FailedRows != 0 {
		t.Fatalf("unexpected counts after abort: %+v", got.batch)
	}

	if err := fixture.service.Abort(running.ID); !errors.Is(err, ErrBatchNotRunning) {
		t.Fatalf("expected ErrBatchNotRunning after completion, got %v", err)
	}
}

func TestServiceCommitRowRecordsIdempotentSkip(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	batch := domain.NewBatch("daily.csv", 64, "abc123",
		domain.ImportConfig{AutoCreateCourts: true, AutoCreateCaseTypes: true}, fixture.clk.Now())
	if _, err := fixture.batches.Create(context.Background(), batch); err != nil {
		t.Fatalf("batch create returned error: %v", err)
	}

	validated := ValidateRow(RawRow{Number: 2, Values: baseRowValues()})
	if validated.HasErrors() {
		t.Fatalf("fixture row must be valid, got %+v", validated.Findings)
	}

	// A prior attempt already landed this (batch, row) activity.
	fixture.cases.activities[fmt.Sprintf("%s|%d", batch.ID, 2)] = domain.HearingActivity{BatchID: batch.ID, RowNumber: 2}

	var succeeded, failed atomic.Int64
	if err := fixture.service.commitRow(context.Background(), batch, validated, &succeeded, &failed); err != nil {
		t.Fatalf("commit returned error: %v", err)
	}
	if succeeded.Load() != 1 || failed.Load() != 0 {
		t.Fatalf("expected the skipped row to count as succeeded, got %d/%d", succeeded.Load(), failed.Load())
	}

	duplicates := 0
	for _, record := range fixture.errs.records {
		if record.Kind == domain.ErrKindDuplicateRow {
			duplicates++
			if record.Severity != domain.SeverityInfo {
				t.Fatalf("expected INFO severity for the skip, got %s", record.Severity)
			}
		}
	}
	if duplicates != 1 {
		t.Fatalf("expected one duplicate-row diagnostic, got %d", duplicates)
	}
}

func TestServiceImportRejectsDryRunConfig(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	_, err := fixture.service.Import(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(importHeader + validRowLine("25CR0001", 1)),
		Config:   domain.ImportConfig{DryRun: true},
	})
	if !errors.Is(err, ErrDryRunIntake) {
		t.Fatalf("expected ErrDryRunIntake, got %v", err)
	}
	if fixture.batches.count() != 0 {
		t.Fatalf("expected no batch for dry run, got %d", fixture.batches.count())
	}
}

func TestServicePreviewCommitsNothing(t *testing.T) {
	fixture := newPipelineFixture(t, testImportConfig())

	// custody_status BALE is unknown but close to BAIL: a warning only.
	data := importHeader +
		"25CR0001,King County District Court,KCDC,CRIM,2025-03-01,CONTINUED,BALE,\n" +
		validRowLine("25CR0002", 2)

	preview, err := fixture.service.Preview(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data),
	})
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}

	if preview.TotalRows != 2 || preview.ValidRows != 2 || preview.InvalidRows != 0 {
		t.Fatalf("unexpected preview counts: %+v", preview)
	}
	if len(preview.Warnings) == 0 {
		t.Fatalf("expected at least one warning")
	}
	if preview.Warnings[0].SuggestedFix != "BAIL" {
		t.Fatalf("expected BAIL suggestion, got %q", preview.Warnings[0].SuggestedFix)
	}

	if fixture.batches.count() != 0 {
		t.Fatalf("expected no batch from preview, got %d", fixture.batches.count())
	}
	if fixture.cases.activityCount() != 0 {
		t.Fatalf("expected no activities from preview, got %d", fixture.cases.activityCount())
	}

	cached, err := fixture.service.GetPreview(preview.Token)
	if err != nil {
		t.Fatalf("cached preview lookup returned error: %v", err)
	}
	if cached.TotalRows != preview.TotalRows {
		t.Fatalf("cached preview does not match: %+v", cached)
	}
}

func TestServicePreviewCapsSampledRows(t *testing.T) {
	cfg := testImportConfig()
	cfg.PreviewRowCap = 3
	fixture := newPipelineFixture(t, cfg)

	var data strings.Builder
	data.WriteString(importHeader)
	for i := 1; i <= 9; i++ {
		data.WriteString(validRowLine(fmt.Sprintf("25CR%04d", i), i))
	}

	preview, err := fixture.service.Preview(context.Background(), IntakeRequest{
		FileName: "daily.csv",
		Data:     strings.NewReader(data.String()),
	})
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}

	if preview.TotalRows != 9 {
		t.Fatalf("expected 9 total rows, got %d", preview.TotalRows)
	}
	if len(preview.Rows) != 3 {
		t.Fatalf("expected 3 sampled rows, got %d", len(preview.Rows))
	}
}

// ---- in-memory stub repositories ----

type stubBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]domain.Batch
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{batches: make(map[uuid.UUID]domain.Batch)}
}

func (s *stubBatchRepo) Create(ctx context.Context, batch domain.Batch) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = batch
	return batch, nil
}

func (s *stubBatchRepo) first() (domain.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, batch := range s.batches {
		return batch, true
	}
	return domain.Batch{}, false
}

func (s *stubBatchRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return domain.Batch{}, repository.ErrNotFound
	}
	return batch, nil
}

func (s *stubBatchRepo) ExistsByChecksum(ctx context.Context, checksum string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, batch := range s.batches {
		if batch.Checksum == checksum && batch.Status != domain.BatchStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubBatchRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.BatchStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok || batch.Status != from {
		return repository.ErrStatusConflict
	}
	batch.Status = to
	switch to {
	case domain.BatchStatusProcessing:
		batch.StartedAt = &at
	case domain.BatchStatusCompleted, domain.BatchStatusFailed:
		batch.CompletedAt = &at
	}
	s.batches[id] = batch
	return nil
}

func (s *stubBatchRepo) SetTotalRows(ctx context.Context, id uuid.UUID, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.batches[id]
	batch.TotalRows = total
	s.batches[id] = batch
	return nil
}

func (s *stubBatchRepo) SetCounts(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.batches[id]
	batch.SucceededRows = succeeded
	batch.FailedRows = failed
	s.batches[id] = batch
	return nil
}

func (s *stubBatchRepo) SetEstimatedCompletion(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok || batch.Status != domain.BatchStatusProcessing {
		return nil
	}
	estimate := at
	batch.EstimatedCompletion = &estimate
	s.batches[id] = batch
	return nil
}

func (s *stubBatchRepo) AppendWarning(ctx context.Context, id uuid.UUID, warning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.batches[id]
	batch.Warnings = append(batch.Warnings, warning)
	s.batches[id] = batch
	return nil
}

func (s *stubBatchRepo) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type stubProgressRepo struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]domain.ProgressSnapshot
	history   []domain.ProgressSnapshot
}

func newStubProgressRepo() *stubProgressRepo {
	return &stubProgressRepo{snapshots: make(map[uuid.UUID]domain.ProgressSnapshot)}
}

func (s *stubProgressRepo) Upsert(ctx context.Context, snapshot domain.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.snapshots[snapshot.BatchID]; ok {
		if existing.Percent != nil && snapshot.Percent != nil && *snapshot.Percent < *existing.Percent {
			snapshot.Percent = existing.Percent
		}
		if snapshot.ProcessedRows < existing.ProcessedRows {
			snapshot.ProcessedRows = existing.ProcessedRows
		}
	}
	s.snapshots[snapshot.BatchID] = snapshot
	s.history = append(s.history, snapshot)
	return nil
}

func (s *stubProgressRepo) Latest(ctx context.Context, batchID uuid.UUID) (domain.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[batchID]
	if !ok {
		return domain.ProgressSnapshot{}, repository.ErrNotFound
	}
	return snapshot, nil
}

type stubErrorRepo struct {
	mu      sync.Mutex
	records []domain.ImportError
}

func (s *stubErrorRepo) Record(ctx context.Context, entry domain.ImportError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, entry)
	return nil
}

func (s *stubErrorRepo) List(ctx context.Context, batchID uuid.UUID, filter domain.ImportErrorFilter, limit, offset int) ([]domain.ImportError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.ImportError
	for _, record := range s.records {
		if record.BatchID != batchID {
			continue
		}
		if filter.Severity != nil && record.Severity != *filter.Severity {
			continue
		}
		if filter.Resolved != nil && record.Resolved != *filter.Resolved {
			continue
		}
		matched = append(matched, record)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *stubErrorRepo) MarkResolved(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx := range s.records {
		if s.records[idx].ID == id {
			s.records[idx].Resolved = true
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubCourtRepo struct {
	mu     sync.Mutex
	courts map[string]domain.Court
}

func newStubCourtRepo() *stubCourtRepo {
	return &stubCourtRepo{courts: make(map[string]domain.Court)}
}

func (s *stubCourtRepo) seed(court domain.Court) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courts[court.Code] = court
}

func (s *stubCourtRepo) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.courts)
}

func (s *stubCourtRepo) GetByCode(ctx context.Context, code string) (domain.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	court, ok := s.courts[code]
	if !ok {
		return domain.Court{}, repository.ErrNotFound
	}
	return court, nil
}

func (s *stubCourtRepo) Create(ctx context.Context, court domain.Court) (domain.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.courts[court.Code]; ok {
		return existing, nil
	}
	s.courts[court.Code] = court
	return court, nil
}

type stubCaseTypeRepo struct {
	mu        sync.Mutex
	caseTypes map[string]domain.CaseType
}

func newStubCaseTypeRepo() *stubCaseTypeRepo {
	return &stubCaseTypeRepo{caseTypes: make(map[string]domain.CaseType)}
}

func (s *stubCaseTypeRepo) seed(caseType domain.CaseType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caseTypes[caseType.Code] = caseType
}

func (s *stubCaseTypeRepo) GetByCode(ctx context.Context, code string) (domain.CaseType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	caseType, ok := s.caseTypes[code]
	if !ok {
		return domain.CaseType{}, repository.ErrNotFound
	}
	return caseType, nil
}

func (s *stubCaseTypeRepo) Create(ctx context.Context, caseType domain.CaseType) (domain.CaseType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.caseTypes[caseType.Code]; ok {
		return existing, nil
	}
	s.caseTypes[caseType.Code] = caseType
	return caseType, nil
}

type stubJudgeRepo struct {
	mu     sync.Mutex
	judges map[string][]domain.Judge
}

func newStubJudgeRepo() *stubJudgeRepo {
	return &stubJudgeRepo{judges: make(map[string][]domain.Judge)}
}

func (s *stubJudgeRepo) seed(judge domain.Judge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judges[judge.NormalizedName] = append([]domain.Judge{judge}, s.judges[judge.NormalizedName]...)
}

func (s *stubJudgeRepo) ListByNormalizedName(ctx context.Context, normalized string) ([]domain.Judge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Judge(nil), s.judges[normalized]...), nil
}

func (s *stubJudgeRepo) Create(ctx context.Context, judge domain.Judge) (domain.Judge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judges[judge.NormalizedName] = append(s.judges[judge.NormalizedName], judge)
	return judge, nil
}

type stubCaseRepo struct {
	mu          sync.Mutex
	cases       map[string]*domain.CourtCase
	activities  map[string]domain.HearingActivity
	assignments map[string]domain.JudgeAssignment
	failInserts int
	insertHook  func()
}

func newStubCaseRepo() *stubCaseRepo {
	return &stubCaseRepo{
		cases:       make(map[string]*domain.CourtCase),
		activities:  make(map[string]domain.HearingActivity),
		assignments: make(map[string]domain.JudgeAssignment),
	}
}

func caseKey(caseNumber, courtName string) string {
	return caseNumber + "\x00" + courtName
}

func (s *stubCaseRepo) GetByKey(ctx context.Context, caseNumber, courtName string) (domain.CourtCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	courtCase, ok := s.cases[caseKey(caseNumber, courtName)]
	if !ok {
		return domain.CourtCase{}, repository.ErrNotFound
	}
	return *courtCase, nil
}

func (s *stubCaseRepo) ListAssignments(ctx context.Context, caseID uuid.UUID) ([]domain.JudgeAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.JudgeAssignment
	for _, assignment := range s.assignments {
		if assignment.CaseID == caseID {
			matched = append(matched, assignment)
		}
	}
	return matched, nil
}

func (s *stubCaseRepo) InTx(ctx context.Context, fn func(repository.CaseTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&stubCaseTx{repo: s})
}

func (s *stubCaseRepo) activityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activities)
}

func (s *stubCaseRepo) caseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cases)
}

type stubCaseTx struct {
	repo *stubCaseRepo
}

func (t *stubCaseTx) EnsureCase(ctx context.Context, candidate domain.CourtCase) (domain.CourtCase, error) {
	key := caseKey(candidate.CaseNumber, candidate.CourtName)
	if existing, ok := t.repo.cases[key]; ok {
		return *existing, nil
	}
	stored := candidate
	stored.TotalActivities = 0
	t.repo.cases[key] = &stored
	return stored, nil
}

func (t *stubCaseTx) InsertActivity(ctx context.Context, activity domain.HearingActivity) (bool, error) {
	if t.repo.insertHook != nil {
		t.repo.insertHook()
	}
	if t.repo.failInserts > 0 {
		t.repo.failInserts--
		return false, errors.New("simulated store failure")
	}
	key := fmt.Sprintf("%s|%d", activity.BatchID, activity.RowNumber)
	if _, ok := t.repo.activities[key]; ok {
		return false, nil
	}
	t.repo.activities[key] = activity
	return true, nil
}

func (t *stubCaseTx) EnsurePrimaryAssignment(ctx context.Context, caseID, judgeID uuid.UUID) error {
	for key, assignment := range t.repo.assignments {
		if assignment.CaseID == caseID && assignment.JudgeID != judgeID && assignment.IsPrimary {
			assignment.IsPrimary = false
			t.repo.assignments[key] = assignment
		}
	}
	key := fmt.Sprintf("%s|%s", caseID, judgeID)
	assignment, ok := t.repo.assignments[key]
	if !ok {
		assignment = domain.JudgeAssignment{CaseID: caseID, JudgeID: judgeID}
	}
	assignment.IsPrimary = true
	t.repo.assignments[key] = assignment
	return nil
}

func (t *stubCaseTx) EnsureSecondaryAssignment(ctx context.Context, caseID, judgeID uuid.UUID) error {
	key := fmt.Sprintf("%s|%s", caseID, judgeID)
	if _, ok := t.repo.assignments[key]; ok {
		return nil
	}
	t.repo.assignments[key] = domain.JudgeAssignment{CaseID: caseID, JudgeID: judgeID}
	return nil
}

func (t *stubCaseTx) BumpActivityStats(ctx context.Context, caseID uuid.UUID, activityDate time.Time) error {
	for _, courtCase := range t.repo.cases {
		if courtCase.ID == caseID {
			courtCase.TotalActivities++
			if courtCase.LastActivityDate == nil || activityDate.After(*courtCase.LastActivityDate) {
				date := activityDate
				courtCase.LastActivityDate = &date
			}
			return nil
		}
	}
	return repository.ErrNotFound
}
