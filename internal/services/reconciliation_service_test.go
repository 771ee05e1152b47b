package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/db/testdb"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlib "gorm.io/gorm"
)

// fakeSyncRunner returns canned results and records what it was asked for
type fakeSyncRunner struct {
	mu sync.Mutex

	full      *dtos.FullSyncResult
	fullErr   error
	changed   *dtos.ChangedSinceResult
	changeErr error
	watermark *time.Time
	panicWith any

	gotSince time.Time
	gotOpts  dtos.SyncOptions
	block    chan struct{}
}

func (f *fakeSyncRunner) PerformFullSync(_ context.Context, opts dtos.SyncOptions) (*dtos.FullSyncResult, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.mu.Lock()
	f.gotOpts = opts
	f.mu.Unlock()
	return f.full, f.fullErr
}

func (f *fakeSyncRunner) SyncChangedSince(_ context.Context, since time.Time, opts dtos.SyncOptions) (*dtos.ChangedSinceResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.gotSince = since
	f.gotOpts = opts
	f.mu.Unlock()
	return f.changed, f.changeErr
}

func (f *fakeSyncRunner) Watermark(context.Context) (*time.Time, error) {
	return f.watermark, nil
}

type reconFixture struct {
	svc    *ReconciliationService
	runner *fakeSyncRunner
	runs   *repositories.ReconciliationRunRepo
	alerts *repositories.SystemAlertRepo
	audit  *repositories.AuditLogRepo
	db     *gormlib.DB
	now    time.Time
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	db, raw := testdb.New(t)
	f := &reconFixture{
		runner: &fakeSyncRunner{},
		runs:   repositories.NewReconciliationRunRepo(db),
		alerts: repositories.NewSystemAlertRepo(db),
		audit:  repositories.NewAuditLogRepo(db),
		db:     db,
		now:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewReconciliationService(
		f.runner, f.runs, f.alerts, f.audit,
		repositories.NewConsistencyRepo(raw),
		common.NewLocalLocker(), nil,
		ReconciliationOptions{IncrementalLookback: time.Hour, EmergencyLookback: 24 * time.Hour},
	)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestReconciliation_IncrementalCompletesWithoutAlert(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	f.runner.changed = &dtos.ChangedSinceResult{
		Jobs: dtos.SyncStatus{TotalRecords: 150, SyncedRecords: 150},
	}

	result := f.svc.Run(ctx, constants.RunTypeIncremental, constants.ActorScheduler)

	assert.Equal(t, constants.RunStatusCompleted, result.Status)
	assert.Equal(t, 150, result.RecordsProcessed)
	assert.Zero(t, result.Errors)
	require.NotEmpty(t, result.RunID)

	run, err := f.runs.FindByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusCompleted, run.Status)
	assert.Equal(t, 150, run.RecordsProcessed)
	assert.NotNil(t, run.CompletedAt)
	assert.NotNil(t, run.DurationMs)

	alerts, err := f.alerts.List(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	entries, err := f.audit.List(ctx, constants.AuditReconciliationOK, result.RunID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// no watermark yet: the default lookback applies
	assert.Equal(t, f.now.Add(-time.Hour), f.runner.gotSince)
}

func TestReconciliation_FullFailsWhenCompaniesFail(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	f.runner.full = &dtos.FullSyncResult{Companies: dtos.SyncStatus{Aborted: true, FetchErrors: 1, Errors: []string{"fetch companies: timeout"}}}
	f.runner.fullErr = errors.New("company sync failed: timeout")

	result := f.svc.Run(ctx, constants.RunTypeFull, "ops@example.test")

	assert.Equal(t, constants.RunStatusFailed, result.Status)
	assert.GreaterOrEqual(t, result.Errors, 1)
	assert.Contains(t, result.Message, "company sync failed")

	run, err := f.runs.FindByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusFailed, run.Status)
	assert.GreaterOrEqual(t, run.Errors, 1)

	alerts, err := f.alerts.List(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, constants.AlertError, alerts[0].Type)

	entries, err := f.audit.List(ctx, constants.AuditReconciliationErr, result.RunID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ops@example.test", entries[0].Actor)
	assert.Equal(t, constants.TargetReconciliationRun, entries[0].TargetType)
}

func TestReconciliation_ErrorsRaiseWarning(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	f.runner.full = &dtos.FullSyncResult{
		Companies: dtos.SyncStatus{TotalRecords: 3, SyncedRecords: 3},
		Jobs: []dtos.SyncStatus{
			{TotalRecords: 10, SyncedRecords: 8, FailedRecords: 2, Errors: []string{"job j-1: x", "job j-2: y"}},
		},
	}

	result := f.svc.Run(ctx, constants.RunTypeFull, constants.ActorSystem)

	assert.Equal(t, constants.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Errors)
	assert.Equal(t, 13, result.RecordsProcessed)
	assert.Len(t, result.ErrorDetails, 2)

	alerts, err := f.alerts.List(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, constants.AlertWarning, alerts[0].Type)
}

func TestReconciliation_CountsAbortedBatchesWithRecordFailures(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	aborted := dtos.SyncStatus{}
	aborted.AddFetchError("fetch jobs for company co-1: timeout")
	f.runner.full = &dtos.FullSyncResult{
		Companies: dtos.SyncStatus{TotalRecords: 2, SyncedRecords: 2},
		Jobs: []dtos.SyncStatus{
			aborted,
			{TotalRecords: 2, SyncedRecords: 1, FailedRecords: 1, Errors: []string{"job j-2: x"}},
		},
	}

	result := f.svc.Run(ctx, constants.RunTypeFull, constants.ActorSystem)

	assert.Equal(t, constants.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Errors)

	run, err := f.runs.FindByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Errors)
}

func TestReconciliation_RunTypesShapeTheWindow(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	f.runner.changed = &dtos.ChangedSinceResult{}

	mark := f.now.Add(-10 * time.Minute)
	f.runner.watermark = &mark
	f.svc.Run(ctx, constants.RunTypeIncremental, constants.ActorSystem)
	assert.Equal(t, mark, f.runner.gotSince)
	assert.False(t, f.runner.gotOpts.NoCache)

	f.svc.Run(ctx, constants.RunTypeEmergency, constants.ActorSystem)
	assert.Equal(t, f.now.Add(-24*time.Hour), f.runner.gotSince)
	assert.True(t, f.runner.gotOpts.NoCache)
}

// countingLocker hands out locks that count refreshes
type countingLocker struct {
	mu        sync.Mutex
	refreshes int
	released  bool
}

func (l *countingLocker) Obtain(context.Context, string, time.Duration) (common.Lock, error) {
	return l, nil
}

func (l *countingLocker) Refresh(context.Context, time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes++
	return nil
}

func (l *countingLocker) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

func (l *countingLocker) counts() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshes, l.released
}

func TestReconciliation_RefreshesLockDuringLongRun(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	locker := &countingLocker{}
	db, raw := testdb.New(t)
	svc := NewReconciliationService(
		f.runner, repositories.NewReconciliationRunRepo(db), repositories.NewSystemAlertRepo(db),
		repositories.NewAuditLogRepo(db), repositories.NewConsistencyRepo(raw),
		locker, nil,
		ReconciliationOptions{LockTTL: 30 * time.Millisecond},
	)
	f.runner.changed = &dtos.ChangedSinceResult{}
	f.runner.block = make(chan struct{})

	_, err := svc.Start(ctx, constants.RunTypeIncremental, constants.ActorSystem)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := locker.counts()
		return n >= 2
	}, time.Second, 5*time.Millisecond)

	close(f.runner.block)
	svc.Wait()

	n, released := locker.counts()
	assert.True(t, released)

	// the refresher stops with the run
	time.Sleep(50 * time.Millisecond)
	after, _ := locker.counts()
	assert.Equal(t, n, after)
}

func TestReconciliation_SingleRunAtATime(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()
	f.runner.changed = &dtos.ChangedSinceResult{}
	f.runner.block = make(chan struct{})

	run, err := f.svc.Start(ctx, constants.RunTypeIncremental, constants.ActorSystem)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusRunning, run.Status)

	_, err = f.svc.Start(ctx, constants.RunTypeFull, constants.ActorSystem)
	assert.ErrorIs(t, err, ErrRunInProgress)

	blocked := f.svc.Run(ctx, constants.RunTypeFull, constants.ActorSystem)
	assert.Equal(t, constants.RunStatusFailed, blocked.Status)
	assert.Empty(t, blocked.RunID)

	close(f.runner.block)
	f.svc.Wait()

	stored, err := f.runs.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusCompleted, stored.Status)

	runs, err := f.svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestReconciliation_PanicIsReportedAsFailure(t *testing.T) {
	f := newReconFixture(t)
	f.runner.panicWith = "nil map"

	result := f.svc.Run(context.Background(), constants.RunTypeFull, constants.ActorSystem)

	assert.Equal(t, constants.RunStatusFailed, result.Status)
	assert.Contains(t, result.Message, "panicked")

	// the lock was released
	f.runner.panicWith = nil
	f.runner.full = &dtos.FullSyncResult{}
	assert.Equal(t, constants.RunStatusCompleted, f.svc.Run(context.Background(), constants.RunTypeFull, constants.ActorSystem).Status)
}

func TestReconciliation_InvalidType(t *testing.T) {
	f := newReconFixture(t)

	result := f.svc.Run(context.Background(), "weekly", constants.ActorSystem)
	assert.Equal(t, constants.RunStatusFailed, result.Status)

	_, err := f.svc.Start(context.Background(), "weekly", constants.ActorSystem)
	assert.ErrorIs(t, err, ErrInvalidRunType)
}

func TestReconciliation_RecoverStaleRuns(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()

	stale := &gorm.ReconciliationRun{Type: constants.RunTypeFull, Status: constants.RunStatusRunning, StartedAt: f.now.Add(-2 * time.Hour)}
	require.NoError(t, f.runs.Create(ctx, stale))

	n, err := f.svc.RecoverStaleRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.svc.GetRun(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusFailed, got.Status)
}

func TestReconciliation_ConsistencyChecks(t *testing.T) {
	f := newReconFixture(t)
	ctx := context.Background()

	report, err := f.svc.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.False(t, report.HasIssues())
	assert.Len(t, report.Issues, len(repositories.ConsistencyChecks))

	_, err = repositories.NewJobRepo(f.db).Upsert(ctx, &gorm.Job{UUID: "orphan", Status: "Scheduled"}, []string{"status"})
	require.NoError(t, err)

	report, err = f.svc.CheckConsistency(ctx)
	require.NoError(t, err)
	require.True(t, report.HasIssues())

	var orphans dtos.ConsistencyIssue
	for _, issue := range report.Issues {
		if issue.Kind == "jobs_without_company" {
			orphans = issue
		}
	}
	assert.Equal(t, int64(1), orphans.Count)
	require.Len(t, orphans.Samples, 1)
	assert.Equal(t, "orphan", orphans.Samples[0]["uuid"])

	open := false
	alerts, err := f.svc.ListAlerts(ctx, &open, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, constants.AlertWarning, alerts[0].Type)

	require.NoError(t, f.svc.ResolveAlert(ctx, alerts[0].ID, "ops@example.test"))
	assert.ErrorIs(t, f.svc.ResolveAlert(ctx, alerts[0].ID, "ops@example.test"), repositories.ErrNotFound)

	assert.Equal(t, dtos.ConflictResolution{Resolved: 0, Strategies: []string{}}, f.svc.ResolveConflicts(ctx))
}
