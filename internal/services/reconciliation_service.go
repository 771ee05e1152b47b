package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"

	"gorm.io/datatypes"
)

var (
	// ErrRunInProgress is returned when another run holds the reconciliation lock
	ErrRunInProgress = errors.New(constants.MsgRunInProgress)
	// ErrInvalidRunType is returned for run types outside full/incremental/emergency
	ErrInvalidRunType = errors.New("invalid reconciliation run type")
)

const (
	reconciliationLockKey = "reconciliation"
	lockRefreshTimeout    = 5 * time.Second
	maxErrorDetails       = 50
)

// SyncRunner is the part of the sync engine a reconciliation run drives
type SyncRunner interface {
	PerformFullSync(ctx context.Context, opts dtos.SyncOptions) (*dtos.FullSyncResult, error)
	SyncChangedSince(ctx context.Context, since time.Time, opts dtos.SyncOptions) (*dtos.ChangedSinceResult, error)
	Watermark(ctx context.Context) (*time.Time, error)
}

var _ SyncRunner = (*SyncService)(nil)

// ReconciliationOptions tunes run windows and alerting
type ReconciliationOptions struct {
	// IncrementalLookback is used when no watermark has been recorded yet
	IncrementalLookback time.Duration
	EmergencyLookback   time.Duration
	LockTTL             time.Duration
	SampleLimit         int
}

// ReconciliationService runs reconciliation passes, records them and raises
// alerts. At most one run executes at a time across every instance sharing
// the locker.
type ReconciliationService struct {
	sync        SyncRunner
	runs        RunStore
	alerts      AlertStore
	audit       AuditRecorder
	consistency ConsistencyStore
	locker      common.RunLocker
	metrics     *metrics.MetricsRegistry
	opts        ReconciliationOptions

	background sync.WaitGroup
	now        func() time.Time
}

func NewReconciliationService(
	syncRunner SyncRunner,
	runs RunStore,
	alerts AlertStore,
	audit AuditRecorder,
	consistency ConsistencyStore,
	locker common.RunLocker,
	m *metrics.MetricsRegistry,
	opts ReconciliationOptions,
) *ReconciliationService {
	if opts.IncrementalLookback <= 0 {
		opts.IncrementalLookback = time.Hour
	}
	if opts.EmergencyLookback <= 0 {
		opts.EmergencyLookback = 24 * time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 10
	}
	if locker == nil {
		locker = common.NewLocalLocker()
	}
	return &ReconciliationService{
		sync:        syncRunner,
		runs:        runs,
		alerts:      alerts,
		audit:       audit,
		consistency: consistency,
		locker:      locker,
		metrics:     m,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a reconciliation synchronously. It never returns an error:
// every failure, including a run already in progress, is reported in the
// result.
func (s *ReconciliationService) Run(ctx context.Context, runType constants.RunType, triggeredBy string) *dtos.ReconciliationResult {
	run, lock, err := s.begin(ctx, runType, triggeredBy)
	if err != nil {
		logging.Warn("Reconciliation run not started", "type", runType, "error", err)
		return &dtos.ReconciliationResult{
			Type:    runType,
			Status:  constants.RunStatusFailed,
			Message: err.Error(),
		}
	}
	defer s.releaseLock(lock)
	defer s.keepLock(lock)()
	return s.execute(ctx, run)
}

// Start creates the run record and executes it in the background. The run
// outlives ctx; use Wait to block until background runs finish.
func (s *ReconciliationService) Start(ctx context.Context, runType constants.RunType, triggeredBy string) (*gorm.ReconciliationRun, error) {
	run, lock, err := s.begin(ctx, runType, triggeredBy)
	if err != nil {
		return nil, err
	}

	snapshot := *run
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.releaseLock(lock)
		defer s.keepLock(lock)()
		s.execute(context.Background(), run)
	}()
	return &snapshot, nil
}

// Wait blocks until every background run has finished
func (s *ReconciliationService) Wait() {
	s.background.Wait()
}

func (s *ReconciliationService) begin(ctx context.Context, runType constants.RunType, triggeredBy string) (*gorm.ReconciliationRun, common.Lock, error) {
	if !runType.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidRunType, runType)
	}

	lock, err := s.locker.Obtain(ctx, reconciliationLockKey, s.opts.LockTTL)
	if errors.Is(err, common.ErrLockHeld) {
		return nil, nil, ErrRunInProgress
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to obtain reconciliation lock: %w", err)
	}

	run := &gorm.ReconciliationRun{
		Type:        runType,
		Status:      constants.RunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.releaseLock(lock)
		return nil, nil, fmt.Errorf("failed to create reconciliation run: %w", err)
	}

	logging.Info("Reconciliation run started",
		"run_id", run.ID,
		"type", runType,
		"triggered_by", triggeredBy,
	)
	return run, lock, nil
}

func (s *ReconciliationService) releaseLock(lock common.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(context.Background()); err != nil {
		logging.Warn("Failed to release reconciliation lock", "error", err)
	}
}

// keepLock refreshes lock every third of LockTTL so a run longer than the TTL
// stays exclusive. The returned func stops the refresher.
func (s *ReconciliationService) keepLock(lock common.Lock) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		interval := s.opts.LockTTL / 3
		if interval <= 0 {
			interval = s.opts.LockTTL
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), lockRefreshTimeout)
				err := lock.Refresh(ctx, s.opts.LockTTL)
				cancel()
				if err != nil {
					logging.Warn("Failed to refresh reconciliation lock", "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (s *ReconciliationService) execute(ctx context.Context, run *gorm.ReconciliationRun) (result *dtos.ReconciliationResult) {
	started := run.StartedAt

	defer func() {
		if r := recover(); r != nil {
			result = s.fail(ctx, run, started, 0, fmt.Errorf("reconciliation panicked: %v", r), nil)
		}
	}()

	totals, err := s.performSync(ctx, run.Type)
	if err != nil {
		return s.fail(ctx, run, started, totals.TotalRecords, err, totals.Errors)
	}
	return s.complete(ctx, run, started, totals)
}

// performSync maps the run type onto the sync engine
func (s *ReconciliationService) performSync(ctx context.Context, runType constants.RunType) (dtos.SyncStatus, error) {
	switch runType {
	case constants.RunTypeFull:
		res, err := s.sync.PerformFullSync(ctx, dtos.SyncOptions{})
		if res == nil {
			return dtos.SyncStatus{}, err
		}
		return res.Totals(), err

	case constants.RunTypeIncremental:
		since := s.now().Add(-s.opts.IncrementalLookback)
		if mark, err := s.sync.Watermark(ctx); err != nil {
			logging.Warn("Could not read sync watermark, using default lookback", "error", err)
		} else if mark != nil {
			since = *mark
		}
		res, err := s.sync.SyncChangedSince(ctx, since, dtos.SyncOptions{})
		if res == nil {
			return dtos.SyncStatus{}, err
		}
		return res.Totals(), err

	case constants.RunTypeEmergency:
		since := s.now().Add(-s.opts.EmergencyLookback)
		res, err := s.sync.SyncChangedSince(ctx, since, dtos.SyncOptions{NoCache: true})
		if res == nil {
			return dtos.SyncStatus{}, err
		}
		return res.Totals(), err
	}
	return dtos.SyncStatus{}, fmt.Errorf("%w: %q", ErrInvalidRunType, runType)
}

func (s *ReconciliationService) complete(ctx context.Context, run *gorm.ReconciliationRun, started time.Time, totals dtos.SyncStatus) *dtos.ReconciliationResult {
	errCount := totals.ErrorCount()
	details := capDetails(totals.Errors)
	result := s.finish(ctx, run, started, constants.RunStatusCompleted, totals.TotalRecords, errCount, details)

	if errCount > 0 {
		s.raiseAlert(ctx, constants.AlertWarning,
			"Reconciliation completed with errors",
			fmt.Sprintf("%s reconciliation completed with %d errors", run.Type, errCount),
			map[string]interface{}{"run_id": run.ID, "errors": errCount},
		)
	}
	s.recordAudit(ctx, constants.AuditReconciliationOK, run, map[string]interface{}{
		"type":              run.Type,
		"records_processed": totals.TotalRecords,
		"errors":            errCount,
		"duration_ms":       result.DurationMs,
	})

	logging.Info("Reconciliation run completed",
		"run_id", run.ID,
		"type", run.Type,
		"records_processed", totals.TotalRecords,
		"errors", errCount,
		"duration_ms", result.DurationMs,
	)
	return result
}

func (s *ReconciliationService) fail(ctx context.Context, run *gorm.ReconciliationRun, started time.Time, processed int, cause error, details []string) *dtos.ReconciliationResult {
	details = capDetails(append([]string{cause.Error()}, details...))
	result := s.finish(ctx, run, started, constants.RunStatusFailed, processed, len(details), details)
	result.Message = cause.Error()

	s.raiseAlert(ctx, constants.AlertError,
		"Reconciliation failed",
		fmt.Sprintf("%s reconciliation failed: %v", run.Type, cause),
		map[string]interface{}{"run_id": run.ID},
	)
	s.recordAudit(ctx, constants.AuditReconciliationErr, run, map[string]interface{}{
		"type":  run.Type,
		"error": cause.Error(),
	})

	logging.Error("Reconciliation run failed",
		"run_id", run.ID,
		"type", run.Type,
		"error", cause,
		"duration_ms", result.DurationMs,
	)
	return result
}

// finish writes the terminal state once. A run already finished elsewhere,
// e.g. by stale-run recovery, is left as is.
func (s *ReconciliationService) finish(ctx context.Context, run *gorm.ReconciliationRun, started time.Time, status constants.RunStatus, processed, errCount int, details []string) *dtos.ReconciliationResult {
	completed := s.now()
	duration := completed.Sub(started).Milliseconds()

	var detailJSON datatypes.JSON
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			detailJSON = b
		}
	}

	err := s.runs.Finish(ctx, run.ID, repositories.RunOutcome{
		Status:           status,
		CompletedAt:      completed,
		DurationMs:       duration,
		RecordsProcessed: processed,
		Errors:           errCount,
		ErrorDetails:     detailJSON,
	})
	switch {
	case errors.Is(err, repositories.ErrRunAlreadyTerminal):
		logging.Warn("Reconciliation run was already finished", "run_id", run.ID)
	case err != nil:
		logging.Error("Failed to record reconciliation outcome", "run_id", run.ID, "error", err)
	}

	s.metrics.ObserveRun(string(run.Type), string(status), float64(duration)/1000)

	return &dtos.ReconciliationResult{
		RunID:            run.ID,
		Type:             run.Type,
		Status:           status,
		RecordsProcessed: processed,
		Errors:           errCount,
		ErrorDetails:     details,
		DurationMs:       duration,
	}
}

// RecoverStaleRuns fails runs left running by a process that died
func (s *ReconciliationService) RecoverStaleRuns(ctx context.Context) (int64, error) {
	n, err := s.runs.FailStale(ctx, s.now().Add(-s.opts.LockTTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Warn("Marked stale reconciliation runs failed", "count", n)
	}
	return n, nil
}

// PerformConsistencyChecks counts each known anomaly class and samples the
// offending rows.
func (s *ReconciliationService) PerformConsistencyChecks(ctx context.Context) (*dtos.ConsistencyReport, error) {
	report := &dtos.ConsistencyReport{CheckedAt: s.now(), Issues: []dtos.ConsistencyIssue{}}

	for _, check := range repositories.ConsistencyChecks {
		count, err := s.consistency.Count(ctx, check.CountQuery)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", check.Kind, err)
		}
		s.metrics.ObserveConsistency(check.Kind, count)

		issue := dtos.ConsistencyIssue{Kind: check.Kind, Count: count}
		if count > 0 {
			samples, err := s.consistency.Samples(ctx, check.SampleQuery, s.opts.SampleLimit)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", check.Kind, err)
			}
			issue.Samples = samples
		}
		report.Issues = append(report.Issues, issue)
	}
	return report, nil
}

// CheckConsistency runs the checks and raises a warning alert when any
// anomaly is found.
func (s *ReconciliationService) CheckConsistency(ctx context.Context) (*dtos.ConsistencyReport, error) {
	report, err := s.PerformConsistencyChecks(ctx)
	if err != nil {
		logging.Error("Consistency check failed", "error", err)
		return nil, err
	}
	if !report.HasIssues() {
		return report, nil
	}

	counts := map[string]interface{}{}
	for _, issue := range report.Issues {
		if issue.Count > 0 {
			counts[issue.Kind] = issue.Count
		}
	}
	s.raiseAlert(ctx, constants.AlertWarning,
		"Data consistency issues detected",
		fmt.Sprintf("%d anomaly classes found in local data", len(counts)),
		counts,
	)
	logging.Warn("Data consistency issues detected", "issues", counts)
	return report, nil
}

// ResolveConflicts resolves nothing: upstream always wins, so there are no
// conflicts left to resolve after a sync.
func (s *ReconciliationService) ResolveConflicts(_ context.Context) dtos.ConflictResolution {
	return dtos.ConflictResolution{Resolved: 0, Strategies: []string{}}
}

func (s *ReconciliationService) ListRuns(ctx context.Context, limit int) ([]gorm.ReconciliationRun, error) {
	return s.runs.List(ctx, limit)
}

func (s *ReconciliationService) GetRun(ctx context.Context, id string) (*gorm.ReconciliationRun, error) {
	return s.runs.FindByID(ctx, id)
}

func (s *ReconciliationService) ListAlerts(ctx context.Context, resolved *bool, limit int) ([]gorm.SystemAlert, error) {
	return s.alerts.List(ctx, resolved, limit)
}

// ResolveAlert marks an alert resolved; actor is recorded in the audit log
func (s *ReconciliationService) ResolveAlert(ctx context.Context, id, actor string) error {
	if err := s.alerts.Resolve(ctx, id, s.now()); err != nil {
		return err
	}
	if err := s.audit.Record(ctx, actor, constants.AuditAlertResolved, constants.TargetSystemAlert, id, nil); err != nil {
		logging.Warn("Failed to write audit entry", "action", constants.AuditAlertResolved, "error", err)
	}
	return nil
}

func (s *ReconciliationService) raiseAlert(ctx context.Context, alertType constants.AlertType, title, message string, metadata map[string]interface{}) {
	alert := &gorm.SystemAlert{Type: alertType, Title: title, Message: message}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			alert.Metadata = b
		}
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		logging.Error("Failed to raise system alert", "title", title, "error", err)
	}
}

func (s *ReconciliationService) recordAudit(ctx context.Context, action string, run *gorm.ReconciliationRun, meta map[string]interface{}) {
	actor := run.TriggeredBy
	if actor == "" {
		actor = constants.ActorSystem
	}
	if err := s.audit.Record(ctx, actor, action, constants.TargetReconciliationRun, run.ID, meta); err != nil {
		logging.Warn("Failed to write audit entry", "action", action, "error", err)
	}
}

func capDetails(details []string) []string {
	if len(details) > maxErrorDetails {
		return details[:maxErrorDetails]
	}
	return details
}
