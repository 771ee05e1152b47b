package repositories

import (
	"context"
	"errors"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/models/gorm"

	"gorm.io/datatypes"
	gormlib "gorm.io/gorm"
)

// ReconciliationRunRepo handles reconciliation_runs table operations
type ReconciliationRunRepo struct {
	db *gormlib.DB
}

func NewReconciliationRunRepo(db *gormlib.DB) *ReconciliationRunRepo {
	return &ReconciliationRunRepo{db: db}
}

func (r *ReconciliationRunRepo) Create(ctx context.Context, run *gorm.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// RunOutcome is the terminal state written by Finish
type RunOutcome struct {
	Status           constants.RunStatus
	CompletedAt      time.Time
	DurationMs       int64
	RecordsProcessed int
	Errors           int
	ErrorDetails     datatypes.JSON
}

// Finish moves a running run to its terminal state. The update is guarded by
// status = 'running' so a run is written at most once after creation.
func (r *ReconciliationRunRepo) Finish(ctx context.Context, id string, out RunOutcome) error {
	res := r.db.WithContext(ctx).
		Model(&gorm.ReconciliationRun{}).
		Where("id = ? AND status = ?", id, constants.RunStatusRunning).
		Updates(map[string]interface{}{
			"status":            out.Status,
			"completed_at":      out.CompletedAt,
			"duration_ms":       out.DurationMs,
			"records_processed": out.RecordsProcessed,
			"errors":            out.Errors,
			"error_details":     out.ErrorDetails,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrRunAlreadyTerminal
	}
	return nil
}

func (r *ReconciliationRunRepo) FindByID(ctx context.Context, id string) (*gorm.ReconciliationRun, error) {
	var run gorm.ReconciliationRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the newest runs first
func (r *ReconciliationRunRepo) List(ctx context.Context, limit int) ([]gorm.ReconciliationRun, error) {
	var runs []gorm.ReconciliationRun
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// FailStale marks runs left running by a crashed process as failed
func (r *ReconciliationRunRepo) FailStale(ctx context.Context, startedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&gorm.ReconciliationRun{}).
		Where("status = ? AND started_at < ?", constants.RunStatusRunning, startedBefore).
		Updates(map[string]interface{}{
			"status":       constants.RunStatusFailed,
			"completed_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
