package repositories

import (
	"context"
	"errors"

	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepo handles jobs table operations
type JobRepo struct {
	db *gormlib.DB
}

func NewJobRepo(db *gormlib.DB) *JobRepo {
	return &JobRepo{db: db}
}

// Upsert inserts a job or updates the given columns, then returns the stored row
// ON CONFLICT (uuid) DO UPDATE
func (r *JobRepo) Upsert(ctx context.Context, job *gorm.Job, columns []string) (*gorm.Job, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns(withUpdatedAt(columns)),
		}).
		Create(job).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUUID(ctx, job.UUID)
}

func (r *JobRepo) FindByUUID(ctx context.Context, uuid string) (*gorm.Job, error) {
	var job gorm.Job
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&job).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepo) ListByCompany(ctx context.Context, companyUUID string) ([]gorm.Job, error) {
	var jobs []gorm.Job
	err := r.db.WithContext(ctx).
		Where("company_uuid = ?", companyUUID).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&gorm.Job{}).Count(&n).Error
	return n, err
}
