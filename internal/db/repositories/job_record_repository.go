package repositories

import (
	"context"
	"errors"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRecordRepo handles job_records (activities, attachments, materials)
type JobRecordRepo struct {
	db *gormlib.DB
}

func NewJobRecordRepo(db *gormlib.DB) *JobRecordRepo {
	return &JobRecordRepo{db: db}
}

// Upsert ON CONFLICT (uuid) DO UPDATE. An empty owner or a missing edit
// time keeps the stored value.
func (r *JobRecordRepo) Upsert(ctx context.Context, rec *gorm.JobRecord) error {
	columns := []string{"kind", "data", "updated_at"}
	if rec.JobUUID != "" {
		columns = append(columns, "job_uuid")
	}
	if rec.UpstreamEditedAt != nil {
		columns = append(columns, "upstream_edited_at")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(rec).Error
}

// FindByUUID returns the record with the upstream uuid
func (r *JobRecordRepo) FindByUUID(ctx context.Context, uuid string) (*gorm.JobRecord, error) {
	var rec gorm.JobRecord
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&rec).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *JobRecordRepo) ListByJob(ctx context.Context, jobUUID string, kind constants.JobRecordKind) ([]gorm.JobRecord, error) {
	var recs []gorm.JobRecord
	err := r.db.WithContext(ctx).
		Where("job_uuid = ? AND kind = ?", jobUUID, kind).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}
