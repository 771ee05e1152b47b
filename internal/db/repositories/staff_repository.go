package repositories

import (
	"context"
	"errors"

	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StaffRepo handles staff table operations
type StaffRepo struct {
	db *gormlib.DB
}

func NewStaffRepo(db *gormlib.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

// Upsert ON CONFLICT (uuid) DO UPDATE the given columns
func (r *StaffRepo) Upsert(ctx context.Context, staff *gorm.Staff, columns []string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns(withUpdatedAt(columns)),
		}).
		Create(staff).Error
}

func (r *StaffRepo) FindByUUID(ctx context.Context, uuid string) (*gorm.Staff, error) {
	var staff gorm.Staff
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&staff).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &staff, nil
}
