package repositories

import (
	"context"
	"time"

	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// SystemAlertRepo handles system_alerts table operations
type SystemAlertRepo struct {
	db *gormlib.DB
}

func NewSystemAlertRepo(db *gormlib.DB) *SystemAlertRepo {
	return &SystemAlertRepo{db: db}
}

func (r *SystemAlertRepo) Create(ctx context.Context, alert *gorm.SystemAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// List returns the newest alerts; resolved filters when non-nil
func (r *SystemAlertRepo) List(ctx context.Context, resolved *bool, limit int) ([]gorm.SystemAlert, error) {
	var alerts []gorm.SystemAlert
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if resolved != nil {
		q = q.Where("resolved = ?", *resolved)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&alerts).Error
	return alerts, err
}

// Resolve marks an open alert resolved. ErrNotFound when no open alert has id.
func (r *SystemAlertRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&gorm.SystemAlert{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
