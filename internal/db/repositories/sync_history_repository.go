package repositories

import (
	"context"
	"errors"
	"time"

	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// SyncHistoryRepo keeps per-scope sync watermarks
type SyncHistoryRepo struct {
	db *gormlib.DB
}

func NewSyncHistoryRepo(db *gormlib.DB) *SyncHistoryRepo {
	return &SyncHistoryRepo{db: db}
}

// RecordSync stores at as the last successful sync of scope
func (r *SyncHistoryRepo) RecordSync(ctx context.Context, scope string, at time.Time) error {
	history := gorm.SyncHistory{Scope: scope, LastSyncAt: &at}

	return r.db.WithContext(ctx).
		Where("scope = ?", scope).
		Assign(gorm.SyncHistory{LastSyncAt: &at}).
		FirstOrCreate(&history).Error
}

// GetLastSync returns nil when scope has never synced
func (r *SyncHistoryRepo) GetLastSync(ctx context.Context, scope string) (*time.Time, error) {
	var history gorm.SyncHistory

	err := r.db.WithContext(ctx).
		Where("scope = ?", scope).
		First(&history).Error
	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return history.LastSyncAt, nil
}
