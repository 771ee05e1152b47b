package repositories

import (
	"context"
	"errors"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteRepo handles quotes table operations
type QuoteRepo struct {
	db *gormlib.DB
}

func NewQuoteRepo(db *gormlib.DB) *QuoteRepo {
	return &QuoteRepo{db: db}
}

// Upsert inserts a quote or refreshes its amount. Approval state is owned
// locally and never overwritten by a re-sync.
// ON CONFLICT (job_id) DO UPDATE
func (r *QuoteRepo) Upsert(ctx context.Context, quote *gorm.Quote) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"job_uuid", "amount", "updated_at"}),
		}).
		Create(quote).Error
}

func (r *QuoteRepo) FindByJobID(ctx context.Context, jobID string) (*gorm.Quote, error) {
	var quote gorm.Quote
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&quote).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// SetApproval records the approval decision for the quote of jobUUID
func (r *QuoteRepo) SetApproval(ctx context.Context, jobUUID string, status constants.QuoteStatus, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	if status == constants.QuoteStatusApproved {
		updates["approved_at"] = at
	} else {
		updates["approved_at"] = nil
	}

	res := r.db.WithContext(ctx).
		Model(&gorm.Quote{}).
		Where("job_uuid = ?", jobUUID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *QuoteRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&gorm.Quote{}).Count(&n).Error
	return n, err
}
