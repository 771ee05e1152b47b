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

// WebhookEventRepo handles webhook_events table operations
type WebhookEventRepo struct {
	db *gormlib.DB
}

func NewWebhookEventRepo(db *gormlib.DB) *WebhookEventRepo {
	return &WebhookEventRepo{db: db}
}

// CreateIfAbsent inserts the event unless its id is already known.
// Returns false for a duplicate delivery.
// ON CONFLICT (id) DO NOTHING
func (r *WebhookEventRepo) CreateIfAbsent(ctx context.Context, event *gorm.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *WebhookEventRepo) FindByID(ctx context.Context, id string) (*gorm.WebhookEvent, error) {
	var event gorm.WebhookEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessing records the start of an attempt. It returns false when the
// event already succeeded, so a success is never re-run by any instance.
// UPDATE ... WHERE id = ? AND status <> 'success'
func (r *WebhookEventRepo) MarkProcessing(ctx context.Context, id string, attempt int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&gorm.WebhookEvent{}).
		Where("id = ? AND status <> ?", id, constants.EventStatusSuccess).
		Updates(map[string]interface{}{
			"status":   constants.EventStatusProcessing,
			"attempts": attempt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *WebhookEventRepo) MarkSuccess(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":        constants.EventStatusSuccess,
		"processed_at":  at,
		"error_message": nil,
	})
}

func (r *WebhookEventRepo) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":        constants.EventStatusFailed,
		"processed_at":  at,
		"error_message": message,
	})
}

func (r *WebhookEventRepo) update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&gorm.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns event counts keyed by status
func (r *WebhookEventRepo) CountByStatus(ctx context.Context) (map[constants.EventStatus]int64, error) {
	var rows []struct {
		Status constants.EventStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&gorm.WebhookEvent{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[constants.EventStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// EventCursor is the position of the last event of a page, in received order.
// The zero cursor starts from the oldest event.
type EventCursor struct {
	ReceivedAt time.Time
	ID         string
}

// ListOldestByStatus returns events in status received after cursor, oldest
// first. Ties on received_at are ordered by id.
func (r *WebhookEventRepo) ListOldestByStatus(ctx context.Context, status constants.EventStatus, after EventCursor, limit int) ([]gorm.WebhookEvent, error) {
	var events []gorm.WebhookEvent
	q := r.db.WithContext(ctx).
		Where("status = ?", status).
		Where("received_at > ? OR (received_at = ? AND id > ?)", after.ReceivedAt, after.ReceivedAt, after.ID).
		Order("received_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

// List returns the newest events, optionally filtered by status
func (r *WebhookEventRepo) List(ctx context.Context, status constants.EventStatus, limit int) ([]gorm.WebhookEvent, error) {
	var events []gorm.WebhookEvent
	q := r.db.WithContext(ctx).Order("received_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}
