package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"fieldops/portal-sync/internal/models/gorm"

	"gorm.io/datatypes"
	gormlib "gorm.io/gorm"
)

// AuditLogRepo appends to the audit trail
type AuditLogRepo struct {
	db *gormlib.DB
}

func NewAuditLogRepo(db *gormlib.DB) *AuditLogRepo {
	return &AuditLogRepo{db: db}
}

// Record appends one entry; metadata is stored as JSON
func (r *AuditLogRepo) Record(ctx context.Context, actor, action, targetType, targetID string, metadata any) error {
	var meta datatypes.JSON
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		meta = b
	}

	return r.db.WithContext(ctx).Create(&gorm.AuditLog{
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   meta,
	}).Error
}

// List returns the newest entries, optionally filtered by action and target
func (r *AuditLogRepo) List(ctx context.Context, action, targetID string, limit int) ([]gorm.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&gorm.AuditLog{})
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if targetID != "" {
		q = q.Where("target_id = ?", targetID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var logs []gorm.AuditLog
	err := q.Order("id DESC").Find(&logs).Error
	return logs, err
}
