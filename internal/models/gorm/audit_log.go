package gorm

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only trail entry for sync and reconciliation activity
type AuditLog struct {
	ID         uint           `gorm:"column:id;primaryKey;autoIncrement"`
	Actor      string         `gorm:"column:actor;type:varchar(64)"`
	Action     string         `gorm:"column:action;type:varchar(64);index"`
	TargetType string         `gorm:"column:target_type;type:varchar(64)"`
	TargetID   string         `gorm:"column:target_id;type:varchar(64);index"`
	Metadata   datatypes.JSON `gorm:"column:metadata"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
