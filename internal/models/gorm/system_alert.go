package gorm

import (
	"time"

	"fieldops/portal-sync/internal/constants"

	"gorm.io/datatypes"
	gormlib "gorm.io/gorm"
)

// SystemAlert is an operational alert raised by the reconciliation layer
type SystemAlert struct {
	ID         string              `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	Type       constants.AlertType `gorm:"column:type;type:varchar(16);not null;index" json:"type"`
	Title      string              `gorm:"column:title;type:varchar(255)" json:"title"`
	Message    string              `gorm:"column:message;type:text" json:"message"`
	Metadata   datatypes.JSON      `gorm:"column:metadata" json:"metadata,omitempty"`
	Resolved   bool                `gorm:"column:resolved;default:false;index" json:"resolved"`
	ResolvedAt *time.Time          `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (SystemAlert) TableName() string {
	return "system_alerts"
}

func (a *SystemAlert) BeforeCreate(tx *gormlib.DB) error {
	newID(&a.ID)
	return nil
}
