package gorm

import (
	"time"

	"fieldops/portal-sync/internal/constants"

	"gorm.io/datatypes"
	gormlib "gorm.io/gorm"
)

// ReconciliationRun tracks one full/incremental/emergency run.
// Updated exactly once when it leaves the running state.
type ReconciliationRun struct {
	ID               string              `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	Type             constants.RunType   `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Status           constants.RunStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	TriggeredBy      string              `gorm:"column:triggered_by;type:varchar(64)" json:"triggered_by"`
	StartedAt        time.Time           `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt      *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DurationMs       *int64              `gorm:"column:duration_ms" json:"duration_ms,omitempty"`
	RecordsProcessed int                 `gorm:"column:records_processed;default:0" json:"records_processed"`
	Errors           int                 `gorm:"column:errors;default:0" json:"errors"`
	ErrorDetails     datatypes.JSON      `gorm:"column:error_details" json:"error_details,omitempty"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ReconciliationRun) TableName() string {
	return "reconciliation_runs"
}

func (r *ReconciliationRun) BeforeCreate(tx *gormlib.DB) error {
	newID(&r.ID)
	return nil
}

// IsTerminal reports whether the run has completed or failed
func (r *ReconciliationRun) IsTerminal() bool {
	return r.Status == constants.RunStatusCompleted || r.Status == constants.RunStatusFailed
}
