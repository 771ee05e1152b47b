package gorm

import "time"

// SyncHistory keeps the last successful sync time per scope
type SyncHistory struct {
	Scope      string     `gorm:"column:scope;primaryKey;type:varchar(50)"`
	LastSyncAt *time.Time `gorm:"column:last_sync_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SyncHistory) TableName() string {
	return "sync_history"
}
