package gorm

import (
	"time"

	"fieldops/portal-sync/internal/constants"

	"github.com/shopspring/decimal"
	gormlib "gorm.io/gorm"
)

// Quote is derived from a job in Quote status; one per job
type Quote struct {
	ID         string                `gorm:"column:id;primaryKey;type:varchar(36)"`
	JobID      string                `gorm:"column:job_id;type:varchar(36);uniqueIndex;not null"`
	JobUUID    string                `gorm:"column:job_uuid;type:varchar(64);index"`
	Amount     decimal.Decimal       `gorm:"column:amount;type:numeric(14,2)"`
	Status     constants.QuoteStatus `gorm:"column:status;type:varchar(16);default:pending"`
	ApprovedAt *time.Time            `gorm:"column:approved_at"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Quote) TableName() string {
	return "quotes"
}

func (q *Quote) BeforeCreate(tx *gormlib.DB) error {
	newID(&q.ID)
	if q.Status == "" {
		q.Status = constants.QuoteStatusPending
	}
	return nil
}
