package gorm

import (
	"time"

	"github.com/shopspring/decimal"
	gormlib "gorm.io/gorm"
)

// Job is a work item mirrored from the upstream system.
// CompanyUUID is nullable; a null in steady state is reported by the
// consistency checks.
type Job struct {
	ID               string              `gorm:"column:id;primaryKey;type:varchar(36)"`
	UUID             string              `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	CompanyUUID      *string             `gorm:"column:company_uuid;type:varchar(64);index"`
	Status           string              `gorm:"column:status;type:varchar(32);index"`
	Description      *string             `gorm:"column:description;type:text"`
	ScheduledDate    *time.Time          `gorm:"column:scheduled_date"`
	Address          *string             `gorm:"column:address;type:text"`
	QuoteSent        *bool               `gorm:"column:quote_sent"`
	TotalAmount      decimal.NullDecimal `gorm:"column:total_amount;type:numeric(14,2)"`
	UpstreamEditedAt *time.Time          `gorm:"column:upstream_edited_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Job) TableName() string {
	return "jobs"
}

func (j *Job) BeforeCreate(tx *gormlib.DB) error {
	newID(&j.ID)
	return nil
}
