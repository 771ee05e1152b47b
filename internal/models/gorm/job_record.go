package gorm

import (
	"time"

	"fieldops/portal-sync/internal/constants"

	"gorm.io/datatypes"
	gormlib "gorm.io/gorm"
)

// JobRecord is a per-job child entity (activity, attachment or material).
// Kind is the discriminant; Data holds the upstream object as returned.
type JobRecord struct {
	ID               string                  `gorm:"column:id;primaryKey;type:varchar(36)"`
	UUID             string                  `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	JobUUID          string                  `gorm:"column:job_uuid;type:varchar(64);index"`
	Kind             constants.JobRecordKind `gorm:"column:kind;type:varchar(32);index"`
	Data             datatypes.JSON          `gorm:"column:data"`
	UpstreamEditedAt *time.Time              `gorm:"column:upstream_edited_at"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (JobRecord) TableName() string {
	return "job_records"
}

func (r *JobRecord) BeforeCreate(tx *gormlib.DB) error {
	newID(&r.ID)
	return nil
}
