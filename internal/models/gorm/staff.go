package gorm

import (
	"time"

	gormlib "gorm.io/gorm"
)

// Staff is a technician or office user mirrored from the upstream system
type Staff struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	UUID      string    `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	First     *string   `gorm:"column:first;type:varchar(128)"`
	Last      *string   `gorm:"column:last;type:varchar(128)"`
	Email     *string   `gorm:"column:email;type:varchar(255)"`
	Mobile    *string   `gorm:"column:mobile;type:varchar(64)"`
	Active    bool      `gorm:"column:active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Staff) TableName() string {
	return "staff"
}

func (s *Staff) BeforeCreate(tx *gormlib.DB) error {
	newID(&s.ID)
	return nil
}
