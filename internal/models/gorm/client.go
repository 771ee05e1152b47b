package gorm

import (
	"time"

	gormlib "gorm.io/gorm"
)

// Client is a customer company mirrored from the upstream system
type Client struct {
	ID               string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	UUID             string     `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	Name             string     `gorm:"column:name;type:text"`
	Address          *string    `gorm:"column:address;type:text"`
	Email            *string    `gorm:"column:email;type:varchar(255)"`
	Phone            *string    `gorm:"column:phone;type:varchar(64)"`
	Active           bool       `gorm:"column:active"`
	UpstreamEditedAt *time.Time `gorm:"column:upstream_edited_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Client) TableName() string {
	return "clients"
}

func (c *Client) BeforeCreate(tx *gormlib.DB) error {
	newID(&c.ID)
	return nil
}
