package gorm

import (
	"time"

	"fieldops/portal-sync/internal/constants"

	"gorm.io/datatypes"
)

// WebhookEvent is one inbound change notification, keyed by the
// upstream-supplied event id for idempotency.
type WebhookEvent struct {
	ID           string                `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	ObjectType   string                `gorm:"column:object_type;type:varchar(32);index" json:"object_type"`
	EventType    string                `gorm:"column:event_type;type:varchar(64)" json:"event_type"`
	ObjectUUID   string                `gorm:"column:object_uuid;type:varchar(64);index" json:"object_uuid"`
	Status       constants.EventStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Attempts     int                   `gorm:"column:attempts;default:0" json:"attempts"`
	Payload      datatypes.JSON        `gorm:"column:payload" json:"payload"`
	ErrorMessage *string               `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ReceivedAt   time.Time             `gorm:"column:received_at;not null;index" json:"received_at"`
	ProcessedAt  *time.Time            `gorm:"column:processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
