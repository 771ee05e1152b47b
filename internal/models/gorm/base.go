package gorm

import (
	"github.com/google/uuid"
)

// newID assigns a fresh uuid when the primary key is still empty
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// AllModels lists every table owned by the sync core, in migration order
func AllModels() []interface{} {
	return []interface{}{
		&Client{},
		&Job{},
		&Quote{},
		&Staff{},
		&JobRecord{},
		&AuditLog{},
		&ReconciliationRun{},
		&WebhookEvent{},
		&SystemAlert{},
		&SyncHistory{},
	}
}
