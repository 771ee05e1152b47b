package dtos

import (
	"encoding/json"
	"time"
)

// ObjectType is the upstream entity family a webhook event refers to
type ObjectType string

const (
	ObjectJob         ObjectType = "Job"
	ObjectCompany     ObjectType = "Company"
	ObjectJobActivity ObjectType = "JobActivity"
	ObjectAttachment  ObjectType = "Attachment"
	ObjectStaff       ObjectType = "Staff"
)

// ObjectTypes is the closed set of object types the processor dispatches
var ObjectTypes = []ObjectType{ObjectJob, ObjectCompany, ObjectJobActivity, ObjectAttachment, ObjectStaff}

// EventType is what happened to the object upstream
type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventDeleted       EventType = "deleted"
	EventStatusChanged EventType = "status_changed"
	EventQuoteSent     EventType = "quote_sent"
	EventQuoteApproved EventType = "quote_approved"
	EventQuoteRejected EventType = "quote_rejected"
)

// WebhookPayload is the body of an upstream change notification
type WebhookPayload struct {
	ObjectType ObjectType      `json:"object_type" validate:"required,oneof=Job Company JobActivity Attachment Staff"`
	EventType  EventType       `json:"event_type" validate:"required"`
	ObjectUUID string          `json:"object_uuid" validate:"required"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
}

// WebhookRequest is the ingress envelope; EventID may be omitted
type WebhookRequest struct {
	EventID string         `json:"eventId" validate:"omitempty,max=128"`
	Payload WebhookPayload `json:"payload" validate:"required"`
}

// IngestResult reports what the ingress did with an event
type IngestResult struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
	Queued    bool   `json:"queued"`
}

// ProcessingStats aggregates webhook events by status
type ProcessingStats struct {
	Total       int64   `json:"total"`
	Queued      int64   `json:"queued"`
	Processing  int64   `json:"processing"`
	Success     int64   `json:"success"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// RetryFailedResult reports a bulk retry of failed events
type RetryFailedResult struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	EventIDs  []string `json:"event_ids"`
}
