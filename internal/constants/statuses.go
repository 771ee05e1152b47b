package constants

// RunType selects what a reconciliation run does
type RunType string

const (
	RunTypeFull        RunType = "full"
	RunTypeIncremental RunType = "incremental"
	RunTypeEmergency   RunType = "emergency"
)

func (t RunType) String() string { return string(t) }

// Valid reports whether t is one of the known run types
func (t RunType) Valid() bool {
	switch t {
	case RunTypeFull, RunTypeIncremental, RunTypeEmergency:
		return true
	}
	return false
}

// RunStatus is the lifecycle state of a reconciliation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

func (s RunStatus) String() string { return string(s) }

// EventStatus is the lifecycle state of a webhook event
type EventStatus string

const (
	EventStatusQueued     EventStatus = "queued"
	EventStatusProcessing EventStatus = "processing"
	EventStatusSuccess    EventStatus = "success"
	EventStatusFailed     EventStatus = "failed"
)

func (s EventStatus) String() string { return string(s) }

// AlertType is the severity of a system alert
type AlertType string

const (
	AlertError   AlertType = "error"
	AlertWarning AlertType = "warning"
	AlertInfo    AlertType = "info"
)

// QuoteStatus is the approval state of a local quote
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusApproved QuoteStatus = "approved"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// Upstream job statuses the sync core cares about
const (
	JobStatusQuote        = "Quote"
	JobStatusWorkOrder    = "Work Order"
	JobStatusCompleted    = "Completed"
	JobStatusUnsuccessful = "Unsuccessful"
)

// JobRecordKind discriminates per-job child records
type JobRecordKind string

const (
	JobRecordActivity   JobRecordKind = "job_activity"
	JobRecordAttachment JobRecordKind = "attachment"
	JobRecordMaterial   JobRecordKind = "material"
)
