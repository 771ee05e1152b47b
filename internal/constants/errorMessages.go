package constants

const (
	MsgInvalidRequestBody   = "Invalid request body"
	MsgRunInProgress        = "A reconciliation run is already in progress"
	MsgRunNotFound          = "Reconciliation run not found"
	MsgEventNotFound        = "Webhook event not found"
	MsgAlertNotFound        = "System alert not found"
	MsgQueueUnavailable     = "Webhook queue unavailable"
	MsgUnknownChannel       = "Unknown realtime channel"
	MsgReconciliationQueued = "Reconciliation run started"
	MsgWebhookAccepted      = "Webhook event accepted"
	MsgWebhookDuplicate     = "Webhook event already received"
)
