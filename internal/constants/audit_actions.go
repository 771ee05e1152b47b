package constants

// Audit log action tags
const (
	AuditCompaniesSync     = "companies_sync"
	AuditJobsSync          = "jobs_sync"
	AuditQuotesSync        = "quotes_sync"
	AuditJobActivitySync   = "job_activity_sync"
	AuditAttachmentSync    = "attachment_sync"
	AuditMaterialSync      = "material_sync"
	AuditFullSync          = "full_sync"
	AuditIncrementalSync   = "incremental_sync"
	AuditWebhookProcessed  = "webhook_processed"
	AuditWebhookFailed     = "webhook_failed"
	AuditReconciliationOK  = "reconciliation_completed"
	AuditReconciliationErr = "reconciliation_failed"
	AuditQuoteApproved     = "quote_approved"
	AuditQuoteRejected     = "quote_rejected"
	AuditAlertResolved     = "alert_resolved"
)

// Audit target types
const (
	TargetCompany           = "company"
	TargetJob               = "job"
	TargetQuote             = "quote"
	TargetWebhookEvent      = "webhook_event"
	TargetReconciliationRun = "reconciliation_run"
	TargetSystemAlert       = "system_alert"
)

// Sync history scopes (watermarks for incremental runs)
const (
	SyncScopeCompanies = "COMPANIES_SYNC"
	SyncScopeJobs      = "JOBS_SYNC"
)
