package services

import (
	"context"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/upstream"

	gormlib "gorm.io/gorm"
)

// UpstreamAPI is the part of upstream.Client the sync engine reads from
type UpstreamAPI interface {
	GetClients(ctx context.Context, opts upstream.ListOptions) ([]upstream.Company, error)
	GetCompany(ctx context.Context, uuid string) (*upstream.Company, error)
	GetJobs(ctx context.Context, q upstream.JobQuery) ([]upstream.Job, error)
	GetJob(ctx context.Context, uuid string) (*upstream.Job, error)
	GetQuotes(ctx context.Context, q upstream.JobQuery) ([]upstream.Job, error)
	GetJobActivities(ctx context.Context, jobUUID string, opts upstream.ListOptions) ([]upstream.JobActivity, error)
	GetJobActivity(ctx context.Context, uuid string) (*upstream.JobActivity, error)
	GetJobAttachments(ctx context.Context, jobUUID string, opts upstream.ListOptions) ([]upstream.Attachment, error)
	GetAttachment(ctx context.Context, uuid string) (*upstream.Attachment, error)
	GetJobMaterials(ctx context.Context, jobUUID string, opts upstream.ListOptions) ([]upstream.Material, error)
	GetStaffMember(ctx context.Context, uuid string) (*upstream.Staff, error)
}

var _ UpstreamAPI = (*upstream.Client)(nil)

type ClientStore interface {
	Upsert(ctx context.Context, client *gorm.Client, columns []string) error
	ListUUIDs(ctx context.Context) ([]string, error)
}

type JobStore interface {
	Upsert(ctx context.Context, job *gorm.Job, columns []string) (*gorm.Job, error)
}

type QuoteStore interface {
	Upsert(ctx context.Context, quote *gorm.Quote) error
	SetApproval(ctx context.Context, jobUUID string, status constants.QuoteStatus, at time.Time) error
}

type StaffStore interface {
	Upsert(ctx context.Context, staff *gorm.Staff, columns []string) error
}

type JobRecordStore interface {
	Upsert(ctx context.Context, rec *gorm.JobRecord) error
}

type SyncHistoryStore interface {
	RecordSync(ctx context.Context, scope string, at time.Time) error
	GetLastSync(ctx context.Context, scope string) (*time.Time, error)
}

// AuditRecorder appends audit log entries
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, targetType, targetID string, metadata any) error
}

type WebhookEventStore interface {
	CreateIfAbsent(ctx context.Context, event *gorm.WebhookEvent) (bool, error)
	FindByID(ctx context.Context, id string) (*gorm.WebhookEvent, error)
	MarkProcessing(ctx context.Context, id string, attempt int) (bool, error)
	MarkSuccess(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, message string, at time.Time) error
	CountByStatus(ctx context.Context) (map[constants.EventStatus]int64, error)
	ListOldestByStatus(ctx context.Context, status constants.EventStatus, after repositories.EventCursor, limit int) ([]gorm.WebhookEvent, error)
	List(ctx context.Context, status constants.EventStatus, limit int) ([]gorm.WebhookEvent, error)
}

type RunStore interface {
	Create(ctx context.Context, run *gorm.ReconciliationRun) error
	Finish(ctx context.Context, id string, out repositories.RunOutcome) error
	FindByID(ctx context.Context, id string) (*gorm.ReconciliationRun, error)
	List(ctx context.Context, limit int) ([]gorm.ReconciliationRun, error)
	FailStale(ctx context.Context, startedBefore time.Time) (int64, error)
}

type AlertStore interface {
	Create(ctx context.Context, alert *gorm.SystemAlert) error
	List(ctx context.Context, resolved *bool, limit int) ([]gorm.SystemAlert, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}

type ConsistencyStore interface {
	Count(ctx context.Context, query string) (int64, error)
	Samples(ctx context.Context, query string, limit int) ([]map[string]string, error)
}

// SyncRepos groups the stores the sync engine writes to
type SyncRepos struct {
	Clients ClientStore
	Jobs    JobStore
	Quotes  QuoteStore
	Staff   StaffStore
	Records JobRecordStore
	Audit   AuditRecorder
	History SyncHistoryStore
}

// NewSyncRepos wires every store to db
func NewSyncRepos(db *gormlib.DB) SyncRepos {
	return SyncRepos{
		Clients: repositories.NewClientRepo(db),
		Jobs:    repositories.NewJobRepo(db),
		Quotes:  repositories.NewQuoteRepo(db),
		Staff:   repositories.NewStaffRepo(db),
		Records: repositories.NewJobRecordRepo(db),
		Audit:   repositories.NewAuditLogRepo(db),
		History: repositories.NewSyncHistoryRepo(db),
	}
}
