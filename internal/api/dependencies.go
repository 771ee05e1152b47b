package api

import (
	"context"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/realtime"
	"fieldops/portal-sync/internal/services"

	"github.com/go-playground/validator/v10"
)

// Reconciler is the reconciliation surface the HTTP layer drives
type Reconciler interface {
	Start(ctx context.Context, runType constants.RunType, triggeredBy string) (*gorm.ReconciliationRun, error)
	ListRuns(ctx context.Context, limit int) ([]gorm.ReconciliationRun, error)
	GetRun(ctx context.Context, id string) (*gorm.ReconciliationRun, error)
	CheckConsistency(ctx context.Context) (*dtos.ConsistencyReport, error)
	ResolveConflicts(ctx context.Context) dtos.ConflictResolution
	ListAlerts(ctx context.Context, resolved *bool, limit int) ([]gorm.SystemAlert, error)
	ResolveAlert(ctx context.Context, id, actor string) error
}

// WebhookService is the webhook processor surface the HTTP layer drives
type WebhookService interface {
	Ingest(ctx context.Context, eventID string, payload dtos.WebhookPayload) (dtos.IngestResult, error)
	ProcessEvent(ctx context.Context, eventID string, payload dtos.WebhookPayload, attempt int) error
	GetProcessingStats(ctx context.Context) (dtos.ProcessingStats, error)
	ListEvents(ctx context.Context, status constants.EventStatus, limit int) ([]gorm.WebhookEvent, error)
	GetEvent(ctx context.Context, eventID string) (*gorm.WebhookEvent, error)
	RetryFailedEvents(ctx context.Context) (dtos.RetryFailedResult, error)
	RetryEvent(ctx context.Context, eventID string) error
}

// WebhookEnqueuer hands accepted events to the queue workers
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, item *common.WebhookQueueItem) error
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Reconciler      = (*services.ReconciliationService)(nil)
	_ WebhookService  = (*services.WebhookProcessor)(nil)
	_ WebhookEnqueuer = (*common.RedisQueueService)(nil)
)

// Dependencies is everything the handlers need, built once in cmd/server
type Dependencies struct {
	Reconciliation Reconciler
	Webhooks       WebhookService
	// Queue is nil when Redis is disabled; events are then processed in-process
	Queue  WebhookEnqueuer
	Checks map[string]Pinger
	Hub    *realtime.Hub
	// RealtimeOrigins are host patterns allowed to open realtime sockets
	RealtimeOrigins []string
	UpSince         time.Time
}

type Handlers struct {
	deps     *Dependencies
	validate *validator.Validate
	// background runs in-process webhook processing
	background func(f func())
}

// NewHandlers creates a new handlers instance with injected dependencies
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		deps:       deps,
		validate:   validator.New(),
		background: func(f func()) { go f() },
	}
}
