package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/realtime"
	"fieldops/portal-sync/internal/upstream"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	// ErrEventInFlight is returned when the same event is already being processed
	ErrEventInFlight = errors.New("webhook event is already being processed")
	// ErrUnknownObjectType is returned for object types with no re-sync handler
	ErrUnknownObjectType = errors.New("unknown webhook object type")
	// ErrEventNotRetryable is returned when a manual retry targets a non-failed event
	ErrEventNotRetryable = errors.New("only failed webhook events can be retried")
)

// Resyncer re-fetches a single upstream object and upserts it locally
type Resyncer interface {
	ResyncCompany(ctx context.Context, uuid string) error
	ResyncJob(ctx context.Context, uuid string) error
	ResyncJobActivity(ctx context.Context, uuid string) error
	ResyncAttachment(ctx context.Context, uuid string) error
	ResyncStaff(ctx context.Context, uuid string) error
}

// WebhookOptions configures retry behavior of the processor
type WebhookOptions struct {
	// MaxRetries is the total number of processing attempts per event
	MaxRetries     int
	RetryBaseDelay time.Duration
	// NotFoundTerminal fails an event at once when the object is gone upstream
	NotFoundTerminal bool
	RetryBatchSize   int
}

type resyncFunc func(ctx context.Context, uuid string) error

type hookKey struct {
	object dtos.ObjectType
	event  dtos.EventType
}

type hookFunc func(ctx context.Context, p dtos.WebhookPayload) error

type channelRoute struct {
	channel string
	message string
}

// WebhookProcessor turns webhook events into targeted re-syncs. Events are
// persisted before processing and processed effectively once: a success is
// never repeated and one event never runs concurrently with itself.
type WebhookProcessor struct {
	events      WebhookEventStore
	quotes      QuoteStore
	audit       AuditRecorder
	broadcaster realtime.Broadcaster
	metrics     *metrics.MetricsRegistry
	opts        WebhookOptions

	resync map[dtos.ObjectType]resyncFunc
	hooks  map[hookKey]hookFunc
	routes map[dtos.ObjectType]channelRoute

	mu       sync.Mutex
	inFlight map[string]struct{}
	pending  sync.WaitGroup

	schedule func(d time.Duration, f func())
	now      func() time.Time
}

// NewWebhookProcessor fails if any known object type lacks a re-sync handler
// or a realtime route.
func NewWebhookProcessor(
	events WebhookEventStore,
	resyncer Resyncer,
	quotes QuoteStore,
	audit AuditRecorder,
	broadcaster realtime.Broadcaster,
	m *metrics.MetricsRegistry,
	opts WebhookOptions,
) (*WebhookProcessor, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryBatchSize <= 0 {
		opts.RetryBatchSize = 100
	}

	p := &WebhookProcessor{
		events:      events,
		quotes:      quotes,
		audit:       audit,
		broadcaster: broadcaster,
		metrics:     m,
		opts:        opts,
		inFlight:    make(map[string]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
	p.schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }

	p.resync = map[dtos.ObjectType]resyncFunc{
		dtos.ObjectJob:         resyncer.ResyncJob,
		dtos.ObjectCompany:     resyncer.ResyncCompany,
		dtos.ObjectJobActivity: resyncer.ResyncJobActivity,
		dtos.ObjectAttachment:  resyncer.ResyncAttachment,
		dtos.ObjectStaff:       resyncer.ResyncStaff,
	}
	p.routes = map[dtos.ObjectType]channelRoute{
		dtos.ObjectJob:         {constants.ChannelJobs, constants.MessageJobUpdate},
		dtos.ObjectCompany:     {constants.ChannelCompanies, constants.MessageCompanyUpdate},
		dtos.ObjectJobActivity: {constants.ChannelJobActivities, constants.MessageActivityUpdate},
		dtos.ObjectAttachment:  {constants.ChannelAttachments, constants.MessageAttachmentUpdate},
		dtos.ObjectStaff:       {constants.ChannelStaff, constants.MessageStaffUpdate},
	}
	p.hooks = map[hookKey]hookFunc{
		{dtos.ObjectJob, dtos.EventQuoteApproved}: p.quoteDecision(constants.QuoteStatusApproved),
		{dtos.ObjectJob, dtos.EventQuoteRejected}: p.quoteDecision(constants.QuoteStatusRejected),
		{dtos.ObjectJob, dtos.EventStatusChanged}: logHook,
		{dtos.ObjectJob, dtos.EventQuoteSent}:     logHook,
	}

	for _, t := range dtos.ObjectTypes {
		if _, ok := p.resync[t]; !ok {
			return nil, fmt.Errorf("no re-sync handler for object type %s", t)
		}
		if _, ok := p.routes[t]; !ok {
			return nil, fmt.Errorf("no realtime route for object type %s", t)
		}
	}
	return p, nil
}

// SetScheduler replaces the retry timer, for tests
func (p *WebhookProcessor) SetScheduler(schedule func(d time.Duration, f func())) {
	p.schedule = schedule
}

// Ingest persists an event as queued. A repeated event id is reported as a
// duplicate and not stored again. An empty id gets a generated one.
func (p *WebhookProcessor) Ingest(ctx context.Context, eventID string, payload dtos.WebhookPayload) (dtos.IngestResult, error) {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return dtos.IngestResult{}, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	created, err := p.events.CreateIfAbsent(ctx, &gorm.WebhookEvent{
		ID:         eventID,
		ObjectType: string(payload.ObjectType),
		EventType:  string(payload.EventType),
		ObjectUUID: payload.ObjectUUID,
		Status:     constants.EventStatusQueued,
		Payload:    datatypes.JSON(raw),
		ReceivedAt: p.now(),
	})
	if err != nil {
		return dtos.IngestResult{}, fmt.Errorf("failed to persist webhook event: %w", err)
	}
	if created {
		p.metrics.ObserveWebhook(string(payload.ObjectType), string(constants.EventStatusQueued))
	} else {
		logging.Info("Duplicate webhook event ignored", "event_id", eventID)
	}
	return dtos.IngestResult{EventID: eventID, Duplicate: !created}, nil
}

// ProcessEvent runs one attempt for eventID. On a retryable failure the next
// attempt is scheduled after RetryBaseDelay*2^(attempt-1) and the failure of
// this attempt is still returned. Once attempts reach MaxRetries the event
// is marked failed.
func (p *WebhookProcessor) ProcessEvent(ctx context.Context, eventID string, payload dtos.WebhookPayload, attempt int) error {
	if attempt < 1 {
		attempt = 1
	}

	retry, procErr := p.runAttempt(ctx, eventID, payload, attempt)
	if !retry {
		return procErr
	}

	delay := p.opts.RetryBaseDelay * time.Duration(1<<(attempt-1))
	logging.Warn("Webhook processing failed, retry scheduled",
		"event_id", eventID,
		"object_type", payload.ObjectType,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
		"error", procErr,
	)
	p.pending.Add(1)
	p.schedule(delay, func() {
		defer p.pending.Done()
		_ = p.ProcessEvent(context.Background(), eventID, payload, attempt+1)
	})
	return procErr
}

// runAttempt holds the in-flight guard until the outcome of the attempt is
// stored. It reports whether the failure should be retried.
func (p *WebhookProcessor) runAttempt(ctx context.Context, eventID string, payload dtos.WebhookPayload, attempt int) (bool, error) {
	if !p.acquire(eventID) {
		return false, ErrEventInFlight
	}
	defer p.release(eventID)

	if _, err := p.events.FindByID(ctx, eventID); errors.Is(err, repositories.ErrNotFound) {
		if _, err := p.Ingest(ctx, eventID, payload); err != nil {
			return false, err
		}
	} else if err != nil {
		return false, fmt.Errorf("failed to load webhook event: %w", err)
	}

	claimed, err := p.events.MarkProcessing(ctx, eventID, attempt)
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook event processing: %w", err)
	}
	if !claimed {
		logging.Debug("Webhook event already processed", "event_id", eventID)
		return false, nil
	}

	procErr := p.dispatch(ctx, payload)
	if procErr == nil {
		p.succeed(ctx, eventID, payload, attempt)
		return false, nil
	}
	if p.shouldRetry(procErr, attempt) {
		return true, procErr
	}
	p.fail(ctx, eventID, payload, attempt, procErr)
	return false, procErr
}

// Wait blocks until every scheduled retry has run
func (p *WebhookProcessor) Wait() {
	p.pending.Wait()
}

func (p *WebhookProcessor) shouldRetry(err error, attempt int) bool {
	if attempt >= p.opts.MaxRetries {
		return false
	}
	if errors.Is(err, ErrUnknownObjectType) || errors.Is(err, ErrEmptyUUID) {
		return false
	}
	if p.opts.NotFoundTerminal && upstream.IsNotFound(err) {
		return false
	}
	return true
}

func (p *WebhookProcessor) dispatch(ctx context.Context, payload dtos.WebhookPayload) error {
	resync, ok := p.resync[payload.ObjectType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObjectType, payload.ObjectType)
	}
	if err := resync(ctx, payload.ObjectUUID); err != nil {
		return err
	}

	// Hooks are side effects; their failure does not fail the event
	if hook, ok := p.hooks[hookKey{payload.ObjectType, payload.EventType}]; ok {
		if err := hook(ctx, payload); err != nil {
			logging.Warn("Webhook hook failed",
				"object_type", payload.ObjectType,
				"event_type", payload.EventType,
				"object_uuid", payload.ObjectUUID,
				"error", err,
			)
		}
	}
	return nil
}

func (p *WebhookProcessor) succeed(ctx context.Context, eventID string, payload dtos.WebhookPayload, attempt int) {
	if err := p.events.MarkSuccess(ctx, eventID, p.now()); err != nil {
		logging.Error("Failed to mark webhook event success", "event_id", eventID, "error", err)
	}
	p.metrics.ObserveWebhook(string(payload.ObjectType), string(constants.EventStatusSuccess))
	p.recordAudit(ctx, constants.AuditWebhookProcessed, eventID, payload, attempt, nil)
	p.broadcast(ctx, payload)
	logging.Info("Webhook event processed",
		"event_id", eventID,
		"object_type", payload.ObjectType,
		"event_type", payload.EventType,
		"attempt", attempt,
	)
}

func (p *WebhookProcessor) fail(ctx context.Context, eventID string, payload dtos.WebhookPayload, attempt int, cause error) {
	if err := p.events.MarkFailed(ctx, eventID, cause.Error(), p.now()); err != nil {
		logging.Error("Failed to mark webhook event failed", "event_id", eventID, "error", err)
	}
	p.metrics.ObserveWebhook(string(payload.ObjectType), string(constants.EventStatusFailed))
	p.recordAudit(ctx, constants.AuditWebhookFailed, eventID, payload, attempt, cause)
	logging.Error("Webhook event failed",
		"event_id", eventID,
		"object_type", payload.ObjectType,
		"attempts", attempt,
		"error", cause,
	)
}

func (p *WebhookProcessor) recordAudit(ctx context.Context, action, eventID string, payload dtos.WebhookPayload, attempt int, cause error) {
	meta := map[string]interface{}{
		"object_type": payload.ObjectType,
		"event_type":  payload.EventType,
		"object_uuid": payload.ObjectUUID,
		"attempt":     attempt,
	}
	if cause != nil {
		meta["error"] = cause.Error()
		if code := upstream.ErrorCode(cause); code != "" {
			meta["error_code"] = code
		}
	}
	if err := p.audit.Record(ctx, constants.ActorWebhook, action, constants.TargetWebhookEvent, eventID, meta); err != nil {
		logging.Warn("Failed to write audit entry", "action", action, "error", err)
	}
}

func (p *WebhookProcessor) broadcast(ctx context.Context, payload dtos.WebhookPayload) {
	if p.broadcaster == nil {
		return
	}
	route := p.routes[payload.ObjectType]
	msg := realtime.Message{
		Type:       route.message,
		Channel:    route.channel,
		ObjectUUID: payload.ObjectUUID,
		EventType:  string(payload.EventType),
		Changes:    payload.Changes,
		Timestamp:  p.now(),
	}
	if err := p.broadcaster.Broadcast(ctx, msg); err != nil {
		logging.Warn("Realtime broadcast failed", "channel", route.channel, "error", err)
	}
}

func (p *WebhookProcessor) quoteDecision(status constants.QuoteStatus) hookFunc {
	return func(ctx context.Context, payload dtos.WebhookPayload) error {
		if err := p.quotes.SetApproval(ctx, payload.ObjectUUID, status, p.now()); err != nil {
			return err
		}
		action := constants.AuditQuoteApproved
		if status == constants.QuoteStatusRejected {
			action = constants.AuditQuoteRejected
		}
		return p.audit.Record(ctx, constants.ActorWebhook, action, constants.TargetQuote, payload.ObjectUUID, nil)
	}
}

func logHook(_ context.Context, payload dtos.WebhookPayload) error {
	logging.Info("Job webhook received",
		"event_type", payload.EventType,
		"job_uuid", payload.ObjectUUID,
	)
	return nil
}

func (p *WebhookProcessor) acquire(eventID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[eventID]; busy {
		return false
	}
	p.inFlight[eventID] = struct{}{}
	return true
}

func (p *WebhookProcessor) release(eventID string) {
	p.mu.Lock()
	delete(p.inFlight, eventID)
	p.mu.Unlock()
}

// GetProcessingStats counts events by status
func (p *WebhookProcessor) GetProcessingStats(ctx context.Context) (dtos.ProcessingStats, error) {
	counts, err := p.events.CountByStatus(ctx)
	if err != nil {
		return dtos.ProcessingStats{}, err
	}
	stats := dtos.ProcessingStats{
		Queued:     counts[constants.EventStatusQueued],
		Processing: counts[constants.EventStatusProcessing],
		Success:    counts[constants.EventStatusSuccess],
		Failed:     counts[constants.EventStatusFailed],
	}
	stats.Total = stats.Queued + stats.Processing + stats.Success + stats.Failed
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total)
	}
	return stats, nil
}

// RetryFailedEvents re-processes every failed event, oldest first, each with
// a fresh attempt budget. Events are read in pages of RetryBatchSize behind a
// cursor so events that fail again are not picked up twice.
func (p *WebhookProcessor) RetryFailedEvents(ctx context.Context) (dtos.RetryFailedResult, error) {
	result := dtos.RetryFailedResult{EventIDs: []string{}}

	var cursor repositories.EventCursor
	for {
		failed, err := p.events.ListOldestByStatus(ctx, constants.EventStatusFailed, cursor, p.opts.RetryBatchSize)
		if err != nil {
			return result, err
		}

		for _, event := range failed {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Attempted++
			result.EventIDs = append(result.EventIDs, event.ID)

			payload, err := decodePayload(event)
			if err == nil {
				err = p.ProcessEvent(ctx, event.ID, payload, 1)
			}
			if err != nil {
				result.Failed++
				continue
			}
			result.Succeeded++
		}

		if len(failed) < p.opts.RetryBatchSize {
			break
		}
		last := failed[len(failed)-1]
		cursor = repositories.EventCursor{ReceivedAt: last.ReceivedAt, ID: last.ID}
	}

	logging.Info("Failed webhook events retried",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

// RetryEvent re-processes one failed event
func (p *WebhookProcessor) RetryEvent(ctx context.Context, eventID string) error {
	event, err := p.events.FindByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status != constants.EventStatusFailed {
		return ErrEventNotRetryable
	}
	payload, err := decodePayload(*event)
	if err != nil {
		return err
	}
	return p.ProcessEvent(ctx, eventID, payload, 1)
}

// GetEvent returns one stored event
func (p *WebhookProcessor) GetEvent(ctx context.Context, eventID string) (*gorm.WebhookEvent, error) {
	return p.events.FindByID(ctx, eventID)
}

// ListEvents returns the newest events, optionally filtered by status
func (p *WebhookProcessor) ListEvents(ctx context.Context, status constants.EventStatus, limit int) ([]gorm.WebhookEvent, error) {
	return p.events.List(ctx, status, limit)
}

func decodePayload(event gorm.WebhookEvent) (dtos.WebhookPayload, error) {
	var payload dtos.WebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return payload, fmt.Errorf("stored payload of event %s is unreadable: %w", event.ID, err)
	}
	return payload, nil
}
