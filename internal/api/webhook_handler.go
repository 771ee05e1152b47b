package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/services"

	"github.com/go-chi/chi/v5"
)

// ReceiveWebhook persists an upstream change notification and hands it off
// for processing. The response does not wait for the re-sync.
// @Summary Receive an upstream webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param body body dtos.WebhookRequest true "Event envelope"
// @Success 202 {object} responses.APIResponse[dtos.IngestResult]
// @Success 200 {object} responses.APIResponse[dtos.IngestResult] "duplicate"
// @Failure 400 {object} responses.APIResponse[any]
// @Router /api/v1/webhooks/upstream [post]
func (h *Handlers) ReceiveWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.WebhookRequest
		if !h.decodeAndValidate(w, r, &req) {
			return
		}

		result, err := h.deps.Webhooks.Ingest(r.Context(), req.EventID, req.Payload)
		if err != nil {
			logging.Error("[WebhookHandler] Failed to persist event", "event_id", req.EventID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to accept webhook event")
			return
		}
		if result.Duplicate {
			respondWithSuccess(w, http.StatusOK, &result)
			return
		}

		result.Queued = h.enqueue(r.Context(), result.EventID, req.Payload)
		if !result.Queued {
			eventID, payload := result.EventID, req.Payload
			h.background(func() {
				// failures are recorded on the event itself
				_ = h.deps.Webhooks.ProcessEvent(context.Background(), eventID, payload, 1)
			})
		}
		respondWithSuccess(w, http.StatusAccepted, &result)
	}
}

// enqueue reports whether the event reached the queue
func (h *Handlers) enqueue(ctx context.Context, eventID string, payload dtos.WebhookPayload) bool {
	if h.deps.Queue == nil {
		return false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	err = h.deps.Queue.Enqueue(ctx, &common.WebhookQueueItem{
		EventID:    eventID,
		Payload:    raw,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		logging.Warn("[WebhookHandler] Queue unavailable, processing in-process", "event_id", eventID, "error", err)
		return false
	}
	return true
}

// WebhookStats returns event counts by status
func (h *Handlers) WebhookStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.deps.Webhooks.GetProcessingStats(r.Context())
		if err != nil {
			logging.Error("[WebhookHandler] Failed to load stats", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to load webhook stats")
			return
		}
		respondWithSuccess(w, http.StatusOK, &stats)
	}
}

// ListWebhookEvents returns the newest events, optionally filtered by ?status=
func (h *Handlers) ListWebhookEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := constants.EventStatus(r.URL.Query().Get("status"))
		events, err := h.deps.Webhooks.ListEvents(r.Context(), status, limitParam(r))
		if err != nil {
			logging.Error("[WebhookHandler] Failed to list events", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list webhook events")
			return
		}
		if events == nil {
			events = []gorm.WebhookEvent{}
		}
		respondWithSuccess(w, http.StatusOK, &events)
	}
}

func (h *Handlers) GetWebhookEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := h.deps.Webhooks.GetEvent(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, repositories.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, constants.MsgEventNotFound)
			return
		}
		if err != nil {
			logging.Error("[WebhookHandler] Failed to load event", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to load webhook event")
			return
		}
		respondWithSuccess(w, http.StatusOK, event)
	}
}

// RetryFailedWebhooks re-processes a batch of failed events
func (h *Handlers) RetryFailedWebhooks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.deps.Webhooks.RetryFailedEvents(r.Context())
		if err != nil {
			logging.Error("[WebhookHandler] Bulk retry failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to retry webhook events")
			return
		}
		respondWithSuccess(w, http.StatusOK, &result)
	}
}

// RetryWebhookEvent re-processes one failed event and returns its new state
func (h *Handlers) RetryWebhookEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := h.deps.Webhooks.RetryEvent(r.Context(), id)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondWithError(w, http.StatusNotFound, constants.MsgEventNotFound)
			return
		case errors.Is(err, services.ErrEventNotRetryable), errors.Is(err, services.ErrEventInFlight):
			respondWithError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			// the attempt ran and failed; the event row carries the outcome
			logging.Warn("[WebhookHandler] Manual retry failed", "event_id", id, "error", err)
		}

		event, err := h.deps.Webhooks.GetEvent(r.Context(), id)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load webhook event")
			return
		}
		respondWithSuccess(w, http.StatusOK, event)
	}
}
