package api

import (
	"errors"
	"net/http"
	"strconv"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/models/gorm"

	"github.com/go-chi/chi/v5"
)

// ListAlerts returns system alerts; ?resolved=true|false filters them
func (h *Handlers) ListAlerts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resolved *bool
		if raw := r.URL.Query().Get("resolved"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "resolved must be true or false")
				return
			}
			resolved = &v
		}

		alerts, err := h.deps.Reconciliation.ListAlerts(r.Context(), resolved, limitParam(r))
		if err != nil {
			logging.Error("[AlertsHandler] Failed to list alerts", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list alerts")
			return
		}
		if alerts == nil {
			alerts = []gorm.SystemAlert{}
		}
		respondWithSuccess(w, http.StatusOK, &alerts)
	}
}

func (h *Handlers) ResolveAlert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := h.deps.Reconciliation.ResolveAlert(r.Context(), id, actorFrom(r))
		if errors.Is(err, repositories.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, constants.MsgAlertNotFound)
			return
		}
		if err != nil {
			logging.Error("[AlertsHandler] Failed to resolve alert", "alert_id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to resolve alert")
			return
		}
		resp := map[string]string{"id": id}
		respondWithSuccess(w, http.StatusOK, &resp)
	}
}
