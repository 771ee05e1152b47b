package api

import (
	"errors"
	"net/http"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/services"

	"github.com/go-chi/chi/v5"
)

// StartReconciliation starts a run in the background
// @Summary Start a reconciliation run
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param body body dtos.ReconciliationRequest true "Run type"
// @Success 202 {object} responses.APIResponse[gorm.ReconciliationRun]
// @Failure 400 {object} responses.APIResponse[any]
// @Failure 409 {object} responses.APIResponse[any]
// @Router /api/v1/reconciliation [post]
func (h *Handlers) StartReconciliation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.ReconciliationRequest
		if !h.decodeAndValidate(w, r, &req) {
			return
		}

		actor := actorFrom(r)
		run, err := h.deps.Reconciliation.Start(r.Context(), req.Type, actor)
		switch {
		case errors.Is(err, services.ErrRunInProgress):
			respondWithError(w, http.StatusConflict, constants.MsgRunInProgress)
			return
		case errors.Is(err, services.ErrInvalidRunType):
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logging.Error("[ReconciliationHandler] Failed to start run", "type", req.Type, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to start reconciliation")
			return
		}

		logging.Info("[ReconciliationHandler] Run started", "run_id", run.ID, "type", run.Type, "triggered_by", actor)
		respondWithSuccess(w, http.StatusAccepted, run)
	}
}

// ListRuns returns the newest reconciliation runs
func (h *Handlers) ListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := h.deps.Reconciliation.ListRuns(r.Context(), limitParam(r))
		if err != nil {
			logging.Error("[ReconciliationHandler] Failed to list runs", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list reconciliation runs")
			return
		}
		if runs == nil {
			runs = []gorm.ReconciliationRun{}
		}
		respondWithSuccess(w, http.StatusOK, &runs)
	}
}

// GetRun returns one run by id
func (h *Handlers) GetRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := h.deps.Reconciliation.GetRun(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, repositories.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, constants.MsgRunNotFound)
			return
		}
		if err != nil {
			logging.Error("[ReconciliationHandler] Failed to load run", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to load reconciliation run")
			return
		}
		respondWithSuccess(w, http.StatusOK, run)
	}
}

// CheckConsistency runs the local consistency checks
func (h *Handlers) CheckConsistency() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := h.deps.Reconciliation.CheckConsistency(r.Context())
		if err != nil {
			logging.Error("[ReconciliationHandler] Consistency check failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Consistency check failed")
			return
		}
		respondWithSuccess(w, http.StatusOK, report)
	}
}

func (h *Handlers) ResolveConflicts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := h.deps.Reconciliation.ResolveConflicts(r.Context())
		respondWithSuccess(w, http.StatusOK, &res)
	}
}
