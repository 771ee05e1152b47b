package dtos

import (
	"time"

	"fieldops/portal-sync/internal/constants"
)

// ReconciliationRequest starts a run over HTTP
type ReconciliationRequest struct {
	Type constants.RunType `json:"type" validate:"required,oneof=full incremental emergency"`
}

// ReconciliationResult is what Run resolves with; it never carries an error value
type ReconciliationResult struct {
	RunID            string              `json:"run_id"`
	Type             constants.RunType   `json:"type"`
	Status           constants.RunStatus `json:"status"`
	RecordsProcessed int                 `json:"records_processed"`
	Errors           int                 `json:"errors"`
	ErrorDetails     []string            `json:"error_details,omitempty"`
	DurationMs       int64               `json:"duration_ms"`
	Message          string              `json:"message,omitempty"`
}

// ConsistencyIssue is one anomaly class found in local data
type ConsistencyIssue struct {
	Kind    string              `json:"kind"`
	Count   int64               `json:"count"`
	Samples []map[string]string `json:"samples,omitempty"`
}

// ConsistencyReport is the outcome of PerformConsistencyChecks
type ConsistencyReport struct {
	CheckedAt time.Time          `json:"checked_at"`
	Issues    []ConsistencyIssue `json:"issues"`
}

// HasIssues reports whether any check found rows
func (r ConsistencyReport) HasIssues() bool {
	for _, i := range r.Issues {
		if i.Count > 0 {
			return true
		}
	}
	return false
}

// ConflictResolution is the result of ResolveConflicts
type ConflictResolution struct {
	Resolved   int      `json:"resolved"`
	Strategies []string `json:"strategies"`
}
