package dtos

import "time"

// SyncStatus is the outcome of one sync batch. Per-record failures are
// counted and described in Errors; they never abort the batch.
type SyncStatus struct {
	TotalRecords  int `json:"total_records"`
	SyncedRecords int `json:"synced_records"`
	FailedRecords int `json:"failed_records"`
	// FetchErrors counts batches that could not start
	FetchErrors int      `json:"fetch_errors"`
	Errors      []string `json:"errors"`
	// Aborted is set when the batch could not start, e.g. the list fetch failed
	Aborted bool `json:"aborted,omitempty"`
}

// AddError records a per-record failure
func (s *SyncStatus) AddError(msg string) {
	s.FailedRecords++
	s.Errors = append(s.Errors, msg)
}

// AddFetchError records a failure that stopped the batch before any record
func (s *SyncStatus) AddFetchError(msg string) {
	s.Aborted = true
	s.FetchErrors++
	s.Errors = append(s.Errors, msg)
}

// Merge folds other into s
func (s *SyncStatus) Merge(other SyncStatus) {
	s.TotalRecords += other.TotalRecords
	s.SyncedRecords += other.SyncedRecords
	s.FailedRecords += other.FailedRecords
	s.FetchErrors += other.FetchErrors
	s.Errors = append(s.Errors, other.Errors...)
	s.Aborted = s.Aborted || other.Aborted
}

// ErrorCount is the number of failures a run should report for this batch
func (s SyncStatus) ErrorCount() int {
	return s.FailedRecords + s.FetchErrors
}

// SyncOptions tunes a job/quote sync
type SyncOptions struct {
	IncludeActivities  bool       `json:"include_activities"`
	IncludeAttachments bool       `json:"include_attachments"`
	IncludeMaterials   bool       `json:"include_materials"`
	EditedSince        *time.Time `json:"edited_since,omitempty"`
	NoCache            bool       `json:"no_cache"`
}

// FullSyncResult is the outcome of PerformFullSync
type FullSyncResult struct {
	Companies SyncStatus   `json:"companies"`
	Jobs      []SyncStatus `json:"jobs"`
	Quotes    []SyncStatus `json:"quotes"`
}

// Totals folds every batch into one status
func (r FullSyncResult) Totals() SyncStatus {
	total := SyncStatus{}
	total.Merge(r.Companies)
	for _, s := range r.Jobs {
		total.Merge(s)
	}
	for _, s := range r.Quotes {
		total.Merge(s)
	}
	return total
}

// ChangedSinceResult is the outcome of an incremental or emergency pull
type ChangedSinceResult struct {
	Since     time.Time  `json:"since"`
	Companies SyncStatus `json:"companies"`
	Jobs      SyncStatus `json:"jobs"`
	Quotes    SyncStatus `json:"quotes"`
}

// Totals folds every batch into one status
func (r ChangedSinceResult) Totals() SyncStatus {
	total := SyncStatus{}
	total.Merge(r.Companies)
	total.Merge(r.Jobs)
	total.Merge(r.Quotes)
	return total
}
