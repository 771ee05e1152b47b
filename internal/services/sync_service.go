package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/upstream"
)

// ErrEmptyUUID is returned by the re-sync entry points for a blank identifier
var ErrEmptyUUID = errors.New("object uuid is required")

// SyncService pulls upstream entities into local storage. Batches isolate
// per-record failures: one bad record is counted and the batch continues.
type SyncService struct {
	api     UpstreamAPI
	repos   SyncRepos
	metrics *metrics.MetricsRegistry
	now     func() time.Time
}

func NewSyncService(api UpstreamAPI, repos SyncRepos, m *metrics.MetricsRegistry) *SyncService {
	return &SyncService{
		api:     api,
		repos:   repos,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CompanyIndex is the set of company uuids known locally once the company
// stage has run. Job stages take it as input, which keeps companies ahead
// of the jobs that reference them.
type CompanyIndex struct {
	uuids []string
	set   map[string]struct{}
}

func newCompanyIndex(uuids []string) *CompanyIndex {
	idx := &CompanyIndex{set: make(map[string]struct{}, len(uuids))}
	for _, u := range uuids {
		idx.add(u)
	}
	return idx
}

func (i *CompanyIndex) add(uuid string) {
	if _, ok := i.set[uuid]; ok {
		return
	}
	i.set[uuid] = struct{}{}
	i.uuids = append(i.uuids, uuid)
}

func (i *CompanyIndex) Has(uuid string) bool {
	_, ok := i.set[uuid]
	return ok
}

func (i *CompanyIndex) UUIDs() []string {
	return i.uuids
}

func (i *CompanyIndex) Len() int {
	return len(i.uuids)
}

// SyncCompanies pulls every company upstream and upserts it
func (s *SyncService) SyncCompanies(ctx context.Context) dtos.SyncStatus {
	status, _, _ := s.companyStage(ctx, upstream.ListOptions{})
	return status
}

// companyStage upserts companies and returns the resulting local index.
// The error is non-nil only when the list itself could not be fetched or
// the index could not be read back.
func (s *SyncService) companyStage(ctx context.Context, opts upstream.ListOptions) (dtos.SyncStatus, *CompanyIndex, error) {
	status := dtos.SyncStatus{}

	companies, err := s.api.GetClients(ctx, opts)
	if err != nil {
		logging.Error("Company sync failed to fetch companies", "error", err)
		status.AddFetchError(fmt.Sprintf("fetch companies: %v", err))
		return status, nil, err
	}

	status.TotalRecords = len(companies)
	for _, c := range companies {
		if err := s.upsertCompany(ctx, c); err != nil {
			logging.Warn("Failed to upsert company", "company_uuid", c.UUID, "error", err)
			status.AddError(fmt.Sprintf("company %s: %v", c.UUID, err))
			continue
		}
		status.SyncedRecords++
	}

	s.metrics.ObserveSyncRecords("company", status.SyncedRecords, status.FailedRecords)
	s.audit(ctx, constants.AuditCompaniesSync, constants.TargetCompany, "", status)
	logging.Info("Company sync complete",
		"total", status.TotalRecords,
		"synced", status.SyncedRecords,
		"failed", status.FailedRecords,
	)

	uuids, err := s.repos.Clients.ListUUIDs(ctx)
	if err != nil {
		status.AddFetchError(fmt.Sprintf("read company index: %v", err))
		return status, nil, fmt.Errorf("failed to read company index: %w", err)
	}
	return status, newCompanyIndex(uuids), nil
}

// SyncJobsForCompany pulls the jobs of one company, fanning out to the
// child entities opts asks for.
func (s *SyncService) SyncJobsForCompany(ctx context.Context, companyUUID string, opts dtos.SyncOptions) dtos.SyncStatus {
	status := dtos.SyncStatus{}

	jobs, err := s.api.GetJobs(ctx, upstream.JobQuery{
		CompanyUUID: companyUUID,
		EditedSince: opts.EditedSince,
		NoCache:     opts.NoCache,
	})
	if err != nil {
		logging.Warn("Job sync failed to fetch jobs", "company_uuid", companyUUID, "error", err)
		status.AddFetchError(fmt.Sprintf("fetch jobs for company %s: %v", companyUUID, err))
		return status
	}

	status.TotalRecords = len(jobs)
	children := dtos.SyncStatus{}
	for _, j := range jobs {
		if _, err := s.upsertJob(ctx, j); err != nil {
			logging.Warn("Failed to upsert job", "job_uuid", j.UUID, "error", err)
			status.AddError(fmt.Sprintf("job %s: %v", j.UUID, err))
			continue
		}
		status.SyncedRecords++
		children.Merge(s.syncChildren(ctx, j.UUID, opts))
	}

	s.metrics.ObserveSyncRecords("job", status.SyncedRecords, status.FailedRecords)
	s.audit(ctx, constants.AuditJobsSync, constants.TargetCompany, companyUUID, status)

	status.Merge(children)
	return status
}

// SyncQuotesForCompany pulls the company's jobs in Quote status and derives
// a local quote for each one that carries a total amount.
func (s *SyncService) SyncQuotesForCompany(ctx context.Context, companyUUID string, opts dtos.SyncOptions) dtos.SyncStatus {
	status := dtos.SyncStatus{}

	jobs, err := s.api.GetQuotes(ctx, upstream.JobQuery{
		CompanyUUID: companyUUID,
		EditedSince: opts.EditedSince,
		NoCache:     opts.NoCache,
	})
	if err != nil {
		logging.Warn("Quote sync failed to fetch quotes", "company_uuid", companyUUID, "error", err)
		status.AddFetchError(fmt.Sprintf("fetch quotes for company %s: %v", companyUUID, err))
		return status
	}

	status.TotalRecords = len(jobs)
	skipped := 0
	for _, j := range jobs {
		stored, err := s.upsertJob(ctx, j)
		if err != nil {
			logging.Warn("Failed to upsert quoted job", "job_uuid", j.UUID, "error", err)
			status.AddError(fmt.Sprintf("quote %s: %v", j.UUID, err))
			continue
		}
		if !stored.TotalAmount.Valid {
			skipped++
		}
		status.SyncedRecords++
	}

	s.metrics.ObserveSyncRecords("quote", status.SyncedRecords, status.FailedRecords)
	s.audit(ctx, constants.AuditQuotesSync, constants.TargetCompany, companyUUID, status)
	if skipped > 0 {
		logging.Debug("Quoted jobs without a total amount were not derived",
			"company_uuid", companyUUID,
			"skipped", skipped,
		)
	}
	return status
}

// SyncJobActivities pulls the activities of one job
func (s *SyncService) SyncJobActivities(ctx context.Context, jobUUID string, opts dtos.SyncOptions) dtos.SyncStatus {
	activities, err := s.api.GetJobActivities(ctx, jobUUID, listOptions(opts))
	return syncRecords(ctx, s, "job_activity", constants.AuditJobActivitySync, jobUUID, activities, err,
		func(a upstream.JobActivity) (string, *gorm.JobRecord) { return a.UUID, activityRecord(a, jobUUID) })
}

// SyncJobAttachments pulls the attachments of one job
func (s *SyncService) SyncJobAttachments(ctx context.Context, jobUUID string, opts dtos.SyncOptions) dtos.SyncStatus {
	attachments, err := s.api.GetJobAttachments(ctx, jobUUID, listOptions(opts))
	return syncRecords(ctx, s, "attachment", constants.AuditAttachmentSync, jobUUID, attachments, err,
		func(a upstream.Attachment) (string, *gorm.JobRecord) { return a.UUID, attachmentRecord(a, jobUUID) })
}

// SyncJobMaterials pulls the materials of one job
func (s *SyncService) SyncJobMaterials(ctx context.Context, jobUUID string, opts dtos.SyncOptions) dtos.SyncStatus {
	materials, err := s.api.GetJobMaterials(ctx, jobUUID, listOptions(opts))
	return syncRecords(ctx, s, "material", constants.AuditMaterialSync, jobUUID, materials, err,
		func(m upstream.Material) (string, *gorm.JobRecord) { return m.UUID, materialRecord(m, jobUUID) })
}

func syncRecords[T any](
	ctx context.Context,
	s *SyncService,
	entity, action, jobUUID string,
	items []T,
	fetchErr error,
	toRecord func(T) (string, *gorm.JobRecord),
) dtos.SyncStatus {
	status := dtos.SyncStatus{}
	if fetchErr != nil {
		logging.Warn("Child sync failed to fetch", "entity", entity, "job_uuid", jobUUID, "error", fetchErr)
		status.AddFetchError(fmt.Sprintf("fetch %s for job %s: %v", entity, jobUUID, fetchErr))
		return status
	}

	status.TotalRecords = len(items)
	for _, item := range items {
		uuid, rec := toRecord(item)
		if err := s.repos.Records.Upsert(ctx, rec); err != nil {
			status.AddError(fmt.Sprintf("%s %s: %v", entity, uuid, err))
			continue
		}
		status.SyncedRecords++
	}

	s.metrics.ObserveSyncRecords(entity, status.SyncedRecords, status.FailedRecords)
	s.audit(ctx, action, constants.TargetJob, jobUUID, status)
	return status
}

func (s *SyncService) syncChildren(ctx context.Context, jobUUID string, opts dtos.SyncOptions) dtos.SyncStatus {
	status := dtos.SyncStatus{}
	if opts.IncludeActivities {
		status.Merge(s.SyncJobActivities(ctx, jobUUID, opts))
	}
	if opts.IncludeAttachments {
		status.Merge(s.SyncJobAttachments(ctx, jobUUID, opts))
	}
	if opts.IncludeMaterials {
		status.Merge(s.SyncJobMaterials(ctx, jobUUID, opts))
	}
	return status
}

// PerformFullSync runs the company stage, then jobs and quotes for every
// company in the resulting index. It errors only when the company stage
// cannot produce an index; per-company failures are reported in the result.
func (s *SyncService) PerformFullSync(ctx context.Context, opts dtos.SyncOptions) (*dtos.FullSyncResult, error) {
	started := s.now()
	result := &dtos.FullSyncResult{}

	companies, idx, err := s.companyStage(ctx, upstream.ListOptions{NoCache: opts.NoCache})
	result.Companies = companies
	if err != nil {
		return result, fmt.Errorf("company sync failed: %w", err)
	}

	for _, companyUUID := range idx.UUIDs() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Jobs = append(result.Jobs, s.SyncJobsForCompany(ctx, companyUUID, opts))
		result.Quotes = append(result.Quotes, s.SyncQuotesForCompany(ctx, companyUUID, opts))
	}

	totals := result.Totals()
	if totals.ErrorCount() == 0 && opts.EditedSince == nil {
		s.recordWatermarks(ctx, started)
	}
	s.audit(ctx, constants.AuditFullSync, "", "", totals)
	logging.Info("Full sync complete",
		"companies", idx.Len(),
		"total", totals.TotalRecords,
		"synced", totals.SyncedRecords,
		"failed", totals.FailedRecords,
		"duration_ms", s.now().Sub(started).Milliseconds(),
	)
	return result, nil
}

// SyncChangedSince pulls companies and jobs edited after since. Jobs that
// reference a company missing locally pull that company first. The
// watermark advances only when the pull had no failures.
func (s *SyncService) SyncChangedSince(ctx context.Context, since time.Time, opts dtos.SyncOptions) (*dtos.ChangedSinceResult, error) {
	started := s.now()
	result := &dtos.ChangedSinceResult{Since: since}

	companies, idx, err := s.companyStage(ctx, upstream.ListOptions{EditedSince: &since, NoCache: opts.NoCache})
	result.Companies = companies
	if err != nil {
		return result, fmt.Errorf("company sync failed: %w", err)
	}

	jobs, err := s.api.GetJobs(ctx, upstream.JobQuery{EditedSince: &since, NoCache: opts.NoCache})
	if err != nil {
		result.Jobs.AddFetchError(fmt.Sprintf("fetch jobs: %v", err))
		return result, fmt.Errorf("job sync failed: %w", err)
	}

	s.jobStage(ctx, idx, jobs, opts, result)

	totals := result.Totals()
	if totals.ErrorCount() == 0 {
		s.recordWatermarks(ctx, started)
	}
	s.audit(ctx, constants.AuditIncrementalSync, "", "", totals)
	logging.Info("Incremental sync complete",
		"since", since,
		"total", totals.TotalRecords,
		"synced", totals.SyncedRecords,
		"failed", totals.FailedRecords,
	)
	return result, nil
}

func (s *SyncService) jobStage(ctx context.Context, idx *CompanyIndex, jobs []upstream.Job, opts dtos.SyncOptions, result *dtos.ChangedSinceResult) {
	result.Jobs.TotalRecords = len(jobs)
	children := dtos.SyncStatus{}

	for _, j := range jobs {
		if j.CompanyUUID != nil && *j.CompanyUUID != "" && !idx.Has(*j.CompanyUUID) {
			if err := s.ResyncCompany(ctx, *j.CompanyUUID); err != nil {
				logging.Warn("Could not pull company referenced by job",
					"job_uuid", j.UUID,
					"company_uuid", *j.CompanyUUID,
					"error", err,
				)
			} else {
				idx.add(*j.CompanyUUID)
			}
		}

		stored, err := s.upsertJob(ctx, j)
		if err != nil {
			result.Jobs.AddError(fmt.Sprintf("job %s: %v", j.UUID, err))
			continue
		}
		result.Jobs.SyncedRecords++

		if isQuote(stored) {
			result.Quotes.TotalRecords++
			result.Quotes.SyncedRecords++
		}
		children.Merge(s.syncChildren(ctx, j.UUID, opts))
	}

	s.metrics.ObserveSyncRecords("job", result.Jobs.SyncedRecords, result.Jobs.FailedRecords)
	s.metrics.ObserveSyncRecords("quote", result.Quotes.SyncedRecords, result.Quotes.FailedRecords)
	result.Jobs.Merge(children)
}

// Watermark is the last time a sync covered every job without failures
func (s *SyncService) Watermark(ctx context.Context) (*time.Time, error) {
	return s.repos.History.GetLastSync(ctx, constants.SyncScopeJobs)
}

func (s *SyncService) recordWatermarks(ctx context.Context, at time.Time) {
	for _, scope := range []string{constants.SyncScopeCompanies, constants.SyncScopeJobs} {
		if err := s.repos.History.RecordSync(ctx, scope, at); err != nil {
			logging.Warn("Failed to record sync watermark", "scope", scope, "error", err)
		}
	}
}

// ResyncCompany re-fetches one company and upserts it
func (s *SyncService) ResyncCompany(ctx context.Context, uuid string) error {
	if uuid == "" {
		return ErrEmptyUUID
	}
	c, err := s.api.GetCompany(ctx, uuid)
	if err != nil {
		return err
	}
	if c.UUID == "" {
		c.UUID = uuid
	}
	return s.upsertCompany(ctx, *c)
}

// ResyncJob re-fetches one job, upserts it and refreshes its derived quote
func (s *SyncService) ResyncJob(ctx context.Context, uuid string) error {
	if uuid == "" {
		return ErrEmptyUUID
	}
	j, err := s.api.GetJob(ctx, uuid)
	if err != nil {
		return err
	}
	if j.UUID == "" {
		j.UUID = uuid
	}
	_, err = s.upsertJob(ctx, *j)
	return err
}

func (s *SyncService) ResyncJobActivity(ctx context.Context, uuid string) error {
	if uuid == "" {
		return ErrEmptyUUID
	}
	a, err := s.api.GetJobActivity(ctx, uuid)
	if err != nil {
		return err
	}
	if a.UUID == "" {
		a.UUID = uuid
	}
	return s.repos.Records.Upsert(ctx, activityRecord(*a, ""))
}

func (s *SyncService) ResyncAttachment(ctx context.Context, uuid string) error {
	if uuid == "" {
		return ErrEmptyUUID
	}
	a, err := s.api.GetAttachment(ctx, uuid)
	if err != nil {
		return err
	}
	if a.UUID == "" {
		a.UUID = uuid
	}
	return s.repos.Records.Upsert(ctx, attachmentRecord(*a, ""))
}

func (s *SyncService) ResyncStaff(ctx context.Context, uuid string) error {
	if uuid == "" {
		return ErrEmptyUUID
	}
	member, err := s.api.GetStaffMember(ctx, uuid)
	if err != nil {
		return err
	}
	if member.UUID == "" {
		member.UUID = uuid
	}
	m, cols := staffToModel(*member)
	return s.repos.Staff.Upsert(ctx, m, cols)
}

func (s *SyncService) upsertCompany(ctx context.Context, c upstream.Company) error {
	if c.UUID == "" {
		return ErrEmptyUUID
	}
	m, cols := companyToModel(c)
	return s.repos.Clients.Upsert(ctx, m, cols)
}

func (s *SyncService) upsertJob(ctx context.Context, j upstream.Job) (*gorm.Job, error) {
	if j.UUID == "" {
		return nil, ErrEmptyUUID
	}
	m, cols := jobToModel(j)
	stored, err := s.repos.Jobs.Upsert(ctx, m, cols)
	if err != nil {
		return nil, err
	}
	if isQuote(stored) {
		if err := s.deriveQuote(ctx, stored); err != nil {
			return nil, fmt.Errorf("derive quote: %w", err)
		}
	}
	return stored, nil
}

func (s *SyncService) deriveQuote(ctx context.Context, job *gorm.Job) error {
	return s.repos.Quotes.Upsert(ctx, &gorm.Quote{
		JobID:   job.ID,
		JobUUID: job.UUID,
		Amount:  job.TotalAmount.Decimal,
	})
}

func (s *SyncService) audit(ctx context.Context, action, targetType, targetID string, status dtos.SyncStatus) {
	meta := map[string]interface{}{
		"total":  status.TotalRecords,
		"synced": status.SyncedRecords,
		"failed": status.FailedRecords,
	}
	if status.Aborted {
		meta["aborted"] = true
	}
	if err := s.repos.Audit.Record(ctx, constants.ActorSystem, action, targetType, targetID, meta); err != nil {
		logging.Warn("Failed to write audit entry", "action", action, "error", err)
	}
}

func listOptions(opts dtos.SyncOptions) upstream.ListOptions {
	return upstream.ListOptions{EditedSince: opts.EditedSince, NoCache: opts.NoCache}
}
