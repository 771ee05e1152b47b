package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/db/testdb"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/upstream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlib "gorm.io/gorm"
)

func newSyncFixture(t *testing.T) (*SyncService, *fakeUpstream, *gormlib.DB) {
	t.Helper()
	db, _ := testdb.New(t)
	api := newFakeUpstream()
	m := metrics.NewMetricsRegistryWith(prometheus.NewRegistry())
	return NewSyncService(api, NewSyncRepos(db), m), api, db
}

func TestSyncCompanies_IdempotentUpsert(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()
	api.companies = []upstream.Company{
		{UUID: "co-1", Name: strPtr("Acme"), Email: strPtr("ops@acme.test"), Active: flagPtr(true)},
		{UUID: "co-2", Name: strPtr("Globex"), Active: flagPtr(false)},
	}

	first := svc.SyncCompanies(ctx)
	second := svc.SyncCompanies(ctx)

	assert.Equal(t, 2, first.SyncedRecords)
	assert.Equal(t, 2, second.SyncedRecords)
	assert.Zero(t, second.FailedRecords)

	clients := repositories.NewClientRepo(db)
	n, err := clients.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := clients.FindByUUID(ctx, "co-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.True(t, got.Active)

	entries, err := repositories.NewAuditLogRepo(db).List(ctx, constants.AuditCompaniesSync, "", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSyncJobsForCompany_IsolatesRecordFailures(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		api.jobs["co-1"] = append(api.jobs["co-1"], upstream.Job{
			UUID:        fmt.Sprintf("job-%d", i),
			CompanyUUID: strPtr("co-1"),
			Status:      strPtr(constants.JobStatusWorkOrder),
		})
	}
	svc.repos.Jobs = failingJobs{JobStore: svc.repos.Jobs, failUUID: "job-3", err: errors.New("constraint violated")}

	status := svc.SyncJobsForCompany(ctx, "co-1", dtos.SyncOptions{})

	assert.Equal(t, 5, status.TotalRecords)
	assert.Equal(t, 4, status.SyncedRecords)
	assert.Equal(t, 1, status.FailedRecords)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "job-3")

	n, err := repositories.NewJobRepo(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSyncJobsForCompany_FetchFailureAbortsBatch(t *testing.T) {
	svc, api, _ := newSyncFixture(t)
	api.jobsErr["co-1"] = upstreamErr(constants.ErrCodeUpstreamUnavailable)

	status := svc.SyncJobsForCompany(context.Background(), "co-1", dtos.SyncOptions{})

	assert.True(t, status.Aborted)
	assert.Zero(t, status.SyncedRecords)
	assert.Equal(t, 1, status.ErrorCount())
}

func TestSyncJobsForCompany_ChildEntities(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.jobs["co-1"] = []upstream.Job{{UUID: "job-1", CompanyUUID: strPtr("co-1"), Status: strPtr("Scheduled")}}
	api.activities["job-1"] = []upstream.JobActivity{
		{UUID: "act-1", JobUUID: strPtr("job-1"), StartDate: strPtr("2024-03-01 09:00:00")},
		{UUID: "act-2", JobUUID: strPtr("job-1")},
	}
	api.attachments["job-1"] = []upstream.Attachment{
		{UUID: "att-1", RelatedObject: strPtr("job"), RelatedObjectUUID: strPtr("job-1"), AttachmentName: strPtr("photo.jpg")},
	}

	status := svc.SyncJobsForCompany(ctx, "co-1", dtos.SyncOptions{IncludeActivities: true, IncludeAttachments: true})

	assert.Equal(t, 4, status.SyncedRecords)
	assert.Zero(t, status.FailedRecords)
	assert.Zero(t, api.callCount("GetJobMaterials"))

	records := repositories.NewJobRecordRepo(db)
	acts, err := records.ListByJob(ctx, "job-1", constants.JobRecordActivity)
	require.NoError(t, err)
	assert.Len(t, acts, 2)
	atts, err := records.ListByJob(ctx, "job-1", constants.JobRecordAttachment)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Contains(t, string(atts[0].Data), "photo.jpg")
}

func TestSyncQuotesForCompany_DerivesQuotesWithAmount(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.jobs["co-1"] = []upstream.Job{
		{UUID: "job-q1", CompanyUUID: strPtr("co-1"), Status: strPtr(constants.JobStatusQuote), TotalInvoiceAmount: amount("250.00")},
		{UUID: "job-q2", CompanyUUID: strPtr("co-1"), Status: strPtr(constants.JobStatusQuote)},
		{UUID: "job-wo", CompanyUUID: strPtr("co-1"), Status: strPtr(constants.JobStatusWorkOrder), TotalInvoiceAmount: amount("99")},
	}

	status := svc.SyncQuotesForCompany(ctx, "co-1", dtos.SyncOptions{})
	assert.Equal(t, 2, status.TotalRecords)
	assert.Equal(t, 2, status.SyncedRecords)

	jobs := repositories.NewJobRepo(db)
	quotes := repositories.NewQuoteRepo(db)

	q1, err := jobs.FindByUUID(ctx, "job-q1")
	require.NoError(t, err)
	quote, err := quotes.FindByJobID(ctx, q1.ID)
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(*amount("250")))
	assert.Equal(t, constants.QuoteStatusPending, quote.Status)

	q2, err := jobs.FindByUUID(ctx, "job-q2")
	require.NoError(t, err)
	_, err = quotes.FindByJobID(ctx, q2.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	n, _ := quotes.Count(ctx)
	assert.Equal(t, int64(1), n)
}

func TestPerformFullSync_CompaniesBeforeJobs(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.companies = []upstream.Company{{UUID: "co-1", Name: strPtr("Acme")}, {UUID: "co-2", Name: strPtr("Globex")}}
	api.jobs["co-1"] = []upstream.Job{{UUID: "job-1", CompanyUUID: strPtr("co-1"), Status: strPtr("Scheduled")}}
	api.jobs["co-2"] = []upstream.Job{{UUID: "job-2", CompanyUUID: strPtr("co-2"), Status: strPtr(constants.JobStatusQuote), TotalInvoiceAmount: amount("10")}}

	result, err := svc.PerformFullSync(ctx, dtos.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Companies.SyncedRecords)
	assert.Len(t, result.Jobs, 2)
	assert.Len(t, result.Quotes, 2)
	totals := result.Totals()
	assert.Zero(t, totals.ErrorCount())

	mark, err := svc.Watermark(ctx)
	require.NoError(t, err)
	assert.NotNil(t, mark)

	entries, err := repositories.NewAuditLogRepo(db).List(ctx, constants.AuditFullSync, "", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPerformFullSync_CountsFetchAndRecordErrors(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.companies = []upstream.Company{{UUID: "co-1", Name: strPtr("Acme")}, {UUID: "co-2", Name: strPtr("Globex")}}
	api.jobsErr["co-1"] = upstreamErr(constants.ErrCodeUpstreamUnavailable)
	api.jobs["co-2"] = []upstream.Job{
		{UUID: "job-ok", CompanyUUID: strPtr("co-2"), Status: strPtr("Scheduled")},
		{UUID: "job-bad", CompanyUUID: strPtr("co-2"), Status: strPtr("Scheduled")},
	}
	svc.repos.Jobs = failingJobs{JobStore: svc.repos.Jobs, failUUID: "job-bad", err: errors.New("constraint violated")}

	result, err := svc.PerformFullSync(ctx, dtos.SyncOptions{})
	require.NoError(t, err)

	totals := result.Totals()
	// job and quote fetches for co-1 plus the failing record in co-2
	assert.Equal(t, 2, totals.FetchErrors)
	assert.Equal(t, 1, totals.FailedRecords)
	assert.Equal(t, 3, totals.ErrorCount())
	assert.Len(t, totals.Errors, 3)
	assert.True(t, totals.Aborted)

	mark, err := svc.Watermark(ctx)
	require.NoError(t, err)
	assert.Nil(t, mark)

	n, err := repositories.NewJobRepo(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPerformFullSync_CompanyFetchFailure(t *testing.T) {
	svc, api, _ := newSyncFixture(t)
	api.clientsErr = upstreamErr(constants.ErrCodeTimeout)

	result, err := svc.PerformFullSync(context.Background(), dtos.SyncOptions{})

	require.Error(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Companies.Aborted)
	assert.Zero(t, api.callCount("GetJobs"))
}

func TestSyncChangedSince_PullsMissingCompany(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.getCompany = func(uuid string) (*upstream.Company, error) {
		return &upstream.Company{UUID: uuid, Name: strPtr("Late Arrival")}, nil
	}
	api.jobs[""] = []upstream.Job{
		{UUID: "job-1", CompanyUUID: strPtr("co-9"), Status: strPtr(constants.JobStatusQuote), TotalInvoiceAmount: amount("42")},
		{UUID: "job-2", CompanyUUID: strPtr("co-9"), Status: strPtr("Scheduled")},
	}

	since := time.Now().Add(-time.Hour)
	result, err := svc.SyncChangedSince(ctx, since, dtos.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Jobs.SyncedRecords)
	assert.Equal(t, 1, result.Quotes.SyncedRecords)
	assert.Equal(t, 1, api.callCount("GetCompany"))

	client, err := repositories.NewClientRepo(db).FindByUUID(ctx, "co-9")
	require.NoError(t, err)
	assert.Equal(t, "Late Arrival", client.Name)

	mark, err := svc.Watermark(ctx)
	require.NoError(t, err)
	assert.NotNil(t, mark)
}

func TestSyncChangedSince_FailuresHoldWatermark(t *testing.T) {
	svc, api, _ := newSyncFixture(t)
	ctx := context.Background()

	api.jobs[""] = []upstream.Job{{UUID: "job-1"}, {UUID: "job-2"}}
	svc.repos.Jobs = failingJobs{JobStore: svc.repos.Jobs, failUUID: "job-2", err: errors.New("boom")}

	result, err := svc.SyncChangedSince(ctx, time.Now().Add(-time.Hour), dtos.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Jobs.FailedRecords)

	mark, err := svc.Watermark(ctx)
	require.NoError(t, err)
	assert.Nil(t, mark)
}

func TestResyncJob_PartialPayloadKeepsStoredFields(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.jobs["co-1"] = []upstream.Job{{
		UUID:           "job-1",
		CompanyUUID:    strPtr("co-1"),
		Status:         strPtr("Scheduled"),
		JobDescription: strPtr("Replace boiler"),
		JobAddress:     strPtr("1 Main St"),
	}}
	svc.SyncJobsForCompany(ctx, "co-1", dtos.SyncOptions{})

	api.getJob = func(uuid string) (*upstream.Job, error) {
		return &upstream.Job{UUID: uuid, Status: strPtr(constants.JobStatusCompleted)}, nil
	}
	require.NoError(t, svc.ResyncJob(ctx, "job-1"))

	got, err := repositories.NewJobRepo(db).FindByUUID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Replace boiler", *got.Description)
	require.NotNil(t, got.CompanyUUID)
	assert.Equal(t, "co-1", *got.CompanyUUID)
}

func TestResyncEntryPoints(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.staff["st-1"] = upstream.Staff{UUID: "st-1", First: strPtr("Ada"), Active: flagPtr(true)}
	api.activities["job-1"] = []upstream.JobActivity{{UUID: "act-1", JobUUID: strPtr("job-1")}}

	require.NoError(t, svc.ResyncStaff(ctx, "st-1"))
	require.NoError(t, svc.ResyncJobActivity(ctx, "act-1"))

	staff, err := repositories.NewStaffRepo(db).FindByUUID(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", *staff.First)

	acts, err := repositories.NewJobRecordRepo(db).ListByJob(ctx, "job-1", constants.JobRecordActivity)
	require.NoError(t, err)
	assert.Len(t, acts, 1)

	err = svc.ResyncStaff(ctx, "missing")
	assert.True(t, upstream.IsNotFound(err))
	assert.ErrorIs(t, svc.ResyncCompany(ctx, ""), ErrEmptyUUID)
}

func TestResyncJobActivity_KeepsStoredOwner(t *testing.T) {
	svc, api, db := newSyncFixture(t)
	ctx := context.Background()

	api.activities["job-1"] = []upstream.JobActivity{{UUID: "act-1", StartDate: strPtr("2024-05-01 09:00:00")}}
	status := svc.SyncJobActivities(ctx, "job-1", dtos.SyncOptions{})
	require.Equal(t, 1, status.SyncedRecords)

	// the single-object payload carries no job_uuid
	api.activities["job-1"] = []upstream.JobActivity{{UUID: "act-1", StartDate: strPtr("2024-05-02 09:00:00")}}
	require.NoError(t, svc.ResyncJobActivity(ctx, "act-1"))

	rec, err := repositories.NewJobRecordRepo(db).FindByUUID(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", rec.JobUUID)
	assert.Contains(t, string(rec.Data), "2024-05-02")
}
