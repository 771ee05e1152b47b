package repositories

import (
	"context"
	"testing"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/db/testdb"
	"fieldops/portal-sync/internal/models/gorm"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestClientRepo_UpsertIsIdempotentAndPreservesAbsentFields(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewClientRepo(db)
	ctx := context.Background()

	full := &gorm.Client{UUID: "co-1", Name: "Acme", Email: strPtr("ops@acme.test"), Phone: strPtr("555"), Active: true}
	require.NoError(t, repo.Upsert(ctx, full, []string{"name", "email", "phone", "active"}))

	again := &gorm.Client{UUID: "co-1", Name: "Acme", Email: strPtr("ops@acme.test"), Phone: strPtr("555"), Active: true}
	require.NoError(t, repo.Upsert(ctx, again, []string{"name", "email", "phone", "active"}))

	// partial payload: only the name is present
	partial := &gorm.Client{UUID: "co-1", Name: "Acme Ltd"}
	require.NoError(t, repo.Upsert(ctx, partial, []string{"name"}))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.FindByUUID(ctx, "co-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, "ops@acme.test", *got.Email)
	assert.Equal(t, "555", *got.Phone)
}

func TestClientRepo_NotFound(t *testing.T) {
	db, _ := testdb.New(t)
	_, err := NewClientRepo(db).FindByUUID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobRepo_UpsertReturnsStoredRow(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewJobRepo(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &gorm.Job{UUID: "job-1", CompanyUUID: strPtr("co-1"), Status: "Quote"}, []string{"company_uuid", "status"})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &gorm.Job{UUID: "job-1", Status: "Work Order"}, []string{"status"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Work Order", second.Status)
	require.NotNil(t, second.CompanyUUID)
	assert.Equal(t, "co-1", *second.CompanyUUID)

	n, _ := repo.Count(ctx)
	assert.Equal(t, int64(1), n)
}

func TestQuoteRepo_ResyncKeepsApproval(t *testing.T) {
	db, _ := testdb.New(t)
	jobs := NewJobRepo(db)
	quotes := NewQuoteRepo(db)
	ctx := context.Background()

	job, err := jobs.Upsert(ctx, &gorm.Job{UUID: "job-1", Status: "Quote"}, []string{"status"})
	require.NoError(t, err)

	require.NoError(t, quotes.Upsert(ctx, &gorm.Quote{JobID: job.ID, JobUUID: "job-1", Amount: decimal.NewFromInt(100)}))
	approvedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, quotes.SetApproval(ctx, "job-1", constants.QuoteStatusApproved, approvedAt))

	require.NoError(t, quotes.Upsert(ctx, &gorm.Quote{JobID: job.ID, JobUUID: "job-1", Amount: decimal.NewFromInt(120)}))

	got, err := quotes.FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.QuoteStatusApproved, got.Status)
	assert.True(t, decimal.NewFromInt(120).Equal(got.Amount))
	require.NotNil(t, got.ApprovedAt)

	n, _ := quotes.Count(ctx)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, quotes.SetApproval(ctx, "unknown", constants.QuoteStatusRejected, approvedAt), ErrNotFound)
}

func TestWebhookEventRepo_Lifecycle(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewWebhookEventRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := repo.CreateIfAbsent(ctx, &gorm.WebhookEvent{ID: "evt-1", ObjectType: "Job", Status: constants.EventStatusQueued, ReceivedAt: now})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, &gorm.WebhookEvent{ID: "evt-1", ObjectType: "Job", Status: constants.EventStatusQueued, ReceivedAt: now})
	require.NoError(t, err)
	assert.False(t, created)

	claimed, err := repo.MarkProcessing(ctx, "evt-1", 1)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, repo.MarkFailed(ctx, "evt-1", "boom", now))

	got, err := repo.FindByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, constants.EventStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom", *got.ErrorMessage)

	require.NoError(t, repo.MarkSuccess(ctx, "evt-1", now))
	got, _ = repo.FindByID(ctx, "evt-1")
	assert.Equal(t, constants.EventStatusSuccess, got.Status)
	assert.Nil(t, got.ErrorMessage)

	assert.ErrorIs(t, repo.MarkSuccess(ctx, "nope", now), ErrNotFound)
}

func TestWebhookEventRepo_CountsAndOrdering(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewWebhookEventRepo(db)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"b", "a", "c"} {
		_, err := repo.CreateIfAbsent(ctx, &gorm.WebhookEvent{
			ID:         id,
			Status:     constants.EventStatusFailed,
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := repo.CreateIfAbsent(ctx, &gorm.WebhookEvent{ID: "d", Status: constants.EventStatusSuccess, ReceivedAt: base})
	require.NoError(t, err)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[constants.EventStatusFailed])
	assert.Equal(t, int64(1), counts[constants.EventStatusSuccess])

	failed, err := repo.ListOldestByStatus(ctx, constants.EventStatusFailed, EventCursor{}, 0)
	require.NoError(t, err)
	require.Len(t, failed, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{failed[0].ID, failed[1].ID, failed[2].ID})

	page, err := repo.ListOldestByStatus(ctx, constants.EventStatusFailed, EventCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	last := page[1]
	rest, err := repo.ListOldestByStatus(ctx, constants.EventStatusFailed, EventCursor{ReceivedAt: last.ReceivedAt, ID: last.ID}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)
}

func TestWebhookEventRepo_MarkProcessingSkipsSucceeded(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewWebhookEventRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.CreateIfAbsent(ctx, &gorm.WebhookEvent{ID: "evt-1", ObjectType: "Job", Status: constants.EventStatusQueued, ReceivedAt: now})
	require.NoError(t, err)

	claimed, err := repo.MarkProcessing(ctx, "evt-1", 1)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, repo.MarkSuccess(ctx, "evt-1", now))

	claimed, err = repo.MarkProcessing(ctx, "evt-1", 2)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.FindByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, constants.EventStatusSuccess, got.Status)
	assert.Equal(t, 1, got.Attempts)

	_, err = repo.MarkProcessing(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconciliationRunRepo_FinishOnlyOnce(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewReconciliationRunRepo(db)
	ctx := context.Background()

	run := &gorm.ReconciliationRun{Type: constants.RunTypeFull, Status: constants.RunStatusRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, run))
	require.NotEmpty(t, run.ID)

	out := RunOutcome{Status: constants.RunStatusCompleted, CompletedAt: time.Now().UTC(), DurationMs: 10, RecordsProcessed: 5}
	require.NoError(t, repo.Finish(ctx, run.ID, out))

	out.Status = constants.RunStatusFailed
	assert.ErrorIs(t, repo.Finish(ctx, run.ID, out), ErrRunAlreadyTerminal)
	assert.ErrorIs(t, repo.Finish(ctx, "missing", out), ErrNotFound)

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusCompleted, got.Status)
	assert.Equal(t, 5, got.RecordsProcessed)
}

func TestSystemAlertRepo_Resolve(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewSystemAlertRepo(db)
	ctx := context.Background()

	alert := &gorm.SystemAlert{Type: constants.AlertWarning, Title: "t", Message: "m"}
	require.NoError(t, repo.Create(ctx, alert))

	open := false
	alerts, err := repo.List(ctx, &open, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	require.NoError(t, repo.Resolve(ctx, alert.ID, time.Now()))
	assert.ErrorIs(t, repo.Resolve(ctx, alert.ID, time.Now()), ErrNotFound)

	alerts, err = repo.List(ctx, &open, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSyncHistoryRepo(t *testing.T) {
	db, _ := testdb.New(t)
	repo := NewSyncHistoryRepo(db)
	ctx := context.Background()

	last, err := repo.GetLastSync(ctx, constants.SyncScopeJobs)
	require.NoError(t, err)
	assert.Nil(t, last)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, repo.RecordSync(ctx, constants.SyncScopeJobs, first))
	require.NoError(t, repo.RecordSync(ctx, constants.SyncScopeJobs, second))

	last, err = repo.GetLastSync(ctx, constants.SyncScopeJobs)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, second.Equal(*last))
}

func TestConsistencyRepo_FindsOrphans(t *testing.T) {
	db, sqlxDB := testdb.New(t)
	ctx := context.Background()

	clients := NewClientRepo(db)
	jobs := NewJobRepo(db)
	require.NoError(t, clients.Upsert(ctx, &gorm.Client{UUID: "co-1", Name: "A"}, []string{"name"}))
	_, err := jobs.Upsert(ctx, &gorm.Job{UUID: "ok", CompanyUUID: strPtr("co-1")}, []string{"company_uuid"})
	require.NoError(t, err)
	_, err = jobs.Upsert(ctx, &gorm.Job{UUID: "orphan"}, nil)
	require.NoError(t, err)
	_, err = jobs.Upsert(ctx, &gorm.Job{UUID: "ghost", CompanyUUID: strPtr("co-missing")}, []string{"company_uuid"})
	require.NoError(t, err)
	require.NoError(t, NewQuoteRepo(db).Upsert(ctx, &gorm.Quote{JobID: "no-such-job", JobUUID: "x", Amount: decimal.NewFromInt(1)}))

	repo := NewConsistencyRepo(sqlxDB)
	want := map[string]int64{
		"jobs_without_company":      1,
		"jobs_with_unknown_company": 1,
		"quotes_without_job":        1,
		"job_records_without_job":   0,
	}
	for _, check := range ConsistencyChecks {
		n, err := repo.Count(ctx, check.CountQuery)
		require.NoError(t, err, check.Kind)
		assert.Equal(t, want[check.Kind], n, check.Kind)

		samples, err := repo.Samples(ctx, check.SampleQuery, 5)
		require.NoError(t, err, check.Kind)
		assert.Len(t, samples, int(want[check.Kind]), check.Kind)
	}

	samples, err := repo.Samples(ctx, constants.SampleJobsWithoutCompany, 5)
	require.NoError(t, err)
	assert.Equal(t, "orphan", samples[0]["uuid"])
}
