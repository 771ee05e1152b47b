package services

import (
	"context"
	"sync"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/realtime"
	"fieldops/portal-sync/internal/upstream"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func flagPtr(b bool) *upstream.Flag {
	f := upstream.Flag(b)
	return &f
}

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func upstreamErr(code string) error {
	return &upstream.UpstreamError{Code: code, Message: constants.GetErrorMessage(code)}
}

// fakeUpstream serves canned objects; nil func fields fall back to the maps
type fakeUpstream struct {
	mu sync.Mutex

	companies   []upstream.Company
	jobs        map[string][]upstream.Job // by company uuid; "" lists every job
	activities  map[string][]upstream.JobActivity
	attachments map[string][]upstream.Attachment
	materials   map[string][]upstream.Material
	staff       map[string]upstream.Staff

	clientsErr error
	jobsErr    map[string]error

	getJob     func(uuid string) (*upstream.Job, error)
	getCompany func(uuid string) (*upstream.Company, error)

	calls map[string]int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		jobs:        map[string][]upstream.Job{},
		activities:  map[string][]upstream.JobActivity{},
		attachments: map[string][]upstream.Attachment{},
		materials:   map[string][]upstream.Material{},
		staff:       map[string]upstream.Staff{},
		jobsErr:     map[string]error{},
		calls:       map[string]int{},
	}
}

func (f *fakeUpstream) called(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeUpstream) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeUpstream) GetClients(_ context.Context, _ upstream.ListOptions) ([]upstream.Company, error) {
	f.called("GetClients")
	if f.clientsErr != nil {
		return nil, f.clientsErr
	}
	return f.companies, nil
}

func (f *fakeUpstream) GetCompany(_ context.Context, uuid string) (*upstream.Company, error) {
	f.called("GetCompany")
	if f.getCompany != nil {
		return f.getCompany(uuid)
	}
	for _, c := range f.companies {
		if c.UUID == uuid {
			c := c
			return &c, nil
		}
	}
	return nil, upstreamErr(constants.ErrCodeNotFound)
}

func (f *fakeUpstream) GetJobs(_ context.Context, q upstream.JobQuery) ([]upstream.Job, error) {
	f.called("GetJobs")
	if err := f.jobsErr[q.CompanyUUID]; err != nil {
		return nil, err
	}
	return f.jobs[q.CompanyUUID], nil
}

func (f *fakeUpstream) GetJob(_ context.Context, uuid string) (*upstream.Job, error) {
	f.called("GetJob")
	if f.getJob != nil {
		return f.getJob(uuid)
	}
	for _, list := range f.jobs {
		for _, j := range list {
			if j.UUID == uuid {
				j := j
				return &j, nil
			}
		}
	}
	return nil, upstreamErr(constants.ErrCodeNotFound)
}

func (f *fakeUpstream) GetQuotes(_ context.Context, q upstream.JobQuery) ([]upstream.Job, error) {
	f.called("GetQuotes")
	if err := f.jobsErr[q.CompanyUUID]; err != nil {
		return nil, err
	}
	var out []upstream.Job
	for _, j := range f.jobs[q.CompanyUUID] {
		if j.Status != nil && *j.Status == constants.JobStatusQuote {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeUpstream) GetJobActivities(_ context.Context, jobUUID string, _ upstream.ListOptions) ([]upstream.JobActivity, error) {
	f.called("GetJobActivities")
	return f.activities[jobUUID], nil
}

func (f *fakeUpstream) GetJobActivity(_ context.Context, uuid string) (*upstream.JobActivity, error) {
	f.called("GetJobActivity")
	for _, list := range f.activities {
		for _, a := range list {
			if a.UUID == uuid {
				a := a
				return &a, nil
			}
		}
	}
	return nil, upstreamErr(constants.ErrCodeNotFound)
}

func (f *fakeUpstream) GetJobAttachments(_ context.Context, jobUUID string, _ upstream.ListOptions) ([]upstream.Attachment, error) {
	f.called("GetJobAttachments")
	return f.attachments[jobUUID], nil
}

func (f *fakeUpstream) GetAttachment(_ context.Context, uuid string) (*upstream.Attachment, error) {
	f.called("GetAttachment")
	for _, list := range f.attachments {
		for _, a := range list {
			if a.UUID == uuid {
				a := a
				return &a, nil
			}
		}
	}
	return nil, upstreamErr(constants.ErrCodeNotFound)
}

func (f *fakeUpstream) GetJobMaterials(_ context.Context, jobUUID string, _ upstream.ListOptions) ([]upstream.Material, error) {
	f.called("GetJobMaterials")
	return f.materials[jobUUID], nil
}

func (f *fakeUpstream) GetStaffMember(_ context.Context, uuid string) (*upstream.Staff, error) {
	f.called("GetStaffMember")
	if s, ok := f.staff[uuid]; ok {
		return &s, nil
	}
	return nil, upstreamErr(constants.ErrCodeNotFound)
}

// failingJobs wraps a JobStore and rejects one uuid
type failingJobs struct {
	JobStore
	failUUID string
	err      error
}

func (f failingJobs) Upsert(ctx context.Context, job *gorm.Job, columns []string) (*gorm.Job, error) {
	if job.UUID == f.failUUID {
		return nil, f.err
	}
	return f.JobStore.Upsert(ctx, job, columns)
}

// recordingBroadcaster keeps every message
type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []realtime.Message
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, msg realtime.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBroadcaster) all() []realtime.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]realtime.Message(nil), b.messages...)
}
