package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fieldops/portal-sync/internal/constants"
)

const (
	endpointCompany          = "company"
	endpointJob              = "job"
	endpointJobActivity      = "jobactivity"
	endpointJobMaterial      = "jobmaterial"
	endpointAttachment       = "attachment"
	endpointStaff            = "staff"
	endpointServiceAgreement = "serviceagreement"
	endpointRecurringJob     = "recurringjob"
)

// ListOptions narrows a list call
type ListOptions struct {
	EditedSince *time.Time
	NoCache     bool
}

// JobQuery builds the $filter/$expand query for job listings
type JobQuery struct {
	CompanyUUID string
	Statuses    []string
	From        *time.Time
	To          *time.Time
	StaffUUIDs  []string
	EditedSince *time.Time
	Expand      []string
	NoCache     bool
}

// Filter renders the query as an upstream $filter expression
func (q JobQuery) Filter() string {
	var clauses []string
	if q.CompanyUUID != "" {
		clauses = append(clauses, eq("company_uuid", q.CompanyUUID))
	}
	if c := anyOf("status", q.Statuses); c != "" {
		clauses = append(clauses, c)
	}
	if q.From != nil {
		clauses = append(clauses, fmt.Sprintf("date ge '%s'", FormatTimestamp(*q.From)))
	}
	if q.To != nil {
		clauses = append(clauses, fmt.Sprintf("date le '%s'", FormatTimestamp(*q.To)))
	}
	if c := anyOf("staff_uuid", q.StaffUUIDs); c != "" {
		clauses = append(clauses, c)
	}
	if q.EditedSince != nil {
		clauses = append(clauses, editedSince(*q.EditedSince))
	}
	return strings.Join(clauses, " and ")
}

func (q JobQuery) values() url.Values {
	v := url.Values{}
	if f := q.Filter(); f != "" {
		v.Set("$filter", f)
	}
	if len(q.Expand) > 0 {
		v.Set("$expand", strings.Join(q.Expand, ","))
	}
	return v
}

func (o ListOptions) values(scope ...string) url.Values {
	var clauses []string
	if len(scope) == 2 && scope[1] != "" {
		clauses = append(clauses, eq(scope[0], scope[1]))
	}
	if o.EditedSince != nil {
		clauses = append(clauses, editedSince(*o.EditedSince))
	}
	v := url.Values{}
	if len(clauses) > 0 {
		v.Set("$filter", strings.Join(clauses, " and "))
	}
	return v
}

func eq(field, value string) string {
	return fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''"))
}

func anyOf(field string, values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return eq(field, values[0])
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = eq(field, v)
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

func editedSince(t time.Time) string {
	return fmt.Sprintf("edit_date gt '%s'", FormatTimestamp(t))
}

// listAll pages through endpoint with $top/$skip until a short page
func listAll[T any](ctx context.Context, c *Client, endpoint string, query url.Values, noCache bool) ([]T, error) {
	var all []T
	for skip := 0; ; skip += c.pageSize {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("$top", strconv.Itoa(c.pageSize))
		q.Set("$skip", strconv.Itoa(skip))

		var page []T
		if err := c.Request(ctx, http.MethodGet, endpoint+".json", RequestOptions{Query: q, NoCache: noCache}, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}

// getOne fetches a single object. Single-object reads are authoritative
// re-fetches and always bypass the cache.
func getOne[T any](ctx context.Context, c *Client, endpoint, uuid string) (*T, error) {
	if uuid == "" {
		return nil, newError(constants.ErrCodeBadRequest, 0, endpoint+": empty uuid", nil)
	}
	var out T
	path := fmt.Sprintf("%s/%s.json", endpoint, url.PathEscape(uuid))
	if err := c.Request(ctx, http.MethodGet, path, RequestOptions{NoCache: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetClients(ctx context.Context, opts ListOptions) ([]Company, error) {
	return listAll[Company](ctx, c, endpointCompany, opts.values(), opts.NoCache)
}

func (c *Client) GetCompany(ctx context.Context, uuid string) (*Company, error) {
	return getOne[Company](ctx, c, endpointCompany, uuid)
}

func (c *Client) GetJobs(ctx context.Context, q JobQuery) ([]Job, error) {
	return listAll[Job](ctx, c, endpointJob, q.values(), q.NoCache)
}

func (c *Client) GetJob(ctx context.Context, uuid string) (*Job, error) {
	return getOne[Job](ctx, c, endpointJob, uuid)
}

// GetQuotes lists jobs in Quote status; the status set of q is replaced
func (c *Client) GetQuotes(ctx context.Context, q JobQuery) ([]Job, error) {
	q.Statuses = []string{constants.JobStatusQuote}
	return c.GetJobs(ctx, q)
}

func (c *Client) GetJobActivities(ctx context.Context, jobUUID string, opts ListOptions) ([]JobActivity, error) {
	return listAll[JobActivity](ctx, c, endpointJobActivity, opts.values("job_uuid", jobUUID), opts.NoCache)
}

func (c *Client) GetJobActivity(ctx context.Context, uuid string) (*JobActivity, error) {
	return getOne[JobActivity](ctx, c, endpointJobActivity, uuid)
}

func (c *Client) GetStaff(ctx context.Context, opts ListOptions) ([]Staff, error) {
	return listAll[Staff](ctx, c, endpointStaff, opts.values(), opts.NoCache)
}

func (c *Client) GetStaffMember(ctx context.Context, uuid string) (*Staff, error) {
	return getOne[Staff](ctx, c, endpointStaff, uuid)
}

func (c *Client) GetJobMaterials(ctx context.Context, jobUUID string, opts ListOptions) ([]Material, error) {
	return listAll[Material](ctx, c, endpointJobMaterial, opts.values("job_uuid", jobUUID), opts.NoCache)
}

func (c *Client) GetJobAttachments(ctx context.Context, jobUUID string, opts ListOptions) ([]Attachment, error) {
	return listAll[Attachment](ctx, c, endpointAttachment, opts.values("related_object_uuid", jobUUID), opts.NoCache)
}

func (c *Client) GetAttachment(ctx context.Context, uuid string) (*Attachment, error) {
	return getOne[Attachment](ctx, c, endpointAttachment, uuid)
}

func (c *Client) GetServiceAgreements(ctx context.Context, companyUUID string, opts ListOptions) ([]ServiceAgreement, error) {
	return listAll[ServiceAgreement](ctx, c, endpointServiceAgreement, opts.values("company_uuid", companyUUID), opts.NoCache)
}

func (c *Client) GetRecurringJobs(ctx context.Context, companyUUID string, opts ListOptions) ([]RecurringJob, error) {
	return listAll[RecurringJob](ctx, c, endpointRecurringJob, opts.values("company_uuid", companyUUID), opts.NoCache)
}

// UpdateJobStatus moves a job to status upstream
func (c *Client) UpdateJobStatus(ctx context.Context, jobUUID, status string) error {
	if jobUUID == "" || status == "" {
		return newError(constants.ErrCodeBadRequest, 0, "job uuid and status are required", nil)
	}
	path := fmt.Sprintf("%s/%s.json", endpointJob, url.PathEscape(jobUUID))
	return c.Request(ctx, http.MethodPost, path, RequestOptions{Body: map[string]string{"status": status}}, nil)
}

// ApproveQuote converts a quoted job into a work order
func (c *Client) ApproveQuote(ctx context.Context, jobUUID string) error {
	return c.UpdateJobStatus(ctx, jobUUID, constants.JobStatusWorkOrder)
}

// RejectQuote marks a quoted job unsuccessful
func (c *Client) RejectQuote(ctx context.Context, jobUUID string) error {
	return c.UpdateJobStatus(ctx, jobUUID, constants.JobStatusUnsuccessful)
}
