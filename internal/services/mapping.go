package services

import (
	"strings"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/models/gorm"
	"fieldops/portal-sync/internal/upstream"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Each mapper returns the local row plus the columns the payload actually
// carried. Only those columns are overwritten on conflict.

func companyToModel(c upstream.Company) (*gorm.Client, []string) {
	m := &gorm.Client{UUID: c.UUID}
	var cols []string
	if c.Name != nil {
		m.Name = strings.TrimSpace(*c.Name)
		cols = append(cols, "name")
	}
	if c.Address != nil {
		m.Address = c.Address
		cols = append(cols, "address")
	}
	if c.Email != nil {
		m.Email = c.Email
		cols = append(cols, "email")
	}
	if c.Phone != nil {
		m.Phone = c.Phone
		cols = append(cols, "phone")
	}
	if b := c.Active.Bool(); b != nil {
		m.Active = *b
		cols = append(cols, "active")
	}
	if t := upstream.ParseTimestamp(c.EditDate); t != nil {
		m.UpstreamEditedAt = t
		cols = append(cols, "upstream_edited_at")
	}
	return m, cols
}

func jobToModel(j upstream.Job) (*gorm.Job, []string) {
	m := &gorm.Job{UUID: j.UUID}
	var cols []string
	if j.CompanyUUID != nil && *j.CompanyUUID != "" {
		m.CompanyUUID = j.CompanyUUID
		cols = append(cols, "company_uuid")
	}
	if j.Status != nil {
		m.Status = *j.Status
		cols = append(cols, "status")
	}
	if j.JobDescription != nil {
		m.Description = j.JobDescription
		cols = append(cols, "description")
	}
	if j.Date != nil {
		m.ScheduledDate = upstream.ParseTimestamp(j.Date)
		cols = append(cols, "scheduled_date")
	}
	if j.JobAddress != nil {
		m.Address = j.JobAddress
		cols = append(cols, "address")
	}
	if b := j.QuoteSent.Bool(); b != nil {
		m.QuoteSent = b
		cols = append(cols, "quote_sent")
	}
	if j.TotalInvoiceAmount != nil {
		m.TotalAmount = decimal.NewNullDecimal(*j.TotalInvoiceAmount)
		cols = append(cols, "total_amount")
	}
	if t := upstream.ParseTimestamp(j.EditDate); t != nil {
		m.UpstreamEditedAt = t
		cols = append(cols, "upstream_edited_at")
	}
	return m, cols
}

func staffToModel(s upstream.Staff) (*gorm.Staff, []string) {
	m := &gorm.Staff{UUID: s.UUID}
	var cols []string
	if s.First != nil {
		m.First = s.First
		cols = append(cols, "first")
	}
	if s.Last != nil {
		m.Last = s.Last
		cols = append(cols, "last")
	}
	if s.Email != nil {
		m.Email = s.Email
		cols = append(cols, "email")
	}
	if s.Mobile != nil {
		m.Mobile = s.Mobile
		cols = append(cols, "mobile")
	}
	if b := s.Active.Bool(); b != nil {
		m.Active = *b
		cols = append(cols, "active")
	}
	return m, cols
}

func jobRecord(uuid, jobUUID string, kind constants.JobRecordKind, editDate *string, v any) *gorm.JobRecord {
	return &gorm.JobRecord{
		UUID:             uuid,
		JobUUID:          jobUUID,
		Kind:             kind,
		Data:             datatypes.JSON(upstream.Raw(v)),
		UpstreamEditedAt: upstream.ParseTimestamp(editDate),
	}
}

func activityRecord(a upstream.JobActivity, jobUUID string) *gorm.JobRecord {
	if a.JobUUID != nil && *a.JobUUID != "" {
		jobUUID = *a.JobUUID
	}
	return jobRecord(a.UUID, jobUUID, constants.JobRecordActivity, a.EditDate, a)
}

func attachmentRecord(a upstream.Attachment, jobUUID string) *gorm.JobRecord {
	if owner := a.JobUUIDOf(); owner != "" {
		jobUUID = owner
	}
	return jobRecord(a.UUID, jobUUID, constants.JobRecordAttachment, a.EditDate, a)
}

func materialRecord(m upstream.Material, jobUUID string) *gorm.JobRecord {
	if m.JobUUID != nil && *m.JobUUID != "" {
		jobUUID = *m.JobUUID
	}
	return jobRecord(m.UUID, jobUUID, constants.JobRecordMaterial, m.EditDate, m)
}

// isQuote reports whether a stored job should carry a derived quote
func isQuote(j *gorm.Job) bool {
	return j.Status == constants.JobStatusQuote && j.TotalAmount.Valid
}
