package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Upstream payloads. Optional fields are pointers: nil means the field was
// absent from the payload and must not overwrite what is stored locally.

// Flag decodes the upstream's mixed boolean encodings (true, 1, "1", "true")
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		*f = true
	case "0", "false", "no", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %q", s)
	}
	return nil
}

func (f *Flag) Bool() *bool {
	if f == nil {
		return nil
	}
	b := bool(*f)
	return &b
}

type Company struct {
	UUID     string  `json:"uuid"`
	Name     *string `json:"name,omitempty"`
	Address  *string `json:"address,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Active   *Flag   `json:"active,omitempty"`
	EditDate *string `json:"edit_date,omitempty"`
}

type Job struct {
	UUID               string           `json:"uuid"`
	CompanyUUID        *string          `json:"company_uuid,omitempty"`
	Status             *string          `json:"status,omitempty"`
	JobDescription     *string          `json:"job_description,omitempty"`
	Date               *string          `json:"date,omitempty"`
	JobAddress         *string          `json:"job_address,omitempty"`
	QuoteSent          *Flag            `json:"quote_sent,omitempty"`
	TotalInvoiceAmount *decimal.Decimal `json:"total_invoice_amount,omitempty"`
	EditDate           *string          `json:"edit_date,omitempty"`
}

type JobActivity struct {
	UUID                 string  `json:"uuid"`
	JobUUID              *string `json:"job_uuid,omitempty"`
	StaffUUID            *string `json:"staff_uuid,omitempty"`
	StartDate            *string `json:"start_date,omitempty"`
	EndDate              *string `json:"end_date,omitempty"`
	ActivityWasScheduled *Flag   `json:"activity_was_scheduled,omitempty"`
	EditDate             *string `json:"edit_date,omitempty"`
}

type Material struct {
	UUID     string           `json:"uuid"`
	JobUUID  *string          `json:"job_uuid,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	EditDate *string          `json:"edit_date,omitempty"`
}

type Attachment struct {
	UUID              string  `json:"uuid"`
	RelatedObject     *string `json:"related_object,omitempty"`
	RelatedObjectUUID *string `json:"related_object_uuid,omitempty"`
	AttachmentName    *string `json:"attachment_name,omitempty"`
	FileType          *string `json:"file_type,omitempty"`
	EditDate          *string `json:"edit_date,omitempty"`
}

type Staff struct {
	UUID     string  `json:"uuid"`
	First    *string `json:"first,omitempty"`
	Last     *string `json:"last,omitempty"`
	Email    *string `json:"email,omitempty"`
	Mobile   *string `json:"mobile,omitempty"`
	Active   *Flag   `json:"active,omitempty"`
	EditDate *string `json:"edit_date,omitempty"`
}

type ServiceAgreement struct {
	UUID        string  `json:"uuid"`
	CompanyUUID *string `json:"company_uuid,omitempty"`
	Name        *string `json:"name,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Active      *Flag   `json:"active,omitempty"`
	EditDate    *string `json:"edit_date,omitempty"`
}

type RecurringJob struct {
	UUID           string  `json:"uuid"`
	CompanyUUID    *string `json:"company_uuid,omitempty"`
	JobDescription *string `json:"job_description,omitempty"`
	Frequency      *string `json:"recurrence_frequency,omitempty"`
	NextDate       *string `json:"next_date,omitempty"`
	Active         *Flag   `json:"active,omitempty"`
	EditDate       *string `json:"edit_date,omitempty"`
}

// Timestamp layouts the upstream system is known to emit
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseTimestamp parses an upstream date. Empty and all-zero dates are nil.
func ParseTimestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.HasPrefix(v, "0000-00-00") {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FormatTimestamp renders t in the upstream's filter format
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// JobUUIDOf returns the job an attachment belongs to, if any
func (a Attachment) JobUUIDOf() string {
	if a.RelatedObjectUUID == nil {
		return ""
	}
	if a.RelatedObject != nil && !strings.EqualFold(*a.RelatedObject, "job") {
		return ""
	}
	return *a.RelatedObjectUUID
}

// Raw re-encodes an upstream object for JSON storage
func Raw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
