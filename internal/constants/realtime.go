package constants

// Realtime channels, one per entity family
const (
	ChannelJobs          = "jobs"
	ChannelCompanies     = "companies"
	ChannelJobActivities = "job_activities"
	ChannelAttachments   = "attachments"
	ChannelStaff         = "staff"
)

// Realtime message types
const (
	MessageJobUpdate        = "job_update"
	MessageCompanyUpdate    = "company_update"
	MessageActivityUpdate   = "activity_update"
	MessageAttachmentUpdate = "attachment_update"
	MessageStaffUpdate      = "staff_update"
)

// RealtimeChannels lists every channel subscribers may join
var RealtimeChannels = []string{
	ChannelJobs,
	ChannelCompanies,
	ChannelJobActivities,
	ChannelAttachments,
	ChannelStaff,
}
