package constants

// Consistency check queries. Portable across Postgres and SQLite.
const (
	CountJobsWithoutCompany = `
	SELECT COUNT(*) FROM jobs WHERE company_uuid IS NULL OR company_uuid = ''
	`

	SampleJobsWithoutCompany = `
	SELECT uuid, status FROM jobs
	WHERE company_uuid IS NULL OR company_uuid = ''
	ORDER BY updated_at DESC LIMIT $1
	`

	CountJobsWithUnknownCompany = `
	SELECT COUNT(*) FROM jobs j
	LEFT JOIN clients c ON c.uuid = j.company_uuid
	WHERE j.company_uuid IS NOT NULL AND j.company_uuid <> '' AND c.id IS NULL
	`

	SampleJobsWithUnknownCompany = `
	SELECT j.uuid, j.company_uuid FROM jobs j
	LEFT JOIN clients c ON c.uuid = j.company_uuid
	WHERE j.company_uuid IS NOT NULL AND j.company_uuid <> '' AND c.id IS NULL
	ORDER BY j.updated_at DESC LIMIT $1
	`

	CountQuotesWithoutJob = `
	SELECT COUNT(*) FROM quotes q
	LEFT JOIN jobs j ON j.id = q.job_id
	WHERE j.id IS NULL
	`

	SampleQuotesWithoutJob = `
	SELECT q.id, q.job_uuid FROM quotes q
	LEFT JOIN jobs j ON j.id = q.job_id
	WHERE j.id IS NULL
	ORDER BY q.updated_at DESC LIMIT $1
	`

	CountJobRecordsWithoutJob = `
	SELECT COUNT(*) FROM job_records r
	LEFT JOIN jobs j ON j.uuid = r.job_uuid
	WHERE j.id IS NULL
	`

	SampleJobRecordsWithoutJob = `
	SELECT r.uuid, r.job_uuid FROM job_records r
	LEFT JOIN jobs j ON j.uuid = r.job_uuid
	WHERE j.id IS NULL
	ORDER BY r.updated_at DESC LIMIT $1
	`
)
