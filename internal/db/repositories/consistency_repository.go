package repositories

import (
	"context"
	"fmt"

	"fieldops/portal-sync/internal/constants"

	"github.com/jmoiron/sqlx"
)

// ConsistencyCheck pairs a count query with a sample query
type ConsistencyCheck struct {
	Kind        string
	CountQuery  string
	SampleQuery string
}

// ConsistencyChecks are the known anomaly classes
var ConsistencyChecks = []ConsistencyCheck{
	{"jobs_without_company", constants.CountJobsWithoutCompany, constants.SampleJobsWithoutCompany},
	{"jobs_with_unknown_company", constants.CountJobsWithUnknownCompany, constants.SampleJobsWithUnknownCompany},
	{"quotes_without_job", constants.CountQuotesWithoutJob, constants.SampleQuotesWithoutJob},
	{"job_records_without_job", constants.CountJobRecordsWithoutJob, constants.SampleJobRecordsWithoutJob},
}

// ConsistencyRepo runs raw read-only anomaly queries
type ConsistencyRepo struct {
	db *sqlx.DB
}

func NewConsistencyRepo(db *sqlx.DB) *ConsistencyRepo {
	return &ConsistencyRepo{db: db}
}

func (r *ConsistencyRepo) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("consistency count failed: %w", err)
	}
	return n, nil
}

// Samples returns up to limit offending rows as column -> value maps
func (r *ConsistencyRepo) Samples(ctx context.Context, query string, limit int) ([]map[string]string, error) {
	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("consistency sample failed: %w", err)
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		raw := map[string]interface{}{}
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		sample := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
				sample[k] = ""
			case []byte:
				sample[k] = string(val)
			default:
				sample[k] = fmt.Sprint(val)
			}
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// Ping verifies the raw connection
func (r *ConsistencyRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
