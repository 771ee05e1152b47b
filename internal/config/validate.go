package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	hasKey := strings.TrimSpace(c.Upstream.APIKey) != ""
	hasToken := strings.TrimSpace(c.Upstream.BearerToken) != ""
	if hasKey == hasToken {
		errs = append(errs, errors.New("upstream: exactly one of UPSTREAM_API_KEY or UPSTREAM_BEARER_TOKEN must be set"))
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		errs = append(errs, errors.New("upstream: base_url is required"))
	}
	if c.Upstream.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("upstream: max_retries must be >= 1, got %d", c.Upstream.MaxRetries))
	}
	if c.Upstream.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("upstream: retry_base_delay must be positive"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream: timeout must be positive"))
	}
	if c.Upstream.CacheTTL < 0 {
		errs = append(errs, errors.New("upstream: cache_ttl must not be negative"))
	}
	if c.Upstream.PageSize < 1 {
		errs = append(errs, fmt.Errorf("upstream: page_size must be >= 1, got %d", c.Upstream.PageSize))
	}

	if c.Webhook.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("webhook: max_retries must be >= 1, got %d", c.Webhook.MaxRetries))
	}
	if c.Webhook.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("webhook: retry_base_delay must be positive"))
	}
	if c.Webhook.Workers < 1 {
		errs = append(errs, fmt.Errorf("webhook: workers must be >= 1, got %d", c.Webhook.Workers))
	}

	if c.Reconciliation.IncrementalInterval <= 0 || c.Reconciliation.FullInterval <= 0 {
		errs = append(errs, errors.New("reconciliation: intervals must be positive"))
	}
	if c.Reconciliation.LockTTL <= 0 {
		errs = append(errs, errors.New("reconciliation: lock_ttl must be positive"))
	}

	switch c.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("app: unknown log level %q", c.App.LogLevel))
	}

	return errors.Join(errs...)
}
