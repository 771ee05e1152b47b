package config

import "time"

// Config is the root configuration of the sync service.
type Config struct {
	App            AppConfig            `yaml:"app"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Upstream       UpstreamConfig       `yaml:"upstream"`
	Webhook        WebhookConfig        `yaml:"webhook"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	CORS           CORSConfig           `yaml:"cors"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env      string `yaml:"env"       env:"APP_ENV"   env-default:"development"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"            env:"DATABASE_DSN"            env-required:"true"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	AutoMigrate  bool   `yaml:"auto_migrate"   env:"DATABASE_AUTO_MIGRATE"   env-default:"true"`
}

// RedisConfig enables the shared cache, webhook queue, run lock and realtime relay.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"    env:"REDIS_ENABLED"    env-default:"false"`
	Host      string `yaml:"host"       env:"REDIS_HOST"       env-default:"localhost"`
	Port      string `yaml:"port"       env:"REDIS_PORT"       env-default:"6379"`
	Password  string `yaml:"password"   env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db"         env:"REDIS_DB"         env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"portal-sync"`
}

// UpstreamConfig configures the field-service API client.
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url"            env:"UPSTREAM_BASE_URL"            env-default:"https://api.servicem8.com/api_1.0"`
	APIKey            string        `yaml:"api_key"             env:"UPSTREAM_API_KEY"`
	BearerToken       string        `yaml:"bearer_token"        env:"UPSTREAM_BEARER_TOKEN"`
	Timeout           time.Duration `yaml:"timeout"             env:"UPSTREAM_TIMEOUT"             env-default:"30s"`
	MaxRetries        int           `yaml:"max_retries"         env:"UPSTREAM_MAX_RETRIES"         env-default:"3"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"    env:"UPSTREAM_RETRY_BASE_DELAY"    env-default:"1s"`
	CacheTTL          time.Duration `yaml:"cache_ttl"           env:"UPSTREAM_CACHE_TTL"           env-default:"5m"`
	CacheCleanup      time.Duration `yaml:"cache_cleanup"       env:"UPSTREAM_CACHE_CLEANUP"       env-default:"10m"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"UPSTREAM_REQUESTS_PER_SECOND" env-default:"0"`
	PageSize          int           `yaml:"page_size"           env:"UPSTREAM_PAGE_SIZE"           env-default:"500"`
}

// WebhookConfig configures inbound event processing.
type WebhookConfig struct {
	MaxRetries          int           `yaml:"max_retries"           env:"WEBHOOK_MAX_RETRIES"           env-default:"3"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"      env:"WEBHOOK_RETRY_BASE_DELAY"      env-default:"1s"`
	NotFoundTerminal    bool          `yaml:"not_found_terminal"    env:"WEBHOOK_NOT_FOUND_TERMINAL"    env-default:"true"`
	StreamName          string        `yaml:"stream_name"           env:"WEBHOOK_STREAM_NAME"           env-default:"webhook:events"`
	ConsumerGroup       string        `yaml:"consumer_group"        env:"WEBHOOK_CONSUMER_GROUP"        env-default:"webhook-workers"`
	Workers             int           `yaml:"workers"               env:"WEBHOOK_WORKERS"               env-default:"4"`
	IngressRatePerSec   float64       `yaml:"ingress_rate_per_sec"  env:"WEBHOOK_INGRESS_RATE_PER_SEC"  env-default:"20"`
	IngressBurst        int           `yaml:"ingress_burst"         env:"WEBHOOK_INGRESS_BURST"         env-default:"50"`
	FailedRetryInterval time.Duration `yaml:"failed_retry_interval" env:"WEBHOOK_FAILED_RETRY_INTERVAL" env-default:"0s"`
}

// ReconciliationConfig configures scheduled runs and consistency checks.
type ReconciliationConfig struct {
	IncrementalInterval time.Duration `yaml:"incremental_interval" env:"RECONCILIATION_INCREMENTAL_INTERVAL" env-default:"15m"`
	FullInterval        time.Duration `yaml:"full_interval"        env:"RECONCILIATION_FULL_INTERVAL"        env-default:"24h"`
	DefaultLookback     time.Duration `yaml:"default_lookback"     env:"RECONCILIATION_DEFAULT_LOOKBACK"     env-default:"24h"`
	EmergencyLookback   time.Duration `yaml:"emergency_lookback"   env:"RECONCILIATION_EMERGENCY_LOOKBACK"   env-default:"168h"`
	LockTTL             time.Duration `yaml:"lock_ttl"             env:"RECONCILIATION_LOCK_TTL"             env-default:"2h"`
	SampleLimit         int           `yaml:"sample_limit"         env:"RECONCILIATION_SAMPLE_LIMIT"         env-default:"20"`
	SchedulerEnabled    bool          `yaml:"scheduler_enabled"    env:"RECONCILIATION_SCHEDULER_ENABLED"    env-default:"true"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"https://*,http://localhost:3000"`
	MaxAge         int      `yaml:"max_age"         env:"CORS_MAX_AGE"         env-default:"300"`
}

// RedisAddr returns host:port for the Redis client.
func (c RedisConfig) RedisAddr() string {
	return c.Host + ":" + c.Port
}

// IsProduction reports whether the service runs with production settings.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}
