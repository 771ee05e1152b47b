package app

import (
	"context"
	"fmt"
	"strings"

	"fieldops/portal-sync/internal/api"
	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/db"
	"fieldops/portal-sync/internal/db/repositories"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/realtime"
	"fieldops/portal-sync/internal/services"
	"fieldops/portal-sync/internal/upstream"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	gormlib "gorm.io/gorm"
)

// App owns every long-lived component. It is built once per process and
// passed down explicitly.
type App struct {
	Config  *config.Config
	Metrics *metrics.MetricsRegistry

	ORM   *gormlib.DB
	SQL   *sqlx.DB
	Redis *redis.Client // nil when Redis is disabled

	Cache       common.CacheInterface
	Queue       *common.RedisQueueService // nil when Redis is disabled
	Hub         *realtime.Hub
	Relay       *realtime.RedisBroadcaster // nil when Redis is disabled
	Consistency *repositories.ConsistencyRepo

	Upstream       *upstream.Client
	Sync           *services.SyncService
	Webhooks       *services.WebhookProcessor
	Reconciliation *services.ReconciliationService
}

// New connects to the stores and wires the services
func New(ctx context.Context, cfg *config.Config, m *metrics.MetricsRegistry) (*App, error) {
	a := &App{Config: cfg, Metrics: m, Hub: realtime.NewHub(64)}

	orm, err := db.InitPostgresORM(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.ORM = orm
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(orm); err != nil {
			return nil, err
		}
		logging.Info("Database schema migrated")
	}

	sqlDB, err := db.InitPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlx: %w", err)
	}
	a.SQL = sqlDB
	a.Consistency = repositories.NewConsistencyRepo(sqlDB)

	var (
		broadcaster realtime.Broadcaster = a.Hub
		locker      common.RunLocker
	)
	if cfg.Redis.Enabled {
		client, err := common.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		a.Cache = common.NewRedisCacheService(client, cfg.Redis.KeyPrefix)
		a.Queue = common.NewRedisQueueService(client, cfg.Webhook.StreamName, cfg.Webhook.ConsumerGroup)
		a.Relay = realtime.NewRedisBroadcaster(client, cfg.Redis.KeyPrefix, a.Hub)
		broadcaster = a.Relay
		locker = common.NewRedisLocker(client, cfg.Redis.KeyPrefix)
		logging.Info("Redis enabled: shared cache, webhook queue, run lock and realtime relay")
	} else {
		a.Cache = common.NewCacheService(cfg.Upstream.CacheTTL, cfg.Upstream.CacheCleanup)
		logging.Info("Redis disabled: using in-memory cache and in-process webhook processing")
	}

	client, err := upstream.NewClient(upstream.Options{
		BaseURL:        cfg.Upstream.BaseURL,
		APIKey:         cfg.Upstream.APIKey,
		BearerToken:    cfg.Upstream.BearerToken,
		Timeout:        cfg.Upstream.Timeout,
		MaxRetries:     cfg.Upstream.MaxRetries,
		RetryBaseDelay: cfg.Upstream.RetryBaseDelay,
		CacheTTL:       cfg.Upstream.CacheTTL,
		PageSize:       cfg.Upstream.PageSize,
	}, upstream.NewHeaderRateLimiter(cfg.Upstream.RequestsPerSecond, m), a.Cache, m)
	if err != nil {
		return nil, err
	}
	a.Upstream = client

	repos := services.NewSyncRepos(orm)
	a.Sync = services.NewSyncService(client, repos, m)

	a.Webhooks, err = services.NewWebhookProcessor(
		repositories.NewWebhookEventRepo(orm),
		a.Sync,
		repos.Quotes,
		repos.Audit,
		broadcaster,
		m,
		services.WebhookOptions{
			MaxRetries:       cfg.Webhook.MaxRetries,
			RetryBaseDelay:   cfg.Webhook.RetryBaseDelay,
			NotFoundTerminal: cfg.Webhook.NotFoundTerminal,
		},
	)
	if err != nil {
		return nil, err
	}

	a.Reconciliation = services.NewReconciliationService(
		a.Sync,
		repositories.NewReconciliationRunRepo(orm),
		repositories.NewSystemAlertRepo(orm),
		repos.Audit,
		a.Consistency,
		locker,
		m,
		services.ReconciliationOptions{
			IncrementalLookback: cfg.Reconciliation.DefaultLookback,
			EmergencyLookback:   cfg.Reconciliation.EmergencyLookback,
			LockTTL:             cfg.Reconciliation.LockTTL,
			SampleLimit:         cfg.Reconciliation.SampleLimit,
		},
	)

	return a, nil
}

// Dependencies exposes the components the HTTP handlers need
func (a *App) Dependencies() *api.Dependencies {
	checks := map[string]api.Pinger{"postgres": a.Consistency}
	if a.Redis != nil {
		checks["redis"] = redisPinger{a.Redis}
	}

	deps := &api.Dependencies{
		Reconciliation:  a.Reconciliation,
		Webhooks:        a.Webhooks,
		Checks:          checks,
		Hub:             a.Hub,
		RealtimeOrigins: originPatterns(a.Config.CORS.AllowedOrigins),
	}
	// a typed nil would make the handler think a queue exists
	if a.Queue != nil {
		deps.Queue = a.Queue
	}
	return deps
}

// Close waits for background work and releases connections
func (a *App) Close() {
	if a.Reconciliation != nil {
		a.Reconciliation.Wait()
	}
	if a.Webhooks != nil {
		a.Webhooks.Wait()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.SQL != nil {
		_ = a.SQL.Close()
	}
	if a.ORM != nil {
		if sqlDB, err := a.ORM.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// originPatterns turns CORS origins into the host patterns the websocket
// upgrade checks, e.g. "https://*.example.com" -> "*.example.com"
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}
