package constants

type (
	APIStatus   string
	CachePrefix string
)

const (
	APIStatusOk    APIStatus = "ok"
	APIStatusError APIStatus = "error"

	CachePrefixUpstream CachePrefix = "UPSTREAM_"
)

// Actor recorded on audit entries written by the sync core itself
const (
	ActorSystem    = "system"
	ActorScheduler = "scheduler"
	ActorWebhook   = "webhook"
	ActorAPI       = "api"
)
