package app

import (
	"testing"

	"fieldops/portal-sync/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"https://*", "http://localhost:3000", "https://*.example.com", ""})
	assert.Equal(t, []string{"*", "localhost:3000", "*.example.com"}, got)
}

func TestDependencies_NoQueueWithoutRedis(t *testing.T) {
	a := &App{Config: &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}}}

	deps := a.Dependencies()

	assert.Nil(t, deps.Queue)
	assert.Contains(t, deps.Checks, "postgres")
	assert.NotContains(t, deps.Checks, "redis")
	assert.Equal(t, []string{"localhost:3000"}, deps.RealtimeOrigins)
}
