package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fieldops/portal-sync/internal/api"
	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/models/gorm"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWebhooks struct {
	api.WebhookService
	ingested int
}

func (s *stubWebhooks) Ingest(_ context.Context, eventID string, _ dtos.WebhookPayload) (dtos.IngestResult, error) {
	s.ingested++
	return dtos.IngestResult{EventID: eventID, Duplicate: true}, nil
}

type stubReconciler struct {
	api.Reconciler
}

func (stubReconciler) Start(_ context.Context, runType constants.RunType, actor string) (*gorm.ReconciliationRun, error) {
	return &gorm.ReconciliationRun{ID: "run-1", Type: runType, Status: constants.RunStatusRunning, TriggeredBy: actor}, nil
}

func newTestRouter(t *testing.T, webhooks api.WebhookService) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Webhook: config.WebhookConfig{IngressRatePerSec: 0.001, IngressBurst: 1},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}, MaxAge: 300},
	}
	handlers := api.NewHandlers(&api.Dependencies{
		Reconciliation: stubReconciler{},
		Webhooks:       webhooks,
		Checks:         map[string]api.Pinger{},
		UpSince:        time.Now(),
	})
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return RegisterRoutes(cfg, handlers, metrics.NewMetricsRegistryWith(prometheus.NewRegistry()), metricsHandler)
}

func TestRouter_ServesOperationalEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubWebhooks{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthCheck", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestRouter_StartReconciliation(t *testing.T) {
	r := newTestRouter(t, &stubWebhooks{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation", strings.NewReader(`{"type":"emergency"}`)))

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), `"type":"emergency"`)
}

func TestRouter_WebhookIngressIsRateLimited(t *testing.T) {
	webhooks := &stubWebhooks{}
	r := newTestRouter(t, webhooks)

	body := `{"eventId":"evt-1","payload":{"object_type":"Job","event_type":"updated","object_uuid":"job-1"}}`
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/upstream", strings.NewReader(body))
		req.RemoteAddr = "203.0.113.7:5000"
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, webhooks.ingested)
}
