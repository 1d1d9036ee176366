package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dushixiang/homedash/internal/collector"
	"github.com/dushixiang/homedash/internal/config"
	"github.com/dushixiang/homedash/internal/database"
	"github.com/dushixiang/homedash/internal/handler"
	"github.com/dushixiang/homedash/internal/metric"
	"github.com/dushixiang/homedash/internal/migrate"
	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/dushixiang/homedash/internal/service"
	"github.com/dushixiang/homedash/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubScheduler struct{ running bool }

func (s *stubScheduler) EnsureStarted(ctx context.Context) bool {
	s.running = true
	return true
}

func (s *stubScheduler) Status() metric.SchedulerStatus {
	return metric.SchedulerStatus{Running: s.running}
}

type stubSources struct{}

func (stubSources) Sources(ctx context.Context) []service.SourceStatus { return nil }

type stubSystem struct{}

func (stubSystem) Available(ctx context.Context) bool { return true }

func (stubSystem) Collect(ctx context.Context) (*protocol.SystemSnapshot, error) {
	return &protocol.SystemSnapshot{Timestamp: time.Now(), CPUUsage: 5}, nil
}

type stubDocker struct{}

func (stubDocker) Status(ctx context.Context) collector.DockerStatus { return collector.DockerStatus{} }

func (stubDocker) List(ctx context.Context, all bool) ([]protocol.ContainerRef, error) {
	return nil, nil
}

func (stubDocker) Stats(ctx context.Context, ref protocol.ContainerRef) (*protocol.ContainerSnapshot, error) {
	return nil, collector.ErrUnavailable
}

func (stubDocker) Start(ctx context.Context, id string) error { return nil }

func (stubDocker) Stop(ctx context.Context, id string) error { return nil }

func (stubDocker) Restart(ctx context.Context, id string) error { return nil }

type stubModelServer struct{}

func (stubModelServer) Available(ctx context.Context) bool { return false }

func (stubModelServer) Status(ctx context.Context) (*protocol.ModelServerSnapshot, error) {
	return protocol.UnavailableModelServer(time.Now(), "refused"), nil
}

type stubSystemd struct{}

func (stubSystemd) Status(ctx context.Context) protocol.SystemdStatus {
	return protocol.SystemdStatus{Available: false, Error: "systemctl not found"}
}

func (stubSystemd) List(ctx context.Context) ([]protocol.ServiceInfo, error) { return nil, nil }

func (stubSystemd) Details(ctx context.Context, name string) (*protocol.ServiceDetails, error) {
	return nil, collector.ErrNotFound
}

func (stubSystemd) Start(ctx context.Context, name string) error { return nil }

func (stubSystemd) Stop(ctx context.Context, name string) error { return nil }

func (stubSystemd) Restart(ctx context.Context, name string) error {
	return collector.ErrNotAllowed
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DatabaseConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "homedash.db")}
	db, err := database.Open(context.Background(), cfg, afero.NewOsFs(), logger)
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(logger, db))
	t.Cleanup(func() { _ = database.Close(db) })

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	metricService := service.NewMetricService(logger, db, 168*time.Hour, metrics)

	return New(logger, "127.0.0.1:0", registry, Handlers{
		Internal: handler.NewInternalHandler(logger, &stubScheduler{}, stubSources{}, func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}),
		Metric:  handler.NewMetricHandler(logger, metricService, stubSystem{}),
		Docker:  handler.NewDockerHandler(logger, stubDocker{}),
		Ollama:  handler.NewOllamaHandler(logger, stubModelServer{}),
		Service: handler.NewServiceHandler(logger, stubSystemd{}),
	})
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/api/internal/init", http.StatusOK},
		{"/api/internal/scheduler", http.StatusOK},
		{"/api/internal/sources", http.StatusOK},
		{"/api/metrics/system", http.StatusOK},
		{"/api/metrics/system/history", http.StatusOK},
		{"/api/metrics/system/history?hours=721", http.StatusBadRequest},
		{"/api/metrics/system/series", http.StatusOK},
		{"/api/metrics/latest", http.StatusOK},
		{"/api/metrics/stats", http.StatusOK},
		{"/api/docker/status", http.StatusOK},
		{"/api/docker/containers", http.StatusOK},
		{"/api/docker/containers/history", http.StatusOK},
		{"/api/docker/containers/abc/stats", http.StatusNotFound},
		{"/api/ollama/status", http.StatusOK},
		{"/api/ollama/models", http.StatusServiceUnavailable},
		{"/api/ollama/history", http.StatusOK},
		{"/api/services", http.StatusOK},
		{"/api/services/nginx", http.StatusNotFound},
		{"/api/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(s, tt.path)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestControlRoutesArePost(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/docker/containers/web/restart", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, get(s, "/api/docker/containers/web/restart").Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/services/nginx/start", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/services/sshd/restart", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, get(s, "/api/services/nginx/stop").Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "homedash_scheduler_running")
}

func TestRunStopsWithContext(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("服务未在超时前退出")
	}
}

func TestRunReportsListenError(t *testing.T) {
	s := newTestServer(t)
	s.addr = "256.0.0.1:99999"

	err := s.Run(context.Background())
	assert.Error(t, err)
}
