package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dushixiang/homedash/internal/config"
	"github.com/dushixiang/homedash/internal/database"
	"github.com/dushixiang/homedash/internal/migrate"
	"github.com/dushixiang/homedash/internal/service"
	"github.com/dushixiang/homedash/internal/telemetry"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler
	return e
}

func newTestMetricService(t *testing.T) *service.MetricService {
	t.Helper()
	cfg := config.DatabaseConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "homedash.db")}
	db, err := database.Open(context.Background(), cfg, afero.NewOsFs(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(zap.NewNop(), db))
	t.Cleanup(func() { _ = database.Close(db) })
	return service.NewMetricService(zap.NewNop(), db, 168*time.Hour, telemetry.NewNopMetrics())
}

func perform(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestErrorHandlerWrapsUnknownRoutes(t *testing.T) {
	e := newTestEcho()
	e.GET("/api/metrics/latest", func(c echo.Context) error { return ok(c, nil) })

	rec, body := perform(t, e, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, body.Success)
	require.NotEmpty(t, body.Error)
	require.False(t, body.Timestamp.IsZero())
}
