package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, handlers map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range handlers {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaStatusRunning(t *testing.T) {
	srv := newOllamaServer(t, map[string]string{
		"/api/version": `{"version":"0.5.7"}`,
		"/api/tags": `{"models":[
			{"name":"llama3:8b","size":4661224676,"digest":"abc","details":{"family":"llama","parameter_size":"8B"}},
			{"name":"qwen2:7b","size":4431400262,"digest":"def","details":{}}
		]}`,
		"/api/ps": `{"models":[{"name":"llama3:8b","model":"llama3:8b","size_vram":5137025024}]}`,
	})

	c := NewOllamaCollector(srv.URL+"/", time.Second)
	assert.True(t, c.Available(context.Background()))

	snapshot, err := c.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, snapshot.Running)
	assert.Equal(t, "0.5.7", snapshot.Version)
	assert.Equal(t, 2, snapshot.ModelCount)
	assert.Equal(t, 1, snapshot.ActiveInferences)
	assert.Equal(t, "llama", snapshot.Models[0].Family)
	assert.Equal(t, "unknown", snapshot.Models[1].Family)
	assert.Equal(t, int64(5137025024), snapshot.RunningModels[0].SizeVRAM)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestOllamaStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOllamaCollector(url, 200*time.Millisecond)
	assert.False(t, c.Available(context.Background()))

	snapshot, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.Running)
	assert.Equal(t, 0, snapshot.ModelCount)
	assert.Equal(t, 0, snapshot.ActiveInferences)
	assert.NotEmpty(t, snapshot.Error)
}

func TestOllamaStatusTimesOut(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	c := NewOllamaCollector(srv.URL, 100*time.Millisecond)
	start := time.Now()
	snapshot, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.Running)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOllamaListFailureCountsAsEmpty(t *testing.T) {
	srv := newOllamaServer(t, map[string]string{
		"/api/version": `{"version":"0.5.7"}`,
		"/api/tags":    `not json`,
		"/api/ps":      `{"models":[]}`,
	})

	snapshot, err := NewOllamaCollector(srv.URL, time.Second).Status(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.Running)
	assert.Equal(t, 0, snapshot.ModelCount)
	assert.Equal(t, 0, snapshot.ActiveInferences)
}
