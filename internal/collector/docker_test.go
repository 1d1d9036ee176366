package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/system"
	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	summaries  []container.Summary
	listErr    error
	stats      map[string]string
	started    []string
	stopped    []string
	restarted  []string
	controlErr error
}

func (f *fakeDocker) Ping(ctx context.Context) (types.Ping, error) { return types.Ping{}, f.listErr }

func (f *fakeDocker) Info(ctx context.Context) (system.Info, error) {
	if f.listErr != nil {
		return system.Info{}, f.listErr
	}
	return system.Info{Containers: 3, ContainersRunning: 2, ContainersStopped: 1}, nil
}

func (f *fakeDocker) ServerVersion(ctx context.Context) (types.Version, error) {
	return types.Version{Version: "28.5.2"}, nil
}

func (f *fakeDocker) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	return f.summaries, f.listErr
}

func (f *fakeDocker) ContainerStats(ctx context.Context, id string, stream bool) (container.StatsResponseReader, error) {
	body, ok := f.stats[id]
	if !ok {
		return container.StatsResponseReader{}, errors.New("boom")
	}
	return container.StatsResponseReader{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, id string, options container.StartOptions) error {
	f.started = append(f.started, id)
	return f.controlErr
}

func (f *fakeDocker) ContainerStop(ctx context.Context, id string, options container.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return f.controlErr
}

func (f *fakeDocker) ContainerRestart(ctx context.Context, id string, options container.StopOptions) error {
	f.restarted = append(f.restarted, id)
	return f.controlErr
}

func (f *fakeDocker) Close() error { return nil }

const sampleStats = `{
	"read": "2026-10-17T08:00:00Z",
	"cpu_stats": {"cpu_usage": {"total_usage": 400000000}, "system_cpu_usage": 20000000000, "online_cpus": 4},
	"precpu_stats": {"cpu_usage": {"total_usage": 300000000}, "system_cpu_usage": 18000000000},
	"memory_stats": {"usage": 104857600, "limit": 2147483648},
	"networks": {"eth0": {"rx_bytes": 1000, "tx_bytes": 200}, "eth1": {"rx_bytes": 24, "tx_bytes": 6}}
}`

func TestDockerListRunning(t *testing.T) {
	fake := &fakeDocker{summaries: []container.Summary{
		{ID: "0123456789abcdef0123", Names: []string{"/jellyfin"}, Image: "jellyfin/jellyfin", State: container.StateRunning, Status: "Up 2 hours"},
		{ID: "short", State: container.StateRunning},
	}}
	c := &DockerCollector{cli: fake}

	refs, err := c.ListRunning(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "0123456789ab", refs[0].ID)
	assert.Equal(t, "jellyfin", refs[0].Name)
	assert.Equal(t, "running", refs[0].State)
	assert.Equal(t, "short", refs[1].ID)
	assert.Equal(t, "unknown", refs[1].Name)
}

func TestDockerStats(t *testing.T) {
	fake := &fakeDocker{stats: map[string]string{"0123456789ab": sampleStats}}
	c := &DockerCollector{cli: fake}

	snapshot, err := c.Stats(context.Background(), protocol.ContainerRef{ID: "0123456789ab", Name: "jellyfin", State: "running"})
	require.NoError(t, err)

	// (1e8 / 2e9) * 4 * 100 = 20
	assert.Equal(t, 20.0, snapshot.CPUPercent)
	assert.Equal(t, uint64(104857600), snapshot.MemoryUsed)
	assert.Equal(t, uint64(2147483648), snapshot.MemoryLimit)
	assert.Equal(t, uint64(1024), snapshot.NetworkRx)
	assert.Equal(t, uint64(206), snapshot.NetworkTx)
	assert.Equal(t, "jellyfin", snapshot.ContainerName)
	assert.Equal(t, "running", snapshot.Status)
}

func TestDockerStatsEmptyIsUnavailable(t *testing.T) {
	fake := &fakeDocker{stats: map[string]string{"gone": `{}`, "eof": ``}}
	c := &DockerCollector{cli: fake}

	_, err := c.Stats(context.Background(), protocol.ContainerRef{ID: "gone"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.Stats(context.Background(), protocol.ContainerRef{ID: "eof"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.Stats(context.Background(), protocol.ContainerRef{ID: "missing"})
	assert.Error(t, err)
}

func TestCPUPercentEdgeCases(t *testing.T) {
	var stats container.StatsResponse
	assert.Equal(t, 0.0, cpuPercent(stats))

	stats.CPUStats.CPUUsage.TotalUsage = 200
	stats.CPUStats.SystemUsage = 1000
	stats.CPUStats.CPUUsage.PercpuUsage = []uint64{100, 100}
	// online_cpus 缺失时按 percpu 数量计算
	assert.Equal(t, 40.0, cpuPercent(stats))
}

func TestDockerStatusAndControl(t *testing.T) {
	fake := &fakeDocker{}
	c := &DockerCollector{cli: fake}

	status := c.Status(context.Background())
	assert.True(t, status.Available)
	assert.Equal(t, "28.5.2", status.Version)
	assert.Equal(t, 2, status.Running)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx, "a"))
	require.NoError(t, c.Stop(ctx, "b"))
	require.NoError(t, c.Restart(ctx, "c"))
	assert.Equal(t, []string{"a"}, fake.started)
	assert.Equal(t, []string{"b"}, fake.stopped)
	assert.Equal(t, []string{"c"}, fake.restarted)

	fake.listErr = errors.New("daemon down")
	assert.False(t, c.Available(ctx))
	assert.False(t, c.Status(ctx).Available)
}

func TestDockerControlNotFound(t *testing.T) {
	fake := &fakeDocker{controlErr: fmt.Errorf("No such container: ghost: %w", cerrdefs.ErrNotFound)}
	c := &DockerCollector{cli: fake}

	err := c.Restart(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	fake.controlErr = errors.New("permission denied")
	err = c.Stop(context.Background(), "web")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
