package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSystemctl struct {
	mu      sync.Mutex
	calls   [][]string
	outputs map[string]string // 最后一个参数 -> stdout
	errs    map[string]error
	stderr  string
}

func (f *fakeSystemctl) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	key := args[len(args)-1]
	if err := f.errs[key]; err != nil {
		return nil, []byte(f.stderr), err
	}
	return []byte(f.outputs[key]), nil, nil
}

func newTestSystemd(f *fakeSystemctl, allowed []string, sudo bool) *SystemdCollector {
	c := NewSystemdCollector(allowed, sudo, time.Second)
	c.executor.run = f.run
	c.now = func() time.Time { return time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC) }
	return c
}

const nginxShow = `Description=A high performance web server and a reverse proxy server
LoadState=loaded
ActiveState=active
SubState=running
UnitFileState=enabled
`

func TestSystemdStatus(t *testing.T) {
	f := &fakeSystemctl{outputs: map[string]string{"--version": "systemd 252 (252.22-1~deb12u1)\n+PAM +AUDIT +SELINUX\n"}}
	c := newTestSystemd(f, nil, false)

	status := c.Status(context.Background())
	assert.True(t, status.Available)
	assert.Equal(t, "252", status.Version)

	f.errs = map[string]error{"--version": errors.New("exec: \"systemctl\": executable file not found in $PATH")}
	status = c.Status(context.Background())
	assert.False(t, status.Available)
	assert.NotEmpty(t, status.Error)
}

func TestSystemdListKeepsConfiguredOrder(t *testing.T) {
	f := &fakeSystemctl{
		outputs: map[string]string{
			"nginx": nginxShow,
			"redis": "LoadState=not-found\nActiveState=inactive\n",
		},
		errs: map[string]error{"ollama": errors.New("exit status 1")},
	}
	c := newTestSystemd(f, []string{"nginx", " ollama", "", "redis", "nginx"}, false)

	services, err := c.List(context.Background())

	assert.Error(t, err, "查询失败的服务汇总到 error")
	require.Len(t, services, 2)
	assert.Equal(t, "nginx", services[0].Name)
	assert.Equal(t, "active", services[0].ActiveState)
	assert.Equal(t, "enabled", services[0].UnitFileState)
	assert.Equal(t, "redis", services[1].Name)
	assert.Equal(t, "redis", services[1].Description)
	assert.Equal(t, "not-found", services[1].LoadState)
	assert.Equal(t, "unknown", services[1].SubState)
	assert.Equal(t, "disabled", services[1].UnitFileState)
	assert.Len(t, f.calls, 3)
	assert.Contains(t, f.calls, []string{"systemctl", "show", "--property=" + infoProperties, "--no-pager", "--", "nginx"})
}

func TestSystemdDetails(t *testing.T) {
	f := &fakeSystemctl{outputs: map[string]string{
		"nginx": nginxShow + "MainPID=1234\nMemoryCurrent=52428800\nCPUUsageNSec=1500000000\nActiveEnterTimestamp=Mon 2024-01-15 10:30:00 UTC\n",
		"cron":  "Description=Regular background program processing daemon\nLoadState=loaded\nActiveState=inactive\nMainPID=0\nMemoryCurrent=[not set]\nCPUUsageNSec=18446744073709551615\nActiveEnterTimestamp=n/a\n",
	}}
	c := newTestSystemd(f, nil, false)

	details, err := c.Details(context.Background(), "nginx")
	require.NoError(t, err)
	assert.Equal(t, "A high performance web server and a reverse proxy server", details.Description)
	require.NotNil(t, details.MainPID)
	assert.Equal(t, 1234, *details.MainPID)
	require.NotNil(t, details.MemoryUsage)
	assert.Equal(t, uint64(52428800), *details.MemoryUsage)
	require.NotNil(t, details.CPUUsage)
	assert.InDelta(t, 1.5, *details.CPUUsage, 1e-9)
	require.NotNil(t, details.Uptime)
	assert.Equal(t, int64(3600), *details.Uptime)

	details, err = c.Details(context.Background(), "cron")
	require.NoError(t, err)
	assert.Nil(t, details.MainPID)
	assert.Nil(t, details.MemoryUsage)
	assert.Nil(t, details.CPUUsage)
	assert.Nil(t, details.StartedAt)
	assert.Nil(t, details.Uptime)
}

func TestSystemdDetailsNotFound(t *testing.T) {
	f := &fakeSystemctl{outputs: map[string]string{"ghost": "LoadState=not-found\n"}}
	c := newTestSystemd(f, nil, false)

	_, err := c.Details(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Details(context.Background(), "--host=evil")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, f.calls, 1, "非法服务名不会执行命令")
}

func TestSystemdControl(t *testing.T) {
	f := &fakeSystemctl{}
	c := newTestSystemd(f, []string{"nginx"}, false)

	require.NoError(t, c.Restart(context.Background(), "nginx"))
	assert.Equal(t, []string{"systemctl", "restart", "--", "nginx"}, f.calls[0])

	sudo := newTestSystemd(f, []string{"nginx"}, true)
	require.NoError(t, sudo.Start(context.Background(), "nginx"))
	assert.Equal(t, []string{"sudo", "-n", "systemctl", "start", "--", "nginx"}, f.calls[1])
}

func TestSystemdControlRejectsUnlistedService(t *testing.T) {
	f := &fakeSystemctl{}
	c := newTestSystemd(f, []string{"nginx"}, false)

	err := c.Stop(context.Background(), "sshd")
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Empty(t, f.calls)
}

func TestSystemdControlErrors(t *testing.T) {
	tests := []struct {
		stderr string
		want   error
	}{
		{"Failed to stop nginx.service: Access denied", ErrPermissionDenied},
		{"Failed to stop nginx.service: Interactive authentication required.", ErrPermissionDenied},
		{"sudo: a password is required", ErrPermissionDenied},
		{"Failed to stop nginx.service: Unit nginx.service not loaded.", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.stderr, func(t *testing.T) {
			f := &fakeSystemctl{errs: map[string]error{"nginx": errors.New("exit status 1")}, stderr: tt.stderr}
			c := newTestSystemd(f, []string{"nginx"}, false)

			assert.ErrorIs(t, c.Stop(context.Background(), "nginx"), tt.want)
		})
	}

	f := &fakeSystemctl{errs: map[string]error{"nginx": errors.New("exit status 5")}}
	err := newTestSystemd(f, []string{"nginx"}, false).Stop(context.Background(), "nginx")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestParseProperties(t *testing.T) {
	props := parseProperties("Description=x=y\n\nLoadState = loaded \nbroken line\n")
	assert.Equal(t, map[string]string{"Description": "x=y", "LoadState": "loaded"}, props)
}
