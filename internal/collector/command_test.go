package collector

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh 不可用")
	}
}

func TestCommandExecutorOutput(t *testing.T) {
	requireShell(t)
	executor := NewCommandExecutor(time.Second)

	out, err := executor.Execute(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestCommandExecutorIncludesStderr(t *testing.T) {
	requireShell(t)
	executor := NewCommandExecutor(time.Second)

	_, err := executor.Execute(context.Background(), "sh", "-c", "echo 'Access denied' >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestCommandExecutorTimeout(t *testing.T) {
	requireShell(t)
	executor := NewCommandExecutor(50 * time.Millisecond)

	start := time.Now()
	_, err := executor.Execute(context.Background(), "sh", "-c", "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}
