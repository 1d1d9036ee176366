package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay 超时杀掉进程后等待输出管道关闭的时间
const waitDelay = 500 * time.Millisecond

// runFunc 执行命令并返回 stdout 与 stderr
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// CommandExecutor 命令执行器，每次执行都受 timeout 限制
type CommandExecutor struct {
	timeout time.Duration
	run     runFunc
}

// NewCommandExecutor 创建命令执行器
func NewCommandExecutor(timeout time.Duration) *CommandExecutor {
	return &CommandExecutor{
		timeout: timeout,
		run:     runCommand,
	}
}

// Execute 执行命令，失败时 error 中带上 stderr
func (ce *CommandExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.timeout)
	defer cancel()

	stdout, stderr, err := ce.run(ctx, name, args...)
	if err != nil {
		// 检查是否超时
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("命令执行超时(%v): %s: %w", ce.timeout, name, ctx.Err())
		}
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return string(stdout), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return string(stdout), fmt.Errorf("%s: %w", name, err)
	}
	return string(stdout), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
