package collector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/sourcegraph/conc/pool"
)

const (
	infoProperties    = "Description,LoadState,ActiveState,SubState,UnitFileState"
	detailsProperties = infoProperties + ",MainPID,MemoryCurrent,CPUUsageNSec,ActiveEnterTimestamp"

	// systemctl show 的时间格式，例如 "Mon 2024-01-15 10:30:00 UTC"
	systemdTimeLayout = "Mon 2006-01-02 15:04:05 MST"
)

var (
	systemdVersionPattern = regexp.MustCompile(`systemd (\d+)`)
	unitNamePattern       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9@._:\\-]*$`)

	permissionMessages = []string{
		"permission denied",
		"not permitted",
		"authentication required",
		"access denied",
		"interactive authentication",
		"a password is required",
	}
)

// SystemdCollector 通过 systemctl 查询与控制系统服务，只处理配置中的服务
type SystemdCollector struct {
	allowed  []string
	sudo     bool
	executor *CommandExecutor
	now      func() time.Time
}

// NewSystemdCollector 创建 systemd 采集器，allowed 为允许查看和控制的服务名
func NewSystemdCollector(allowed []string, sudo bool, timeout time.Duration) *SystemdCollector {
	names := make([]string, 0, len(allowed))
	for _, name := range allowed {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return &SystemdCollector{
		allowed:  names,
		sudo:     sudo,
		executor: NewCommandExecutor(timeout),
		now:      time.Now,
	}
}

// Allowed 服务是否在允许列表中
func (c *SystemdCollector) Allowed(name string) bool {
	return slices.Contains(c.allowed, name)
}

// Status systemctl 是否可用以及 systemd 版本
func (c *SystemdCollector) Status(ctx context.Context) protocol.SystemdStatus {
	out, err := c.executor.Execute(ctx, "systemctl", "--version")
	if err != nil {
		return protocol.SystemdStatus{Available: false, Error: err.Error()}
	}
	version := "unknown"
	if m := systemdVersionPattern.FindStringSubmatch(out); m != nil {
		version = m[1]
	}
	return protocol.SystemdStatus{Available: true, Version: version}
}

// List 按配置顺序返回服务概要，查询失败的服务被跳过并汇总到 error 中
func (c *SystemdCollector) List(ctx context.Context) ([]protocol.ServiceInfo, error) {
	infos := make([]*protocol.ServiceInfo, len(c.allowed))
	errs := make([]error, len(c.allowed))

	p := pool.New().WithMaxGoroutines(4)
	for i, name := range c.allowed {
		p.Go(func() {
			props, err := c.show(ctx, name, infoProperties)
			if err != nil {
				errs[i] = err
				return
			}
			info := serviceInfo(name, props)
			infos[i] = &info
		})
	}
	p.Wait()

	services := make([]protocol.ServiceInfo, 0, len(infos))
	for _, info := range infos {
		if info != nil {
			services = append(services, *info)
		}
	}
	return services, errors.Join(errs...)
}

// Details 服务详情，服务未安装时返回 ErrNotFound
func (c *SystemdCollector) Details(ctx context.Context, name string) (*protocol.ServiceDetails, error) {
	if !unitNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	props, err := c.show(ctx, name, detailsProperties)
	if err != nil {
		return nil, err
	}
	if props["LoadState"] == "not-found" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	details := &protocol.ServiceDetails{ServiceInfo: serviceInfo(name, props)}
	if pid, err := strconv.Atoi(props["MainPID"]); err == nil && pid > 0 {
		details.MainPID = &pid
	}
	// 未开启内存统计时为 "[not set]" 或 uint64 最大值
	if mem, err := strconv.ParseUint(props["MemoryCurrent"], 10, 64); err == nil && mem > 0 && mem != ^uint64(0) {
		details.MemoryUsage = &mem
	}
	if ns, err := strconv.ParseUint(props["CPUUsageNSec"], 10, 64); err == nil && ns > 0 && ns != ^uint64(0) {
		seconds := float64(ns) / float64(time.Second)
		details.CPUUsage = &seconds
	}
	if startedAt, ok := parseSystemdTime(props["ActiveEnterTimestamp"]); ok {
		uptime := int64(c.now().Sub(startedAt) / time.Second)
		details.StartedAt = &startedAt
		details.Uptime = &uptime
	}
	return details, nil
}

// Start 启动服务
func (c *SystemdCollector) Start(ctx context.Context, name string) error {
	return c.control(ctx, "start", name)
}

// Stop 停止服务
func (c *SystemdCollector) Stop(ctx context.Context, name string) error {
	return c.control(ctx, "stop", name)
}

// Restart 重启服务
func (c *SystemdCollector) Restart(ctx context.Context, name string) error {
	return c.control(ctx, "restart", name)
}

func (c *SystemdCollector) control(ctx context.Context, action, name string) error {
	if !c.Allowed(name) {
		return fmt.Errorf("%s: %w", name, ErrNotAllowed)
	}

	command, args := "systemctl", []string{action, "--", name}
	if c.sudo {
		command, args = "sudo", append([]string{"-n", "systemctl"}, args...)
	}
	if _, err := c.executor.Execute(ctx, command, args...); err != nil {
		return controlError(name, err)
	}
	return nil
}

func (c *SystemdCollector) show(ctx context.Context, name, properties string) (map[string]string, error) {
	out, err := c.executor.Execute(ctx, "systemctl", "show", "--property="+properties, "--no-pager", "--", name)
	if err != nil {
		return nil, err
	}
	return parseProperties(out), nil
}

func serviceInfo(name string, props map[string]string) protocol.ServiceInfo {
	return protocol.ServiceInfo{
		Name:          name,
		Description:   orDefault(props["Description"], name),
		LoadState:     orDefault(props["LoadState"], "not-found"),
		ActiveState:   orDefault(props["ActiveState"], "inactive"),
		SubState:      orDefault(props["SubState"], "unknown"),
		UnitFileState: orDefault(props["UnitFileState"], "disabled"),
	}
}

// controlError 将 systemctl 的错误输出归类
func controlError(name string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, m := range permissionMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%s: %w: %v", name, ErrPermissionDenied, err)
		}
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "not loaded") {
		return fmt.Errorf("%s: %w: %v", name, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// parseProperties 解析 systemctl show 的 key=value 输出，value 中可以包含 "="
func parseProperties(out string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		props[key] = strings.TrimSpace(value)
	}
	return props
}

func parseSystemdTime(value string) (time.Time, bool) {
	if value == "" || value == "n/a" {
		return time.Time{}, false
	}
	t, err := time.Parse(systemdTimeLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
