package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	"github.com/dushixiang/homedash/internal/protocol"
)

const shortIDLength = 12

// dockerAPI DockerCollector 用到的 docker 客户端方法
type dockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	Info(ctx context.Context) (system.Info, error)
	ServerVersion(ctx context.Context) (types.Version, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	Close() error
}

// DockerStatus docker 守护进程状态
type DockerStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Total     int    `json:"total"`
	Running   int    `json:"running"`
	Paused    int    `json:"paused"`
	Stopped   int    `json:"stopped"`
	Error     string `json:"error,omitempty"`
}

// DockerCollector 容器运行时采集器
type DockerCollector struct {
	cli dockerAPI
}

// NewDockerCollector 连接 host 上的 docker 守护进程（unix:// 或 tcp://），连接是惰性的
func NewDockerCollector(host string) (*DockerCollector, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 docker 客户端失败: %w", err)
	}
	return &DockerCollector{cli: cli}, nil
}

// Close 关闭客户端连接
func (c *DockerCollector) Close() error {
	return c.cli.Close()
}

// Available 守护进程是否可达
func (c *DockerCollector) Available(ctx context.Context) bool {
	_, err := c.cli.Ping(ctx)
	return err == nil
}

// Status 获取守护进程版本与容器数量
func (c *DockerCollector) Status(ctx context.Context) DockerStatus {
	info, err := c.cli.Info(ctx)
	if err != nil {
		return DockerStatus{Available: false, Error: err.Error()}
	}
	status := DockerStatus{
		Available: true,
		Total:     info.Containers,
		Running:   info.ContainersRunning,
		Paused:    info.ContainersPaused,
		Stopped:   info.ContainersStopped,
	}
	if version, err := c.cli.ServerVersion(ctx); err == nil {
		status.Version = version.Version
	}
	return status
}

// List 列出容器，all 为 true 时包含已停止的容器
func (c *DockerCollector) List(ctx context.Context, all bool) ([]protocol.ContainerRef, error) {
	summaries, err := c.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, err
	}
	refs := make([]protocol.ContainerRef, 0, len(summaries))
	for _, s := range summaries {
		refs = append(refs, toContainerRef(s))
	}
	return refs, nil
}

// ListRunning 列出运行中的容器
func (c *DockerCollector) ListRunning(ctx context.Context) ([]protocol.ContainerRef, error) {
	return c.List(ctx, false)
}

// Stats 采集单个容器的资源使用，容器已退出或无统计数据时返回 ErrUnavailable
func (c *DockerCollector) Stats(ctx context.Context, ref protocol.ContainerRef) (*protocol.ContainerSnapshot, error) {
	resp, err := c.cli.ContainerStats(ctx, ref.ID, false)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("%s: %w", ref.ID, ErrUnavailable)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", ref.ID, ErrUnavailable)
		}
		return nil, fmt.Errorf("解析容器统计数据失败: %w", err)
	}
	if stats.Read.IsZero() && stats.CPUStats.CPUUsage.TotalUsage == 0 && stats.MemoryStats.Usage == 0 {
		// 已停止的容器会返回空统计
		return nil, fmt.Errorf("%s: %w", ref.ID, ErrUnavailable)
	}

	rx, tx := networkTotals(stats.Networks)
	memoryLimit := stats.MemoryStats.Limit
	if memoryLimit == 0 {
		memoryLimit = 1
	}

	return &protocol.ContainerSnapshot{
		Timestamp:     time.Now(),
		ContainerID:   ref.ID,
		ContainerName: ref.Name,
		Status:        ref.State,
		CPUPercent:    cpuPercent(stats),
		MemoryUsed:    stats.MemoryStats.Usage,
		MemoryLimit:   memoryLimit,
		NetworkRx:     rx,
		NetworkTx:     tx,
	}, nil
}

// Start 启动容器
func (c *DockerCollector) Start(ctx context.Context, id string) error {
	return control(id, c.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

// Stop 停止容器
func (c *DockerCollector) Stop(ctx context.Context, id string) error {
	return control(id, c.cli.ContainerStop(ctx, id, container.StopOptions{}))
}

// Restart 重启容器
func (c *DockerCollector) Restart(ctx context.Context, id string) error {
	return control(id, c.cli.ContainerRestart(ctx, id, container.StopOptions{}))
}

func control(id string, err error) error {
	if err != nil && client.IsErrNotFound(err) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return err
}

func toContainerRef(s container.Summary) protocol.ContainerRef {
	name := "unknown"
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	return protocol.ContainerRef{
		ID:     shortID(s.ID),
		Name:   name,
		Image:  s.Image,
		State:  s.State,
		Status: s.Status,
	}
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

// cpuPercent 与 docker stats 相同的算法：(容器 CPU 增量 / 系统 CPU 增量) * 核数 * 100
func cpuPercent(stats container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 || cpuDelta < 0 {
		return 0
	}
	onlineCPUs := float64(stats.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}
	return round(cpuDelta/systemDelta*onlineCPUs*100, 2)
}

func networkTotals(networks map[string]container.NetworkStats) (rx, tx uint64) {
	for _, n := range networks {
		rx += n.RxBytes
		tx += n.TxBytes
	}
	return rx, tx
}
