package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

// cpuSensorKeys 常见的 CPU 温度传感器，按优先级排列
var cpuSensorKeys = []string{
	"coretemp_package_id_0",
	"k10temp_tctl",
	"k10temp_tdie",
	"cpu_thermal",
	"soc_thermal",
	"coretemp",
	"k10temp",
	"cpu",
}

// SystemCollector 系统资源采集器
type SystemCollector struct {
	diskPath string
}

// NewSystemCollector 创建系统资源采集器，diskPath 为统计磁盘使用率的挂载点
func NewSystemCollector(diskPath string) *SystemCollector {
	return &SystemCollector{diskPath: diskPath}
}

// Available 能读取内存信息即认为可用
func (c *SystemCollector) Available(ctx context.Context) bool {
	_, err := mem.VirtualMemoryWithContext(ctx)
	return err == nil
}

// Collect 采集 CPU、温度、内存与磁盘
func (c *SystemCollector) Collect(ctx context.Context) (*protocol.SystemSnapshot, error) {
	// interval 为 0 时返回距上次调用的平均使用率，不阻塞
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("读取 CPU 使用率失败: %w", err)
	}
	var cpuUsage float64
	if len(cpuPercents) > 0 {
		cpuUsage = clampPercent(round(cpuPercents[0], 2))
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取内存信息失败: %w", err)
	}

	diskTotal, diskUsed, diskPercent, err := c.diskUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取磁盘信息失败: %w", err)
	}

	return &protocol.SystemSnapshot{
		Timestamp:      time.Now(),
		CPUUsage:       cpuUsage,
		CPUTemperature: c.cpuTemperature(ctx),
		MemoryTotal:    vm.Total,
		MemoryUsed:     vm.Used,
		MemoryPercent:  percent(vm.Used, vm.Total),
		DiskTotal:      diskTotal,
		DiskUsed:       diskUsed,
		DiskPercent:    diskPercent,
	}, nil
}

// diskUsage 优先统计配置的挂载点，失败时退回第一个分区
func (c *SystemCollector) diskUsage(ctx context.Context) (total, used uint64, pct float64, err error) {
	usage, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		partitions, pErr := disk.PartitionsWithContext(ctx, false)
		if pErr != nil || len(partitions) == 0 {
			return 0, 0, 0, err
		}
		usage, err = disk.UsageWithContext(ctx, partitions[0].Mountpoint)
		if err != nil {
			return 0, 0, 0, err
		}
	}
	return usage.Total, usage.Used, clampPercent(round(usage.UsedPercent, 2)), nil
}

// cpuTemperature 读取失败或没有 CPU 传感器时返回 nil
func (c *SystemCollector) cpuTemperature(ctx context.Context) *float64 {
	// 部分传感器读取失败时仍可能返回可用数据
	temps, _ := sensors.TemperaturesWithContext(ctx)
	return pickCPUTemperature(temps)
}

func pickCPUTemperature(temps []sensors.TemperatureStat) *float64 {
	for _, key := range cpuSensorKeys {
		for _, t := range temps {
			if t.Temperature <= 0 {
				continue
			}
			if strings.HasPrefix(strings.ToLower(t.SensorKey), key) {
				v := round(t.Temperature, 1)
				return &v
			}
		}
	}
	return nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
