package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dushixiang/homedash/internal/metric"
	"github.com/dushixiang/homedash/internal/models"
	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/dushixiang/homedash/internal/repo"
	"github.com/dushixiang/homedash/internal/telemetry"

	"github.com/go-orz/cache"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidSnapshot 快照数值超出合法范围
var ErrInvalidSnapshot = errors.New("invalid snapshot")

const (
	latestSystemKey      = "latest:system"
	latestContainersKey  = "latest:containers"
	latestModelServerKey = "latest:model_server"
)

// CleanupResult 单个指标族的清理结果
type CleanupResult struct {
	Family  protocol.Family `json:"family"`
	Deleted int64           `json:"deleted"`
	Err     error           `json:"-"`
}

// CleanupReport 一次清理的汇总，所有指标族共用同一个 cutoff
type CleanupReport struct {
	Cutoff  time.Time       `json:"cutoff"`
	Results []CleanupResult `json:"results"`
}

// Total 本次删除的总行数
func (r CleanupReport) Total() int64 {
	var total int64
	for _, result := range r.Results {
		total += result.Deleted
	}
	return total
}

// MetricService 指标服务：校验并写入快照、按保留时长清理、查询历史
type MetricService struct {
	logger     *zap.Logger
	metricRepo *repo.MetricRepo
	validate   *validator.Validate
	retention  time.Duration
	metrics    *telemetry.Metrics

	latestCache    cache.Cache[string, protocol.Snapshot]
	containerCache cache.Cache[string, []*protocol.ContainerSnapshot]
}

// NewMetricService 创建指标服务
func NewMetricService(logger *zap.Logger, db *gorm.DB, retention time.Duration, metrics *telemetry.Metrics) *MetricService {
	return &MetricService{
		logger:         logger,
		metricRepo:     repo.NewMetricRepo(db),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		retention:      retention,
		metrics:        metrics,
		latestCache:    cache.New[string, protocol.Snapshot](time.Minute),
		containerCache: cache.New[string, []*protocol.ContainerSnapshot](time.Minute),
	}
}

// Retention 数据保留时长
func (s *MetricService) Retention() time.Duration {
	return s.retention
}

// Record 按快照类型分发写入
func (s *MetricService) Record(ctx context.Context, snapshot protocol.Snapshot) error {
	switch v := snapshot.(type) {
	case *protocol.SystemSnapshot:
		return s.RecordSystem(ctx, v)
	case *protocol.ContainerSnapshot:
		return s.RecordContainer(ctx, v)
	case *protocol.ModelServerSnapshot:
		return s.RecordModelServer(ctx, v)
	default:
		return fmt.Errorf("%w: unsupported snapshot %T", ErrInvalidSnapshot, snapshot)
	}
}

// RecordSystem 写入一条系统指标
func (s *MetricService) RecordSystem(ctx context.Context, snapshot *protocol.SystemSnapshot) error {
	if err := s.check(protocol.FamilySystem, snapshot); err != nil {
		return err
	}
	record := &models.SystemMetric{
		Timestamp:      sampleTime(snapshot),
		CPUUsage:       snapshot.CPUUsage,
		CPUTemperature: snapshot.CPUTemperature,
		MemoryTotal:    snapshot.MemoryTotal,
		MemoryUsed:     snapshot.MemoryUsed,
		MemoryPercent:  snapshot.MemoryPercent,
		DiskTotal:      snapshot.DiskTotal,
		DiskUsed:       snapshot.DiskUsed,
		DiskPercent:    snapshot.DiskPercent,
	}
	if err := s.metricRepo.CreateSystemMetric(ctx, record); err != nil {
		return fmt.Errorf("保存系统指标失败: %w", err)
	}
	s.metrics.RecordsTotal.WithLabelValues(string(protocol.FamilySystem)).Inc()
	s.latestCache.Set(latestSystemKey, snapshot, time.Hour)
	s.publish(snapshot)
	return nil
}

// RecordContainer 写入一条容器指标
func (s *MetricService) RecordContainer(ctx context.Context, snapshot *protocol.ContainerSnapshot) error {
	if err := s.check(protocol.FamilyContainer, snapshot); err != nil {
		return err
	}
	record := &models.ContainerMetric{
		Timestamp:     sampleTime(snapshot),
		ContainerID:   snapshot.ContainerID,
		ContainerName: snapshot.ContainerName,
		Status:        snapshot.Status,
		CPUPercent:    snapshot.CPUPercent,
		MemoryUsed:    snapshot.MemoryUsed,
		MemoryLimit:   snapshot.MemoryLimit,
		NetworkRx:     snapshot.NetworkRx,
		NetworkTx:     snapshot.NetworkTx,
	}
	if err := s.metricRepo.CreateContainerMetric(ctx, record); err != nil {
		return fmt.Errorf("保存容器指标失败: %w", err)
	}
	s.metrics.RecordsTotal.WithLabelValues(string(protocol.FamilyContainer)).Inc()
	s.publish(snapshot)
	return nil
}

// RecordContainers 逐条写入一次采集到的容器指标，单条失败不影响其它容器，返回成功条数
func (s *MetricService) RecordContainers(ctx context.Context, snapshots []*protocol.ContainerSnapshot) (int, error) {
	var (
		recorded []*protocol.ContainerSnapshot
		errs     []error
	)
	// 已停止的容器不再出现在 /metrics 中
	s.metrics.ContainerValue.Reset()
	for _, snapshot := range snapshots {
		if snapshot == nil {
			continue
		}
		if err := s.RecordContainer(ctx, snapshot); err != nil {
			s.logger.Warn("保存容器指标失败",
				zap.String("containerID", snapshot.ContainerID),
				zap.String("containerName", snapshot.ContainerName),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		recorded = append(recorded, snapshot)
	}
	s.containerCache.Set(latestContainersKey, recorded, time.Hour)
	return len(recorded), errors.Join(errs...)
}

// RecordModelServer 写入一条模型服务指标
func (s *MetricService) RecordModelServer(ctx context.Context, snapshot *protocol.ModelServerSnapshot) error {
	if err := s.check(protocol.FamilyModelServer, snapshot); err != nil {
		return err
	}
	record := &models.ModelServerMetric{
		Timestamp:        sampleTime(snapshot),
		Running:          snapshot.Running,
		ModelCount:       snapshot.ModelCount,
		ActiveInferences: snapshot.ActiveInferences,
	}
	if err := s.metricRepo.CreateModelServerMetric(ctx, record); err != nil {
		return fmt.Errorf("保存模型服务指标失败: %w", err)
	}
	s.metrics.RecordsTotal.WithLabelValues(string(protocol.FamilyModelServer)).Inc()
	s.latestCache.Set(latestModelServerKey, snapshot, time.Hour)
	s.publish(snapshot)
	return nil
}

// check 空快照或数值越界时拒绝写入
func (s *MetricService) check(family protocol.Family, snapshot any) error {
	err := s.validate.Struct(snapshot)
	if err == nil {
		return nil
	}
	s.metrics.RejectedTotal.WithLabelValues(string(family)).Inc()
	return fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, family, err)
}

// sampleTime 统一按 UTC 存储，未设置采样时间时使用当前时间
func sampleTime(snapshot protocol.Snapshot) time.Time {
	t := snapshot.SampledAt()
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}

// Cleanup 删除早于 now - retention 的记录，各指标族互不影响
func (s *MetricService) Cleanup(ctx context.Context, now time.Time) CleanupReport {
	cutoff := now.Add(-s.retention).UTC()
	report := CleanupReport{Cutoff: cutoff}

	cleanups := map[protocol.Family]func(context.Context, time.Time) (int64, error){
		protocol.FamilySystem:      s.CleanupSystem,
		protocol.FamilyContainer:   s.CleanupContainer,
		protocol.FamilyModelServer: s.CleanupModelServer,
	}
	for _, family := range protocol.Families {
		deleted, err := cleanups[family](ctx, cutoff)
		if err != nil {
			s.logger.Error("清理过期指标失败", zap.String("family", string(family)), zap.Error(err))
			s.metrics.CleanupErrors.WithLabelValues(string(family)).Inc()
		} else {
			s.metrics.CleanupDeleted.WithLabelValues(string(family)).Add(float64(deleted))
		}
		report.Results = append(report.Results, CleanupResult{Family: family, Deleted: deleted, Err: err})
	}

	if total := report.Total(); total > 0 {
		s.logger.Info("已清理过期指标", zap.Int64("deleted", total), zap.Time("cutoff", cutoff))
	}
	return report
}

// CleanupSystem 删除 cutoff 之前的系统指标
func (s *MetricService) CleanupSystem(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.metricRepo.DeleteSystemMetricsBefore(ctx, cutoff)
}

// CleanupContainer 删除 cutoff 之前的容器指标
func (s *MetricService) CleanupContainer(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.metricRepo.DeleteContainerMetricsBefore(ctx, cutoff)
}

// CleanupModelServer 删除 cutoff 之前的模型服务指标
func (s *MetricService) CleanupModelServer(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.metricRepo.DeleteModelServerMetricsBefore(ctx, cutoff)
}

// SystemHistory 查询系统指标历史
func (s *MetricService) SystemHistory(ctx context.Context, q metric.HistoryQuery) ([]models.SystemMetric, error) {
	return s.metricRepo.FindSystemMetricsSince(ctx, q.Since(time.Now()).UTC(), q.Limit)
}

// ContainerHistory 查询容器指标历史
func (s *MetricService) ContainerHistory(ctx context.Context, q metric.HistoryQuery) ([]models.ContainerMetric, error) {
	return s.metricRepo.FindContainerMetricsSince(ctx, q.Since(time.Now()).UTC(), q.ContainerID, q.Limit)
}

// ModelServerHistory 查询模型服务指标历史
func (s *MetricService) ModelServerHistory(ctx context.Context, q metric.HistoryQuery) ([]models.ModelServerMetric, error) {
	return s.metricRepo.FindModelServerMetricsSince(ctx, q.Since(time.Now()).UTC(), q.Limit)
}

// SystemSeries 将系统指标历史转换为曲线（时间正序）
func (s *MetricService) SystemSeries(ctx context.Context, q metric.HistoryQuery) (*metric.GetSeriesResponse, error) {
	items, err := s.SystemHistory(ctx, q)
	if err != nil {
		return nil, err
	}

	cpu := metric.Series{Name: "cpu", Data: make([]metric.DataPoint, 0, len(items))}
	memory := metric.Series{Name: "memory", Data: make([]metric.DataPoint, 0, len(items))}
	disk := metric.Series{Name: "disk", Data: make([]metric.DataPoint, 0, len(items))}
	temperature := metric.Series{Name: "temperature", Data: make([]metric.DataPoint, 0, len(items))}
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		ts := item.Timestamp.UnixMilli()
		cpu.Data = append(cpu.Data, metric.DataPoint{Timestamp: ts, Value: item.CPUUsage})
		memory.Data = append(memory.Data, metric.DataPoint{Timestamp: ts, Value: item.MemoryPercent})
		disk.Data = append(disk.Data, metric.DataPoint{Timestamp: ts, Value: item.DiskPercent})
		if item.CPUTemperature != nil {
			temperature.Data = append(temperature.Data, metric.DataPoint{Timestamp: ts, Value: *item.CPUTemperature})
		}
	}

	return &metric.GetSeriesResponse{
		Family: string(protocol.FamilySystem),
		Hours:  q.Hours,
		Series: []metric.Series{cpu, memory, disk, temperature},
	}, nil
}

// Latest 最近一次写入成功的快照
func (s *MetricService) Latest() *metric.LatestMetrics {
	latest := &metric.LatestMetrics{Containers: []*protocol.ContainerSnapshot{}}
	if v, ok := s.latestCache.Get(latestSystemKey); ok {
		latest.System, _ = v.(*protocol.SystemSnapshot)
	}
	if v, ok := s.latestCache.Get(latestModelServerKey); ok {
		latest.ModelServer, _ = v.(*protocol.ModelServerSnapshot)
	}
	if v, ok := s.containerCache.Get(latestContainersKey); ok && v != nil {
		latest.Containers = v
	}
	return latest
}

// Counts 各指标族当前的记录数
func (s *MetricService) Counts(ctx context.Context) (map[protocol.Family]int64, error) {
	counters := map[protocol.Family]func(context.Context) (int64, error){
		protocol.FamilySystem:      s.metricRepo.CountSystemMetrics,
		protocol.FamilyContainer:   s.metricRepo.CountContainerMetrics,
		protocol.FamilyModelServer: s.metricRepo.CountModelServerMetrics,
	}
	counts := make(map[protocol.Family]int64, len(counters))
	for _, family := range protocol.Families {
		n, err := counters[family](ctx)
		if err != nil {
			return nil, err
		}
		counts[family] = n
	}
	return counts, nil
}
