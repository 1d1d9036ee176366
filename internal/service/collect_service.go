package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dushixiang/homedash/internal/collector"
	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/dushixiang/homedash/internal/telemetry"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// SystemSampler 系统资源数据源
type SystemSampler interface {
	Available(ctx context.Context) bool
	Collect(ctx context.Context) (*protocol.SystemSnapshot, error)
}

// ContainerRuntime 容器运行时数据源
type ContainerRuntime interface {
	Available(ctx context.Context) bool
	ListRunning(ctx context.Context) ([]protocol.ContainerRef, error)
	Stats(ctx context.Context, ref protocol.ContainerRef) (*protocol.ContainerSnapshot, error)
}

// ModelServer 模型服务数据源，不可达时应返回 Running=false 的快照
type ModelServer interface {
	Available(ctx context.Context) bool
	Status(ctx context.Context) (*protocol.ModelServerSnapshot, error)
}

// FamilyResult 单个指标族的采集结果
type FamilyResult struct {
	Family   protocol.Family `json:"family"`
	Recorded int             `json:"recorded"`
	Duration time.Duration   `json:"duration"`
	Err      error           `json:"-"`
}

// CollectReport 一次采集的汇总
type CollectReport struct {
	ID      string         `json:"id"`
	Started time.Time      `json:"started"`
	Results []FamilyResult `json:"results"`
}

// Result 查找指定指标族的结果
func (r *CollectReport) Result(family protocol.Family) (FamilyResult, bool) {
	for _, result := range r.Results {
		if result.Family == family {
			return result, true
		}
	}
	return FamilyResult{}, false
}

// Recorded 本次写入的总记录数
func (r *CollectReport) Recorded() int {
	total := 0
	for _, result := range r.Results {
		total += result.Recorded
	}
	return total
}

// CollectOptions 采集参数
type CollectOptions struct {
	AdapterTimeout       time.Duration // 每次数据源调用的超时
	StoreTimeout         time.Duration // 每次写库的超时，与数据源超时分开计算
	ContainerConcurrency int           // 同时采集的容器数
}

// CollectService 采集编排：三类数据源并发采集，任一失败不影响其它
type CollectService struct {
	logger        *zap.Logger
	metricService *MetricService
	system        SystemSampler
	containers    ContainerRuntime
	modelServer   ModelServer
	options       CollectOptions
	metrics       *telemetry.Metrics
}

// NewCollectService 创建采集编排服务
func NewCollectService(logger *zap.Logger, metricService *MetricService, system SystemSampler, containers ContainerRuntime, modelServer ModelServer, options CollectOptions, metrics *telemetry.Metrics) *CollectService {
	if options.AdapterTimeout <= 0 {
		options.AdapterTimeout = 10 * time.Second
	}
	if options.StoreTimeout <= 0 {
		options.StoreTimeout = 10 * time.Second
	}
	if options.ContainerConcurrency <= 0 {
		options.ContainerConcurrency = 4
	}
	return &CollectService{
		logger:        logger,
		metricService: metricService,
		system:        system,
		containers:    containers,
		modelServer:   modelServer,
		options:       options,
		metrics:       metrics,
	}
}

type familyTask struct {
	family  protocol.Family
	collect func(ctx context.Context, logger *zap.Logger) (int, error)
}

// CollectAll 采集并写入所有指标族，等待全部完成后返回；不会返回错误也不会 panic
func (s *CollectService) CollectAll(ctx context.Context) *CollectReport {
	report := &CollectReport{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
	logger := s.logger.With(zap.String("collectID", report.ID))

	tasks := []familyTask{
		{protocol.FamilySystem, s.collectSystem},
		{protocol.FamilyContainer, s.collectContainers},
		{protocol.FamilyModelServer, s.collectModelServer},
	}
	results := make([]FamilyResult, len(tasks))

	p := pool.New()
	for i, task := range tasks {
		p.Go(func() {
			results[i] = s.runFamily(ctx, logger, task)
		})
	}
	p.Wait()

	report.Results = results
	logger.Debug("指标采集完成",
		zap.Int("recorded", report.Recorded()),
		zap.Duration("elapsed", time.Since(report.Started)))
	return report
}

// runFamily 执行单个指标族的采集，panic 会被转换为错误
func (s *CollectService) runFamily(ctx context.Context, logger *zap.Logger, task familyTask) FamilyResult {
	start := time.Now()
	result := FamilyResult{Family: task.family}

	var pc panics.Catcher
	pc.Try(func() {
		result.Recorded, result.Err = task.collect(ctx, logger)
	})
	if r := pc.Recovered(); r != nil {
		result.Err = r.AsError()
	}
	result.Duration = time.Since(start)

	family := string(task.family)
	s.metrics.CollectDuration.WithLabelValues(family).Observe(result.Duration.Seconds())
	if result.Err != nil {
		s.metrics.CollectTotal.WithLabelValues(family, "failure").Inc()
		logger.Error("指标采集失败",
			zap.String("family", family),
			zap.Int("recorded", result.Recorded),
			zap.Error(result.Err))
	} else {
		s.metrics.CollectTotal.WithLabelValues(family, "success").Inc()
	}
	return result
}

func (s *CollectService) collectSystem(ctx context.Context, logger *zap.Logger) (int, error) {
	snapshot, err := s.sampleSystem(ctx)
	if err != nil {
		return 0, err
	}
	if snapshot == nil {
		return 0, fmt.Errorf("系统采集未返回数据")
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.metricService.RecordSystem(storeCtx, snapshot); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *CollectService) sampleSystem(ctx context.Context) (*protocol.SystemSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.options.AdapterTimeout)
	defer cancel()
	return s.system.Collect(ctx)
}

// storeContext 写库使用独立的超时，数据源耗尽自己的时间后仍然可以写入
func (s *CollectService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.options.StoreTimeout)
}

func (s *CollectService) collectContainers(ctx context.Context, logger *zap.Logger) (int, error) {
	snapshots := s.sampleContainers(ctx, logger)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	// 没有容器时同样写入，清除上一轮留下的容器 gauge 与缓存
	return s.metricService.RecordContainers(storeCtx, snapshots)
}

func (s *CollectService) sampleContainers(ctx context.Context, logger *zap.Logger) []*protocol.ContainerSnapshot {
	listCtx, cancel := context.WithTimeout(ctx, s.options.AdapterTimeout)
	refs, err := s.containers.ListRunning(listCtx)
	cancel()
	if err != nil {
		// 容器运行时不可用时本轮没有容器记录
		logger.Warn("获取容器列表失败", zap.Error(err))
		return nil
	}
	if len(refs) == 0 {
		return nil
	}

	var (
		mu        sync.Mutex
		snapshots = make([]*protocol.ContainerSnapshot, 0, len(refs))
	)
	p := pool.New().WithMaxGoroutines(s.options.ContainerConcurrency)
	for _, ref := range refs {
		p.Go(func() {
			snapshot, err := s.containerStats(ctx, ref)
			if err != nil {
				if errors.Is(err, collector.ErrUnavailable) {
					logger.Debug("容器无统计数据，跳过", zap.String("containerID", ref.ID), zap.String("containerName", ref.Name))
				} else {
					logger.Warn("获取容器统计失败，跳过", zap.String("containerID", ref.ID), zap.String("containerName", ref.Name), zap.Error(err))
				}
				return
			}
			mu.Lock()
			snapshots = append(snapshots, snapshot)
			mu.Unlock()
		})
	}
	p.Wait()
	return snapshots
}

// containerStats 单个容器的采集，panic 只影响该容器
func (s *CollectService) containerStats(ctx context.Context, ref protocol.ContainerRef) (snapshot *protocol.ContainerSnapshot, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.options.AdapterTimeout)
	defer cancel()

	var pc panics.Catcher
	pc.Try(func() {
		snapshot, err = s.containers.Stats(ctx, ref)
	})
	if r := pc.Recovered(); r != nil {
		return nil, r.AsError()
	}
	if err == nil && snapshot == nil {
		return nil, fmt.Errorf("%s: %w", ref.ID, collector.ErrUnavailable)
	}
	return snapshot, err
}

func (s *CollectService) collectModelServer(ctx context.Context, logger *zap.Logger) (int, error) {
	snapshot, err := s.sampleModelServer(ctx)
	if err != nil {
		return 0, err
	}
	if snapshot == nil {
		return 0, fmt.Errorf("模型服务采集未返回数据")
	}
	if !snapshot.Running {
		logger.Debug("模型服务不可用", zap.String("reason", snapshot.Error))
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.metricService.RecordModelServer(storeCtx, snapshot); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *CollectService) sampleModelServer(ctx context.Context) (*protocol.ModelServerSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.options.AdapterTimeout)
	defer cancel()
	return s.modelServer.Status(ctx)
}

// SourceStatus 数据源可用性
type SourceStatus struct {
	Family    protocol.Family `json:"family"`
	Available bool            `json:"available"`
}

// Sources 并发检查三类数据源是否可用
func (s *CollectService) Sources(ctx context.Context) []SourceStatus {
	ctx, cancel := context.WithTimeout(ctx, s.options.AdapterTimeout)
	defer cancel()

	checks := []struct {
		family protocol.Family
		check  func(context.Context) bool
	}{
		{protocol.FamilySystem, s.system.Available},
		{protocol.FamilyContainer, s.containers.Available},
		{protocol.FamilyModelServer, s.modelServer.Available},
	}
	statuses := make([]SourceStatus, len(checks))
	p := pool.New()
	for i, c := range checks {
		p.Go(func() {
			statuses[i] = SourceStatus{Family: c.family}
			var pc panics.Catcher
			pc.Try(func() { statuses[i].Available = c.check(ctx) })
		})
	}
	p.Wait()
	return statuses
}
