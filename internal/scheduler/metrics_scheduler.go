package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dushixiang/homedash/internal/metric"
	"github.com/dushixiang/homedash/internal/service"
	"github.com/dushixiang/homedash/internal/telemetry"

	"github.com/go-errors/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	taskCollect = "collect"
	taskCleanup = "cleanup"
)

// Collector 执行一次完整的指标采集
type Collector interface {
	CollectAll(ctx context.Context) *service.CollectReport
}

// Cleaner 执行一次过期数据清理
type Cleaner interface {
	Cleanup(ctx context.Context, now time.Time) service.CleanupReport
}

// Options 调度参数
type Options struct {
	CollectionInterval time.Duration
	CleanupInterval    time.Duration
	Retention          time.Duration
}

// MetricsScheduler 指标采集调度器，状态只有 Stopped 和 Running 两种
type MetricsScheduler struct {
	mu        sync.Mutex
	running   bool
	cron      *cron.Cron
	entries   map[string]cron.EntryID // 任务名 -> cron 任务 ID
	inflight  *sync.WaitGroup         // 启动时立即执行的采集
	collector Collector
	cleaner   Cleaner
	options   Options
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMetricsScheduler 创建指标采集调度器
func NewMetricsScheduler(collector Collector, cleaner Cleaner, options Options, logger *zap.Logger, metrics *telemetry.Metrics) *MetricsScheduler {
	if options.CollectionInterval <= 0 {
		options.CollectionInterval = time.Minute
	}
	if options.CleanupInterval <= 0 {
		options.CleanupInterval = time.Hour
	}
	return &MetricsScheduler{
		entries:   make(map[string]cron.EntryID),
		collector: collector,
		cleaner:   cleaner,
		options:   options,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start 启动调度器：立即采集一次，然后按间隔重复采集并定期清理。已在运行时不做任何事
func (s *MetricsScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug("指标采集调度器已在运行")
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron = cron.New(cron.WithLogger(&cronLogger{logger: s.logger}))

	runCtx := s.ctx
	collectJob := s.wrap(taskCollect, func() { s.collect(runCtx) })
	cleanupJob := s.wrap(taskCleanup, func() { s.cleanup(runCtx) })
	s.entries[taskCollect] = s.cron.Schedule(every(s.options.CollectionInterval), collectJob)
	s.entries[taskCleanup] = s.cron.Schedule(every(s.options.CleanupInterval), cleanupJob)

	// 与定时触发共用同一个防重入包装，首轮未结束时第一次定时触发会被跳过
	s.inflight = &sync.WaitGroup{}
	s.inflight.Add(1)
	go func(wg *sync.WaitGroup) {
		defer wg.Done()
		collectJob.Run()
	}(s.inflight)

	s.cron.Start()
	s.running = true
	s.metrics.SchedulerUp.Set(1)

	s.logger.Info("启动指标采集调度器",
		zap.Duration("collectionInterval", s.options.CollectionInterval),
		zap.Duration("cleanupInterval", s.options.CleanupInterval),
		zap.Duration("retention", s.options.Retention))
}

// Stop 停止调度器，等待正在执行的任务结束。未运行时不做任何事
func (s *MetricsScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c, cancel, inflight := s.cron, s.cancel, s.inflight
	s.running = false
	s.cron = nil
	s.entries = make(map[string]cron.EntryID)
	s.metrics.SchedulerUp.Set(0)
	s.mu.Unlock()

	// 停止 cron 调度器
	<-c.Stop().Done()
	inflight.Wait()
	cancel()

	s.logger.Info("指标采集调度器已停止")
}

// IsRunning 调度器是否在运行
func (s *MetricsScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// EnsureStarted 未运行时启动，返回调用后的运行状态
func (s *MetricsScheduler) EnsureStarted(ctx context.Context) bool {
	if !s.IsRunning() {
		s.Start(ctx)
	}
	return s.IsRunning()
}

// wrap 为任务加上防重入与 panic 恢复
// recover 必须位于 SkipIfStillRunning 内层：任务 panic 后令牌不会归还
func (s *MetricsScheduler) wrap(name string, fn func()) cron.Job {
	logger := s.logger.With(zap.String("task", name))
	return cron.NewChain(
		cron.SkipIfStillRunning(&cronLogger{logger: logger}),
		recoverJob(logger),
	).Then(cron.FuncJob(fn))
}

func recoverJob(logger *zap.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					err := errors.Wrap(r, 2)
					logger.Error("调度任务 panic",
						zap.Error(err),
						zap.String("stack", string(err.Stack())))
				}
			}()
			j.Run()
		})
	}
}

func (s *MetricsScheduler) collect(ctx context.Context) {
	report := s.collector.CollectAll(ctx)
	if report == nil {
		return
	}
	for _, result := range report.Results {
		if result.Err != nil {
			s.logger.Warn("本轮采集部分失败",
				zap.String("collectID", report.ID),
				zap.String("family", string(result.Family)))
		}
	}
}

func (s *MetricsScheduler) cleanup(ctx context.Context) {
	s.cleaner.Cleanup(ctx, time.Now())
}

// Status 调度器与任务状态
func (s *MetricsScheduler) Status() metric.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := metric.SchedulerStatus{
		Running:   s.running,
		Retention: s.options.Retention.String(),
		Tasks:     []metric.TaskStatus{},
	}
	if !s.running {
		return status
	}

	intervals := map[string]time.Duration{
		taskCollect: s.options.CollectionInterval,
		taskCleanup: s.options.CleanupInterval,
	}
	for _, name := range []string{taskCollect, taskCleanup} {
		task := metric.TaskStatus{Name: name, Interval: intervals[name].String()}
		// 从 cron entry 获取下次执行时间
		if entry := s.cron.Entry(s.entries[name]); entry.Valid() {
			if !entry.Next.IsZero() {
				task.NextRunTime = entry.Next.Format(time.RFC3339)
			}
			if !entry.Prev.IsZero() {
				task.PrevRunTime = entry.Prev.Format(time.RFC3339)
			}
		}
		status.Tasks = append(status.Tasks, task)
	}
	return status
}
