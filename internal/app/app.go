package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/homedash/internal/collector"
	"github.com/dushixiang/homedash/internal/config"
	"github.com/dushixiang/homedash/internal/database"
	"github.com/dushixiang/homedash/internal/handler"
	"github.com/dushixiang/homedash/internal/logger"
	"github.com/dushixiang/homedash/internal/migrate"
	"github.com/dushixiang/homedash/internal/scheduler"
	"github.com/dushixiang/homedash/internal/server"
	"github.com/dushixiang/homedash/internal/service"
	"github.com/dushixiang/homedash/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 组装好的应用：数据库、采集、调度与 HTTP 服务
type App struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	docker *collector.DockerCollector

	metricService  *service.MetricService
	collectService *service.CollectService
	scheduler      *scheduler.MetricsScheduler
	server         *server.Server
}

// New 按配置初始化所有组件，不启动调度器和 HTTP 服务
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := logger.New(cfg.Log)

	db, err := database.Open(ctx, cfg.Database, afero.NewOsFs(), log)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := migrate.Migrate(log, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	docker, err := collector.NewDockerCollector(cfg.Docker.Host())
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("创建 docker 客户端失败: %w", err)
	}
	system := collector.NewSystemCollector(cfg.System.DiskPath)
	ollama := collector.NewOllamaCollector(cfg.Ollama.Host, cfg.Ollama.Timeout())
	systemd := collector.NewSystemdCollector(cfg.Services.Allowed, cfg.Services.Sudo, cfg.Services.Timeout())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	metricService := service.NewMetricService(log, db, cfg.Metrics.Retention(), metrics)
	collectService := service.NewCollectService(log, metricService, system, docker, ollama, service.CollectOptions{
		AdapterTimeout:       cfg.Metrics.AdapterTimeout(),
		ContainerConcurrency: cfg.Metrics.ContainerConcurrency,
	}, metrics)
	metricsScheduler := scheduler.NewMetricsScheduler(collectService, metricService, scheduler.Options{
		CollectionInterval: cfg.Metrics.CollectionInterval(),
		CleanupInterval:    cfg.Metrics.CleanupInterval(),
		Retention:          cfg.Metrics.Retention(),
	}, log, metrics)

	httpServer := server.New(log, cfg.Server.Addr, registry, server.Handlers{
		Internal: handler.NewInternalHandler(log, metricsScheduler, collectService, func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}),
		Metric:  handler.NewMetricHandler(log, metricService, system),
		Docker:  handler.NewDockerHandler(log, docker),
		Ollama:  handler.NewOllamaHandler(log, ollama),
		Service: handler.NewServiceHandler(log, systemd),
	})

	return &App{
		cfg:            cfg,
		logger:         log,
		db:             db,
		docker:         docker,
		metricService:  metricService,
		collectService: collectService,
		scheduler:      metricsScheduler,
		server:         httpServer,
	}, nil
}

// Logger 应用日志
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run 启动调度器与 HTTP 服务，阻塞到 ctx 结束或 HTTP 服务出错
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("homedash 启动",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("database", a.cfg.Database.Type),
		zap.Duration("collectionInterval", a.cfg.Metrics.CollectionInterval()),
		zap.Duration("retention", a.cfg.Metrics.Retention()))

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	return a.server.Run(ctx)
}

// Cleanup 立即执行一次过期数据清理
func (a *App) Cleanup(ctx context.Context) service.CleanupReport {
	return a.metricService.Cleanup(ctx, time.Now())
}

// Close 释放数据库与 docker 客户端
func (a *App) Close() error {
	if err := a.docker.Close(); err != nil {
		a.logger.Warn("关闭 docker 客户端失败", zap.Error(err))
	}
	err := database.Close(a.db)
	_ = a.logger.Sync()
	return err
}
