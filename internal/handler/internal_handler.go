package handler

import (
	"context"
	"net/http"

	"github.com/dushixiang/homedash/internal/metric"
	"github.com/dushixiang/homedash/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Scheduler 指标调度器
type Scheduler interface {
	EnsureStarted(ctx context.Context) bool
	Status() metric.SchedulerStatus
}

// SourceChecker 数据源可用性检查
type SourceChecker interface {
	Sources(ctx context.Context) []service.SourceStatus
}

// InternalHandler 启动、健康检查与调度状态
type InternalHandler struct {
	logger    *zap.Logger
	scheduler Scheduler
	sources   SourceChecker
	ping      func(ctx context.Context) error
}

// NewInternalHandler 创建处理器，ping 用于健康检查（通常是数据库连通性）
func NewInternalHandler(logger *zap.Logger, scheduler Scheduler, sources SourceChecker, ping func(ctx context.Context) error) *InternalHandler {
	return &InternalHandler{
		logger:    logger,
		scheduler: scheduler,
		sources:   sources,
		ping:      ping,
	}
}

// Init 页面加载时调用，确保指标采集已启动
// GET /api/internal/init
func (h *InternalHandler) Init(c echo.Context) error {
	running := h.scheduler.EnsureStarted(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]bool{
		"success":                  true,
		"metricsCollectionRunning": running,
	})
}

// SchedulerStatus 调度器状态
// GET /api/internal/scheduler
func (h *InternalHandler) SchedulerStatus(c echo.Context) error {
	return ok(c, h.scheduler.Status())
}

// Sources 数据源可用性
// GET /api/internal/sources
func (h *InternalHandler) Sources(c echo.Context) error {
	return ok(c, h.sources.Sources(c.Request().Context()))
}

// Healthz 健康检查
// GET /healthz
func (h *InternalHandler) Healthz(c echo.Context) error {
	if h.ping != nil {
		if err := h.ping(c.Request().Context()); err != nil {
			h.logger.Warn("健康检查失败", zap.Error(err))
			return fail(c, http.StatusServiceUnavailable, "数据库不可用")
		}
	}
	return ok(c, map[string]string{"status": "ok"})
}
