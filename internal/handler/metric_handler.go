package handler

import (
	"net/http"

	"github.com/dushixiang/homedash/internal/models"
	"github.com/dushixiang/homedash/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MetricHandler 指标查询处理器
type MetricHandler struct {
	logger        *zap.Logger
	metricService *service.MetricService
	system        service.SystemSampler
}

// NewMetricHandler 创建处理器
func NewMetricHandler(logger *zap.Logger, metricService *service.MetricService, system service.SystemSampler) *MetricHandler {
	return &MetricHandler{
		logger:        logger,
		metricService: metricService,
		system:        system,
	}
}

// Current 实时采样系统指标（不写入数据库）
// GET /api/metrics/system
func (h *MetricHandler) Current(c echo.Context) error {
	snapshot, err := h.system.Collect(c.Request().Context())
	if err != nil {
		h.logger.Error("采集系统指标失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "采集系统指标失败")
	}
	return ok(c, snapshot)
}

// SystemHistory 查询系统指标历史
// GET /api/metrics/system/history?hours=24&limit=1000
func (h *MetricHandler) SystemHistory(c echo.Context) error {
	q, err := bindHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	items, err := h.metricService.SystemHistory(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("查询系统指标历史失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "查询失败")
	}
	if items == nil {
		items = []models.SystemMetric{}
	}
	return ok(c, items)
}

// SystemSeries 系统指标曲线
// GET /api/metrics/system/series?hours=24
func (h *MetricHandler) SystemSeries(c echo.Context) error {
	q, err := bindHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	series, err := h.metricService.SystemSeries(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("查询系统指标曲线失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "查询失败")
	}
	return ok(c, series)
}

// ContainerHistory 查询容器指标历史，可按容器过滤
// GET /api/docker/containers/history?hours=24&limit=1000&containerId=
func (h *MetricHandler) ContainerHistory(c echo.Context) error {
	q, err := bindHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	items, err := h.metricService.ContainerHistory(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("查询容器指标历史失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "查询失败")
	}
	if items == nil {
		items = []models.ContainerMetric{}
	}
	return ok(c, items)
}

// ModelServerHistory 查询模型服务指标历史
// GET /api/ollama/history?hours=24&limit=1000
func (h *MetricHandler) ModelServerHistory(c echo.Context) error {
	q, err := bindHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	items, err := h.metricService.ModelServerHistory(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("查询模型服务指标历史失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "查询失败")
	}
	if items == nil {
		items = []models.ModelServerMetric{}
	}
	return ok(c, items)
}

// Latest 最近一次写入的各类指标
// GET /api/metrics/latest
func (h *MetricHandler) Latest(c echo.Context) error {
	return ok(c, h.metricService.Latest())
}

// Stats 各类指标的记录数与保留时长
// GET /api/metrics/stats
func (h *MetricHandler) Stats(c echo.Context) error {
	counts, err := h.metricService.Counts(c.Request().Context())
	if err != nil {
		h.logger.Error("统计指标记录数失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "统计失败")
	}
	return ok(c, map[string]any{
		"counts":         counts,
		"retentionHours": int(h.metricService.Retention().Hours()),
	})
}
