package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/dushixiang/homedash/internal/collector"
	"github.com/dushixiang/homedash/internal/protocol"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// serviceNameRule systemd 服务名
const serviceNameRule = "required,max=256,startsnotwith=-,excludesall=/?#%"

// ServiceControl systemd 服务查询与启停
type ServiceControl interface {
	Status(ctx context.Context) protocol.SystemdStatus
	List(ctx context.Context) ([]protocol.ServiceInfo, error)
	Details(ctx context.Context, name string) (*protocol.ServiceDetails, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
}

// ServicesResponse 服务列表响应
type ServicesResponse struct {
	Systemd  protocol.SystemdStatus `json:"systemd"`
	Services []protocol.ServiceInfo `json:"services"`
}

// ServiceHandler 系统服务处理器
type ServiceHandler struct {
	logger    *zap.Logger
	systemd   ServiceControl
	validator *Validator
}

// NewServiceHandler 创建处理器
func NewServiceHandler(logger *zap.Logger, systemd ServiceControl) *ServiceHandler {
	return &ServiceHandler{
		logger:    logger,
		systemd:   systemd,
		validator: NewValidator(),
	}
}

// List systemd 状态与配置中的服务
// GET /api/services
func (h *ServiceHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	services, err := h.systemd.List(ctx)
	if err != nil {
		// 部分服务查询失败时仍返回其余服务
		h.logger.Warn("获取服务状态失败", zap.Error(err))
	}
	if services == nil {
		services = []protocol.ServiceInfo{}
	}
	return ok(c, ServicesResponse{
		Systemd:  h.systemd.Status(ctx),
		Services: services,
	})
}

// Get 服务详情
// GET /api/services/:name
func (h *ServiceHandler) Get(c echo.Context) error {
	name := c.Param("name")
	if err := h.validator.Var(name, serviceNameRule); err != nil {
		return fail(c, http.StatusBadRequest, "服务名不合法")
	}

	details, err := h.systemd.Details(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, collector.ErrNotFound) {
			return fail(c, http.StatusNotFound, "服务不存在")
		}
		h.logger.Error("获取服务详情失败", zap.String("service", name), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "获取服务详情失败")
	}
	return ok(c, details)
}

// Start 启动服务
// POST /api/services/:name/start
func (h *ServiceHandler) Start(c echo.Context) error {
	return h.control(c, "started", h.systemd.Start)
}

// Stop 停止服务
// POST /api/services/:name/stop
func (h *ServiceHandler) Stop(c echo.Context) error {
	return h.control(c, "stopped", h.systemd.Stop)
}

// Restart 重启服务
// POST /api/services/:name/restart
func (h *ServiceHandler) Restart(c echo.Context) error {
	return h.control(c, "restarted", h.systemd.Restart)
}

func (h *ServiceHandler) control(c echo.Context, action string, fn func(context.Context, string) error) error {
	name := c.Param("name")
	if err := h.validator.Var(name, serviceNameRule); err != nil {
		return fail(c, http.StatusBadRequest, "服务名不合法")
	}

	if err := fn(c.Request().Context(), name); err != nil {
		switch {
		case errors.Is(err, collector.ErrNotAllowed):
			return fail(c, http.StatusForbidden, "服务不在允许控制的列表中")
		case errors.Is(err, collector.ErrPermissionDenied):
			h.logger.Warn("服务操作权限不足", zap.String("service", name), zap.String("action", action), zap.Error(err))
			return fail(c, http.StatusForbidden, "权限不足，控制服务需要 root 或 sudo 权限")
		case errors.Is(err, collector.ErrNotFound):
			return fail(c, http.StatusNotFound, "服务不存在")
		}
		h.logger.Error("服务操作失败", zap.String("service", name), zap.String("action", action), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "服务操作失败")
	}

	h.logger.Info("服务操作成功", zap.String("service", name), zap.String("action", action))
	return ok(c, map[string]bool{action: true})
}
