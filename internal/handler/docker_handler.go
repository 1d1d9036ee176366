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

// containerIDRule 容器 ID 或名称
const containerIDRule = "required,max=128,excludesall=/?#%"

// ContainerControl 容器列表、统计与启停
type ContainerControl interface {
	Status(ctx context.Context) collector.DockerStatus
	List(ctx context.Context, all bool) ([]protocol.ContainerRef, error)
	Stats(ctx context.Context, ref protocol.ContainerRef) (*protocol.ContainerSnapshot, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
}

// DockerHandler 容器处理器
type DockerHandler struct {
	logger    *zap.Logger
	docker    ContainerControl
	validator *Validator
}

// NewDockerHandler 创建处理器
func NewDockerHandler(logger *zap.Logger, docker ContainerControl) *DockerHandler {
	return &DockerHandler{
		logger:    logger,
		docker:    docker,
		validator: NewValidator(),
	}
}

// Status docker 守护进程状态
// GET /api/docker/status
func (h *DockerHandler) Status(c echo.Context) error {
	return ok(c, h.docker.Status(c.Request().Context()))
}

// List 列出容器，默认包含已停止的容器
// GET /api/docker/containers?all=false
func (h *DockerHandler) List(c echo.Context) error {
	all := c.QueryParam("all") != "false"

	containers, err := h.docker.List(c.Request().Context(), all)
	if err != nil {
		h.logger.Error("获取容器列表失败", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "获取容器列表失败")
	}
	if containers == nil {
		containers = []protocol.ContainerRef{}
	}
	return ok(c, containers)
}

// Stats 单个容器的实时资源使用
// GET /api/docker/containers/:id/stats
func (h *DockerHandler) Stats(c echo.Context) error {
	id := c.Param("id")
	if err := h.validator.Var(id, containerIDRule); err != nil {
		return fail(c, http.StatusBadRequest, "容器ID不合法")
	}

	snapshot, err := h.docker.Stats(c.Request().Context(), protocol.ContainerRef{ID: id, Name: id})
	if err != nil {
		if errors.Is(err, collector.ErrUnavailable) {
			return fail(c, http.StatusNotFound, "容器不存在或无统计数据")
		}
		h.logger.Error("获取容器统计失败", zap.String("containerID", id), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "获取容器统计失败")
	}
	return ok(c, snapshot)
}

// Start 启动容器
// POST /api/docker/containers/:id/start
func (h *DockerHandler) Start(c echo.Context) error {
	return h.control(c, "started", h.docker.Start)
}

// Stop 停止容器
// POST /api/docker/containers/:id/stop
func (h *DockerHandler) Stop(c echo.Context) error {
	return h.control(c, "stopped", h.docker.Stop)
}

// Restart 重启容器
// POST /api/docker/containers/:id/restart
func (h *DockerHandler) Restart(c echo.Context) error {
	return h.control(c, "restarted", h.docker.Restart)
}

func (h *DockerHandler) control(c echo.Context, action string, fn func(context.Context, string) error) error {
	id := c.Param("id")
	if err := h.validator.Var(id, containerIDRule); err != nil {
		return fail(c, http.StatusBadRequest, "容器ID不合法")
	}

	if err := fn(c.Request().Context(), id); err != nil {
		if errors.Is(err, collector.ErrNotFound) {
			return fail(c, http.StatusNotFound, "容器不存在")
		}
		h.logger.Error("容器操作失败", zap.String("containerID", id), zap.String("action", action), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "容器操作失败")
	}

	h.logger.Info("容器操作成功", zap.String("containerID", id), zap.String("action", action))
	return ok(c, map[string]bool{action: true})
}
