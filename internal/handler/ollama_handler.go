package handler

import (
	"errors"
	"net/http"

	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/dushixiang/homedash/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OllamaHandler 模型服务实时状态处理器
type OllamaHandler struct {
	logger      *zap.Logger
	modelServer service.ModelServer
}

// NewOllamaHandler 创建处理器
func NewOllamaHandler(logger *zap.Logger, modelServer service.ModelServer) *OllamaHandler {
	return &OllamaHandler{
		logger:      logger,
		modelServer: modelServer,
	}
}

func (h *OllamaHandler) status(c echo.Context) (*protocol.ModelServerSnapshot, error) {
	snapshot, err := h.modelServer.Status(c.Request().Context())
	if err == nil && snapshot == nil {
		err = errors.New("模型服务未返回数据")
	}
	if err != nil {
		h.logger.Error("获取模型服务状态失败", zap.Error(err))
		return nil, err
	}
	return snapshot, nil
}

// Status 模型服务状态，不可达时 running 为 false
// GET /api/ollama/status
func (h *OllamaHandler) Status(c echo.Context) error {
	snapshot, err := h.status(c)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "获取模型服务状态失败")
	}
	return ok(c, map[string]any{
		"running":          snapshot.Running,
		"version":          snapshot.Version,
		"modelCount":       snapshot.ModelCount,
		"activeInferences": snapshot.ActiveInferences,
		"error":            snapshot.Error,
	})
}

// Models 已下载的模型
// GET /api/ollama/models
func (h *OllamaHandler) Models(c echo.Context) error {
	snapshot, err := h.status(c)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "获取模型服务状态失败")
	}
	if !snapshot.Running {
		return fail(c, http.StatusServiceUnavailable, "模型服务不可用")
	}
	models := snapshot.Models
	if models == nil {
		models = []protocol.ModelInfo{}
	}
	return ok(c, models)
}

// Running 正在加载/推理的模型
// GET /api/ollama/running
func (h *OllamaHandler) Running(c echo.Context) error {
	snapshot, err := h.status(c)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "获取模型服务状态失败")
	}
	if !snapshot.Running {
		return fail(c, http.StatusServiceUnavailable, "模型服务不可用")
	}
	running := snapshot.RunningModels
	if running == nil {
		running = []protocol.RunningModel{}
	}
	return ok(c, running)
}
