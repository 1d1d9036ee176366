package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dushixiang/homedash/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Handlers 路由用到的处理器
type Handlers struct {
	Internal *handler.InternalHandler
	Metric   *handler.MetricHandler
	Docker   *handler.DockerHandler
	Ollama   *handler.OllamaHandler
	Service  *handler.ServiceHandler
}

// Server HTTP 服务
type Server struct {
	addr   string
	echo   *echo.Echo
	logger *zap.Logger
}

// New 创建 HTTP 服务并注册路由，gatherer 为 /metrics 暴露的 Prometheus 指标
func New(logger *zap.Logger, addr string, gatherer prometheus.Gatherer, handlers Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	s := &Server{
		addr:   addr,
		echo:   e,
		logger: logger,
	}
	s.routes(gatherer, handlers)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer, h Handlers) {
	e := s.echo

	e.GET("/healthz", h.Internal.Healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.logger),
	})))

	api := e.Group("/api")

	internal := api.Group("/internal")
	internal.GET("/init", h.Internal.Init)
	internal.GET("/scheduler", h.Internal.SchedulerStatus)
	internal.GET("/sources", h.Internal.Sources)

	metrics := api.Group("/metrics")
	metrics.GET("/system", h.Metric.Current)
	metrics.GET("/system/history", h.Metric.SystemHistory)
	metrics.GET("/system/series", h.Metric.SystemSeries)
	metrics.GET("/latest", h.Metric.Latest)
	metrics.GET("/stats", h.Metric.Stats)

	docker := api.Group("/docker")
	docker.GET("/status", h.Docker.Status)
	docker.GET("/containers", h.Docker.List)
	docker.GET("/containers/history", h.Metric.ContainerHistory)
	docker.GET("/containers/:id/stats", h.Docker.Stats)
	docker.POST("/containers/:id/start", h.Docker.Start)
	docker.POST("/containers/:id/stop", h.Docker.Stop)
	docker.POST("/containers/:id/restart", h.Docker.Restart)

	ollama := api.Group("/ollama")
	ollama.GET("/status", h.Ollama.Status)
	ollama.GET("/models", h.Ollama.Models)
	ollama.GET("/running", h.Ollama.Running)
	ollama.GET("/history", h.Metric.ModelServerHistory)

	services := api.Group("/services")
	services.GET("", h.Service.List)
	services.GET("/:name", h.Service.Get)
	services.POST("/:name/start", h.Service.Start)
	services.POST("/:name/stop", h.Service.Stop)
	services.POST("/:name/restart", h.Service.Restart)
}

// Handler 底层 http.Handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run 启动监听，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务启动", zap.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, failed := <-errCh:
		if failed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP 服务关闭失败", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP 服务已停止")
	return nil
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("HTTP 请求失败", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("HTTP 请求", fields...)
			return nil
		},
	})
}
