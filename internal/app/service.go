package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dushixiang/homedash/internal/config"

	"github.com/kardianos/service"
	"go.uber.org/zap"
)

const serviceName = "homedash"

// program 实现 service.Interface
type program struct {
	configFile string
	app        *App
	cancel     context.CancelFunc
	done       chan error
}

// Start 启动服务，不能阻塞
func (p *program) Start(s service.Service) error {
	cfg, err := config.Load(p.configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := New(ctx, cfg)
	if err != nil {
		cancel()
		return err
	}
	p.app = a
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		err := a.Run(ctx)
		if err != nil {
			a.Logger().Error("服务运行出错", zap.Error(err))
		}
		p.done <- err
	}()
	return nil
}

// Stop 停止服务
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.app.Logger().Info("homedash 服务停止中...")
	p.cancel()
	err := <-p.done
	if closeErr := p.app.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// ServiceManager 系统服务管理器
type ServiceManager struct {
	configFile string
	service    service.Service
}

// NewServiceManager 创建服务管理器，configFile 为空时只使用默认值与环境变量
func NewServiceManager(configFile string) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	arguments := []string{"service", "run"}
	if configFile != "" {
		if configFile, err = filepath.Abs(configFile); err != nil {
			return nil, fmt.Errorf("获取配置文件路径失败: %w", err)
		}
		arguments = append(arguments, "--config", configFile)
	}

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: "Homedash",
		Description: "Homedash 指标采集服务 - 采集系统、容器与模型服务指标并定期清理",
		Arguments:   arguments,
		Executable:  execPath,
		Option: service.KeyValue{
			// Linux systemd 配置
			"Restart":            "always",
			"RestartSec":         "10",
			"StartLimitInterval": "0",
			"KillMode":           "process",

			// Windows 配置
			"OnFailure":    "restart",
			"ResetPeriod":  86400,
			"RestartDelay": 10000,

			// 其他 Unix 系统 (upstart/launchd)
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	s, err := service.New(&program{configFile: configFile}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}

	return &ServiceManager{
		configFile: configFile,
		service:    s,
	}, nil
}

// Install 安装服务
func (m *ServiceManager) Install() error {
	return m.service.Install()
}

// Uninstall 卸载服务，运行中时先停止
func (m *ServiceManager) Uninstall() error {
	if status, err := m.service.Status(); err == nil && status == service.StatusRunning {
		if err := m.service.Stop(); err != nil {
			return fmt.Errorf("停止服务失败: %w", err)
		}
	}
	return m.service.Uninstall()
}

// Start 启动服务
func (m *ServiceManager) Start() error {
	return m.service.Start()
}

// Stop 停止服务
func (m *ServiceManager) Stop() error {
	return m.service.Stop()
}

// Restart 重启服务
func (m *ServiceManager) Restart() error {
	return m.service.Restart()
}

// Status 查看服务状态
func (m *ServiceManager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}
	return statusText(status), nil
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "运行中 (Running)"
	case service.StatusStopped:
		return "已停止 (Stopped)"
	case service.StatusUnknown:
		return "未知 (Unknown)"
	default:
		return fmt.Sprintf("状态: %d", status)
	}
}

// Run 在服务管理器控制下运行；交互模式下前台运行直到收到中断信号
func (m *ServiceManager) Run() error {
	if !service.Interactive() {
		return m.service.Run()
	}

	cfg, err := config.Load(m.configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	return RunForeground(cfg)
}

// RunForeground 前台运行，SIGINT/SIGTERM 时优雅退出
func RunForeground(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	err = a.Run(ctx)
	a.Logger().Info("homedash 已停止")
	if closeErr := a.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}
