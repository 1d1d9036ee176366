package config

import (
	"strings"
	"time"
)

// AppConfig 应用配置
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Ollama   OllamaConfig   `mapstructure:"ollama" yaml:"ollama"`
	Docker   DockerConfig   `mapstructure:"docker" yaml:"docker"`
	System   SystemConfig   `mapstructure:"system" yaml:"system"`
	Services ServicesConfig `mapstructure:"services" yaml:"services"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required,listen_addr"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type       string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres"`
	Path       string `mapstructure:"path" yaml:"path" validate:"required_if=Type sqlite"`       // sqlite 文件路径
	DSN        string `mapstructure:"dsn" yaml:"dsn" validate:"required_if=Type postgres"`       // postgres 连接串
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=100"` // 连接失败重试次数
}

// MetricsConfig 指标采集与保留配置（毫秒/小时与环境变量保持一致）
type MetricsConfig struct {
	CollectionIntervalMs int `mapstructure:"collection_interval_ms" yaml:"collection_interval_ms" validate:"gte=1000"`
	RetentionHours       int `mapstructure:"retention_hours" yaml:"retention_hours" validate:"gte=1"`
	CleanupIntervalMs    int `mapstructure:"cleanup_interval_ms" yaml:"cleanup_interval_ms" validate:"gte=1000"`
	AdapterTimeoutMs     int `mapstructure:"adapter_timeout_ms" yaml:"adapter_timeout_ms" validate:"gte=100"`
	ContainerConcurrency int `mapstructure:"container_concurrency" yaml:"container_concurrency" validate:"gte=1,lte=64"`
}

func (c MetricsConfig) CollectionInterval() time.Duration {
	return time.Duration(c.CollectionIntervalMs) * time.Millisecond
}

func (c MetricsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c MetricsConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMs) * time.Millisecond
}

func (c MetricsConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.AdapterTimeoutMs) * time.Millisecond
}

// OllamaConfig 模型服务配置
type OllamaConfig struct {
	Host      string `mapstructure:"host" yaml:"host" validate:"required,url"`
	TimeoutMs int    `mapstructure:"timeout_ms" yaml:"timeout_ms" validate:"gte=100"`
}

func (c OllamaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DockerConfig 容器运行时配置
type DockerConfig struct {
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path" validate:"required"`
}

// Host docker 客户端使用的地址，未带协议时按 unix socket 处理
func (c DockerConfig) Host() string {
	if strings.Contains(c.SocketPath, "://") {
		return c.SocketPath
	}
	return "unix://" + c.SocketPath
}

// SystemConfig 系统采集配置
type SystemConfig struct {
	DiskPath string `mapstructure:"disk_path" yaml:"disk_path" validate:"required"` // 统计磁盘使用率的挂载点
}

// ServicesConfig systemd 服务配置
type ServicesConfig struct {
	Allowed   []string `mapstructure:"allowed" yaml:"allowed" validate:"dive,required,max=256"` // 允许查看和控制的服务
	TimeoutMs int      `mapstructure:"timeout_ms" yaml:"timeout_ms" validate:"gte=100"`
	Sudo      bool     `mapstructure:"sudo" yaml:"sudo"` // 启停服务时使用 sudo -n
}

func (c ServicesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file" yaml:"file"` // 为空时只输出到控制台
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}
