package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envBindings 配置键 -> 环境变量
var envBindings = map[string]string{
	"server.addr":                    "SERVER_ADDR",
	"database.type":                  "DATABASE_TYPE",
	"database.path":                  "DATABASE_PATH",
	"database.dsn":                   "DATABASE_DSN",
	"database.max_retries":           "DATABASE_MAX_RETRIES",
	"metrics.collection_interval_ms": "METRICS_COLLECTION_INTERVAL_MS",
	"metrics.retention_hours":        "METRICS_RETENTION_HOURS",
	"metrics.cleanup_interval_ms":    "METRICS_CLEANUP_INTERVAL_MS",
	"metrics.adapter_timeout_ms":     "METRICS_ADAPTER_TIMEOUT_MS",
	"metrics.container_concurrency":  "METRICS_CONTAINER_CONCURRENCY",
	"ollama.host":                    "OLLAMA_HOST",
	"ollama.timeout_ms":              "OLLAMA_TIMEOUT_MS",
	"docker.socket_path":             "DOCKER_SOCKET_PATH",
	"system.disk_path":               "SYSTEM_DISK_PATH",
	"services.allowed":               "MONITORED_SERVICES",
	"services.timeout_ms":            "SERVICES_TIMEOUT_MS",
	"services.sudo":                  "SERVICES_SUDO",
	"log.level":                      "LOG_LEVEL",
	"log.file":                       "LOG_FILE",
	"log.max_size":                   "LOG_MAX_SIZE",
	"log.max_backups":                "LOG_MAX_BACKUPS",
	"log.max_age":                    "LOG_MAX_AGE",
	"log.compress":                   "LOG_COMPRESS",
}

// flagBindings 命令行参数 -> 配置键
var flagBindings = map[string]string{
	"addr":     "server.addr",
	"database": "database.path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./data/homedash.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_retries", 5)
	v.SetDefault("metrics.collection_interval_ms", 60000)
	v.SetDefault("metrics.retention_hours", 168)
	v.SetDefault("metrics.cleanup_interval_ms", 3600000)
	v.SetDefault("metrics.adapter_timeout_ms", 10000)
	v.SetDefault("metrics.container_concurrency", 4)
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.timeout_ms", 5000)
	v.SetDefault("docker.socket_path", "/var/run/docker.sock")
	v.SetDefault("system.disk_path", "/")
	v.SetDefault("services.allowed", []string{"docker", "ollama", "nginx", "postgresql", "redis", "ssh"})
	v.SetDefault("services.timeout_ms", 5000)
	v.SetDefault("services.sudo", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
}

// Load 加载配置：默认值 -> 配置文件(可选) -> 环境变量，最后校验
func Load(configFile string) (*AppConfig, error) {
	return load(newViper(), configFile)
}

// LoadWithCli 在 Load 的基础上合并命令行参数（优先级最高）
func LoadWithCli(cmd *cobra.Command) (*AppConfig, error) {
	v := newViper()
	for flag, key := range flagBindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	configFile, _ := cmd.Flags().GetString("config")
	return load(v, configFile)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		// BindEnv 只在参数数量错误时返回 error
		_ = v.BindEnv(key, env)
	}
	return v
}

func load(v *viper.Viper, configFile string) (*AppConfig, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := &AppConfig{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
