package protocol

import "time"

// ServiceInfo systemd 服务概要
type ServiceInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	LoadState     string `json:"loadState"`     // loaded, not-found, masked ...
	ActiveState   string `json:"activeState"`   // active, inactive, failed ...
	SubState      string `json:"subState"`      // running, dead, exited ...
	UnitFileState string `json:"unitFileState"` // enabled, disabled, static ...
}

// ServiceDetails systemd 服务详情，不可用的值为空
type ServiceDetails struct {
	ServiceInfo
	MainPID     *int       `json:"mainPid"`
	MemoryUsage *uint64    `json:"memoryUsage"` // 字节
	CPUUsage    *float64   `json:"cpuUsage"`    // 累计 CPU 时间，秒
	StartedAt   *time.Time `json:"startedAt"`
	Uptime      *int64     `json:"uptime"` // 秒
}

// SystemdStatus systemd 可用性
type SystemdStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}
