package models

import "time"

// SystemMetric 系统资源指标
type SystemMetric struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp      time.Time `gorm:"index:idx_system_ts;not null" json:"timestamp"` // 采样时间
	CPUUsage       float64   `gorm:"not null" json:"cpuUsage"`                      // CPU 使用率(%)
	CPUTemperature *float64  `json:"cpuTemperature"`                                // CPU 温度(℃)，无传感器时为空
	MemoryTotal    uint64    `gorm:"not null" json:"memoryTotal"`                   // 总内存(字节)
	MemoryUsed     uint64    `gorm:"not null" json:"memoryUsed"`                    // 已用内存(字节)
	MemoryPercent  float64   `gorm:"not null" json:"memoryPercent"`                 // 内存使用率(%)
	DiskTotal      uint64    `gorm:"not null" json:"diskTotal"`                     // 磁盘容量(字节)
	DiskUsed       uint64    `gorm:"not null" json:"diskUsed"`                      // 已用磁盘(字节)
	DiskPercent    float64   `gorm:"not null" json:"diskPercent"`                   // 磁盘使用率(%)
}

func (SystemMetric) TableName() string {
	return "system_metrics"
}

// ContainerMetric 容器资源指标
type ContainerMetric struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp     time.Time `gorm:"index:idx_container_ts;not null" json:"timestamp"`
	ContainerID   string    `gorm:"index:idx_container_id;not null" json:"containerId"` // 12 位短 ID
	ContainerName string    `gorm:"not null" json:"containerName"`
	Status        string    `gorm:"not null" json:"status"`
	CPUPercent    float64   `gorm:"not null" json:"cpuPercent"`
	MemoryUsed    uint64    `gorm:"not null" json:"memoryUsed"`
	MemoryLimit   uint64    `gorm:"not null" json:"memoryLimit"`
	NetworkRx     uint64    `gorm:"not null" json:"networkRx"` // 所有网卡累计接收字节
	NetworkTx     uint64    `gorm:"not null" json:"networkTx"` // 所有网卡累计发送字节
}

func (ContainerMetric) TableName() string {
	return "container_metrics"
}

// ModelServerMetric 模型服务(Ollama)指标
type ModelServerMetric struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp        time.Time `gorm:"index:idx_ollama_ts;not null" json:"timestamp"`
	Running          bool      `gorm:"not null" json:"running"`
	ModelCount       int       `gorm:"not null" json:"modelCount"`
	ActiveInferences int       `gorm:"not null" json:"activeInferences"`
}

func (ModelServerMetric) TableName() string {
	return "ollama_metrics"
}

// All 全部需要迁移的模型
func All() []any {
	return []any{
		&SystemMetric{},
		&ContainerMetric{},
		&ModelServerMetric{},
	}
}
