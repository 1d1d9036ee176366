package protocol

import "time"

// Family 指标族
type Family string

const (
	FamilySystem      Family = "system"
	FamilyContainer   Family = "container"
	FamilyModelServer Family = "model_server"
)

// Families 全部指标族，按采集顺序排列
var Families = []Family{FamilySystem, FamilyContainer, FamilyModelServer}

// Snapshot 单次采样结果，只有本包中的三种快照实现该接口
type Snapshot interface {
	Family() Family
	SampledAt() time.Time
	isSnapshot()
}

// SystemSnapshot 系统资源快照
type SystemSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	CPUUsage       float64   `json:"cpuUsage" validate:"gte=0,lte=100"`
	CPUTemperature *float64  `json:"cpuTemperature,omitempty"` // 无传感器时为空
	MemoryTotal    uint64    `json:"memoryTotal"`
	MemoryUsed     uint64    `json:"memoryUsed" validate:"ltefield=MemoryTotal"`
	MemoryPercent  float64   `json:"memoryPercent" validate:"gte=0,lte=100"`
	DiskTotal      uint64    `json:"diskTotal"`
	DiskUsed       uint64    `json:"diskUsed" validate:"ltefield=DiskTotal"`
	DiskPercent    float64   `json:"diskPercent" validate:"gte=0,lte=100"`
}

func (s *SystemSnapshot) Family() Family       { return FamilySystem }
func (s *SystemSnapshot) SampledAt() time.Time { return s.Timestamp }
func (s *SystemSnapshot) isSnapshot()          {}

// ContainerRef 运行中容器的引用，由 ListRunning 返回
type ContainerRef struct {
	ID     string `json:"id"`   // 12 位短 ID
	Name   string `json:"name"` // 去掉前导 "/"
	Image  string `json:"image"`
	State  string `json:"state"`
	Status string `json:"status"`
}

// ContainerSnapshot 单个容器的资源快照
type ContainerSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	ContainerID   string    `json:"containerId" validate:"required"`
	ContainerName string    `json:"containerName"`
	Status        string    `json:"status"`
	CPUPercent    float64   `json:"cpuPercent" validate:"gte=0"` // 多核时可以超过 100
	MemoryUsed    uint64    `json:"memoryUsed"`
	MemoryLimit   uint64    `json:"memoryLimit"`
	NetworkRx     uint64    `json:"networkRx"`
	NetworkTx     uint64    `json:"networkTx"`
}

func (s *ContainerSnapshot) Family() Family       { return FamilyContainer }
func (s *ContainerSnapshot) SampledAt() time.Time { return s.Timestamp }
func (s *ContainerSnapshot) isSnapshot()          {}

// ModelServerSnapshot 模型服务(Ollama)状态快照
type ModelServerSnapshot struct {
	Timestamp        time.Time      `json:"timestamp"`
	Running          bool           `json:"running"`
	Version          string         `json:"version,omitempty"`
	ModelCount       int            `json:"modelCount" validate:"gte=0"`
	ActiveInferences int            `json:"activeInferences" validate:"gte=0"`
	Models           []ModelInfo    `json:"models,omitempty"`
	RunningModels    []RunningModel `json:"runningModels,omitempty"`
	Error            string         `json:"error,omitempty"`
}

func (s *ModelServerSnapshot) Family() Family       { return FamilyModelServer }
func (s *ModelServerSnapshot) SampledAt() time.Time { return s.Timestamp }
func (s *ModelServerSnapshot) isSnapshot()          {}

// ModelInfo 本地已下载的模型
type ModelInfo struct {
	Name              string    `json:"name"`
	ModifiedAt        time.Time `json:"modifiedAt"`
	Size              int64     `json:"size"`
	Digest            string    `json:"digest"`
	Format            string    `json:"format"`
	Family            string    `json:"family"`
	ParameterSize     string    `json:"parameterSize"`
	QuantizationLevel string    `json:"quantizationLevel"`
}

// RunningModel 已加载到内存中的模型
type RunningModel struct {
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"`
	ExpiresAt time.Time `json:"expiresAt"`
	SizeVRAM  int64     `json:"sizeVram"`
}

// UnavailableModelServer 模型服务不可达时记录的快照
func UnavailableModelServer(now time.Time, reason string) *ModelServerSnapshot {
	return &ModelServerSnapshot{
		Timestamp: now,
		Running:   false,
		Error:     reason,
	}
}
