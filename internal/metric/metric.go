package metric

import "time"

const (
	DefaultHours = 24
	DefaultLimit = 1000
)

// HistoryQuery 历史查询参数
type HistoryQuery struct {
	Hours       int    `query:"hours" validate:"gte=1,lte=720"`
	Limit       int    `query:"limit" validate:"gte=1,lte=5000"`
	ContainerID string `query:"containerId" validate:"omitempty,max=64"`
}

// Since 查询起始时间
func (q HistoryQuery) Since(now time.Time) time.Time {
	return now.Add(-time.Duration(q.Hours) * time.Hour)
}

// DataPoint 统一的指标数据点结构
type DataPoint struct {
	Timestamp int64   `json:"timestamp"` // 毫秒时间戳
	Value     float64 `json:"value"`
}

// Series 指标系列（如 CPU、内存、磁盘使用率）
type Series struct {
	Name string      `json:"name"`
	Data []DataPoint `json:"data"`
}

// GetSeriesResponse 曲线查询响应
type GetSeriesResponse struct {
	Family string   `json:"family"`
	Hours  int      `json:"hours"`
	Series []Series `json:"series"`
}
