package metric

import "github.com/dushixiang/homedash/internal/protocol"

// LatestMetrics 最近一次写入的各类指标（用于API响应）
type LatestMetrics struct {
	System      *protocol.SystemSnapshot      `json:"system,omitempty"`
	Containers  []*protocol.ContainerSnapshot `json:"containers"`
	ModelServer *protocol.ModelServerSnapshot `json:"modelServer,omitempty"`
}
