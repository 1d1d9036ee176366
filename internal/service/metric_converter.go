package service

import (
	"github.com/dushixiang/homedash/internal/protocol"
)

// sample 快照展开后的单个指标值
type sample struct {
	name   string
	labels map[string]string
	value  float64
}

// convertToSamples 将快照展开为指标值，用于 /metrics 暴露最近一次采样
func convertToSamples(snapshot protocol.Snapshot) []sample {
	var samples []sample

	switch v := snapshot.(type) {
	case *protocol.SystemSnapshot:
		samples = append(samples, createSample("cpu_usage_percent", nil, v.CPUUsage))
		samples = append(samples, createSample("memory_usage_percent", nil, v.MemoryPercent))
		samples = append(samples, createSample("memory_total_bytes", nil, float64(v.MemoryTotal)))
		samples = append(samples, createSample("memory_used_bytes", nil, float64(v.MemoryUsed)))
		samples = append(samples, createSample("disk_usage_percent", nil, v.DiskPercent))
		samples = append(samples, createSample("disk_total_bytes", nil, float64(v.DiskTotal)))
		samples = append(samples, createSample("disk_used_bytes", nil, float64(v.DiskUsed)))
		// 没有温度传感器时不输出
		if v.CPUTemperature != nil {
			samples = append(samples, createSample("cpu_temperature_celsius", nil, *v.CPUTemperature))
		}

	case *protocol.ContainerSnapshot:
		labels := map[string]string{
			"container_id":   v.ContainerID,
			"container_name": v.ContainerName,
		}
		samples = append(samples, createSample("cpu_percent", labels, v.CPUPercent))
		samples = append(samples, createSample("memory_used_bytes", labels, float64(v.MemoryUsed)))
		samples = append(samples, createSample("memory_limit_bytes", labels, float64(v.MemoryLimit)))
		samples = append(samples, createSample("network_rx_bytes", labels, float64(v.NetworkRx)))
		samples = append(samples, createSample("network_tx_bytes", labels, float64(v.NetworkTx)))

	case *protocol.ModelServerSnapshot:
		// 状态: running=1, 不可达=0
		running := 0.0
		if v.Running {
			running = 1.0
		}
		samples = append(samples, createSample("running", nil, running))
		samples = append(samples, createSample("model_count", nil, float64(v.ModelCount)))
		samples = append(samples, createSample("active_inferences", nil, float64(v.ActiveInferences)))
	}

	return samples
}

func createSample(name string, labels map[string]string, value float64) sample {
	return sample{name: name, labels: labels, value: value}
}

// publish 更新最近一次采样的 gauge
func (s *MetricService) publish(snapshot protocol.Snapshot) {
	for _, smp := range convertToSamples(snapshot) {
		switch snapshot.Family() {
		case protocol.FamilySystem:
			s.metrics.SystemValue.WithLabelValues(smp.name).Set(smp.value)
		case protocol.FamilyContainer:
			s.metrics.ContainerValue.WithLabelValues(smp.labels["container_id"], smp.labels["container_name"], smp.name).Set(smp.value)
		case protocol.FamilyModelServer:
			s.metrics.ModelServerValue.WithLabelValues(smp.name).Set(smp.value)
		}
	}
}
