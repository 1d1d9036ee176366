package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 采集调度自身的运行指标
type Metrics struct {
	CollectTotal    *prometheus.CounterVec   // 每个指标族的采集次数，按结果区分
	CollectDuration *prometheus.HistogramVec // 每个指标族的采集耗时
	RecordsTotal    *prometheus.CounterVec   // 写入的记录数
	RejectedTotal   *prometheus.CounterVec   // 校验未通过被丢弃的快照数
	CleanupDeleted  *prometheus.CounterVec   // 清理删除的记录数
	CleanupErrors   *prometheus.CounterVec
	SchedulerUp     prometheus.Gauge

	// 最近一次写入的采样值
	SystemValue      *prometheus.GaugeVec
	ContainerValue   *prometheus.GaugeVec
	ModelServerValue *prometheus.GaugeVec
}

// NewMetrics 创建并注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CollectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homedash",
			Name:      "collect_total",
			Help:      "Number of collection attempts per metric family and result.",
		}, []string{"family", "result"}),
		CollectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "homedash",
			Name:      "collect_duration_seconds",
			Help:      "Collection duration per metric family.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"family"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homedash",
			Name:      "records_total",
			Help:      "Number of records persisted per metric family.",
		}, []string{"family"}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homedash",
			Name:      "records_rejected_total",
			Help:      "Number of snapshots rejected by range validation.",
		}, []string{"family"}),
		CleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homedash",
			Name:      "cleanup_deleted_total",
			Help:      "Number of records deleted by retention cleanup.",
		}, []string{"family"}),
		CleanupErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homedash",
			Name:      "cleanup_errors_total",
			Help:      "Number of failed retention cleanups per metric family.",
		}, []string{"family"}),
		SchedulerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "homedash",
			Name:      "scheduler_running",
			Help:      "1 when the metrics scheduler is running.",
		}),
		SystemValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "homedash",
			Subsystem: "system",
			Name:      "value",
			Help:      "Most recently recorded host metric.",
		}, []string{"metric"}),
		ContainerValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "homedash",
			Subsystem: "container",
			Name:      "value",
			Help:      "Most recently recorded container metric.",
		}, []string{"container_id", "container_name", "metric"}),
		ModelServerValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "homedash",
			Subsystem: "model_server",
			Name:      "value",
			Help:      "Most recently recorded model server metric.",
		}, []string{"metric"}),
	}
	reg.MustRegister(
		m.CollectTotal,
		m.CollectDuration,
		m.RecordsTotal,
		m.RejectedTotal,
		m.CleanupDeleted,
		m.CleanupErrors,
		m.SchedulerUp,
		m.SystemValue,
		m.ContainerValue,
		m.ModelServerValue,
	)
	return m
}

// NewNopMetrics 注册到独立的 registry，测试中使用
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
