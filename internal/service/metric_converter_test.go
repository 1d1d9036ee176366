package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/homedash/internal/protocol"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToSamples(t *testing.T) {
	system := validSystem(time.Now())
	samples := convertToSamples(system)
	assert.Len(t, samples, 8)

	system.CPUTemperature = nil
	assert.Len(t, convertToSamples(system), 7, "无温度传感器时不输出温度")

	unavailable := convertToSamples(protocol.UnavailableModelServer(time.Now(), "refused"))
	require.Len(t, unavailable, 3)
	assert.Equal(t, sample{name: "running", value: 0}, unavailable[0])
}

func TestRecordPublishesGauges(t *testing.T) {
	svc, _ := newTestMetricService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordSystem(ctx, validSystem(time.Now())))
	require.NoError(t, svc.RecordModelServer(ctx, validModelServer(time.Now())))
	_, err := svc.RecordContainers(ctx, []*protocol.ContainerSnapshot{validContainer(time.Now(), "aaaaaaaaaaaa")})
	require.NoError(t, err)

	assert.Equal(t, 12.5, testutil.ToFloat64(svc.metrics.SystemValue.WithLabelValues("cpu_usage_percent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.ModelServerValue.WithLabelValues("running")))
	assert.Equal(t, 3.0, testutil.ToFloat64(svc.metrics.ModelServerValue.WithLabelValues("model_count")))
	assert.Equal(t, 3.2, testutil.ToFloat64(svc.metrics.ContainerValue.WithLabelValues("aaaaaaaaaaaa", "svc-aaaaaaaaaaaa", "cpu_percent")))

	// 下一轮容器列表变化后旧容器的 gauge 被移除
	_, err = svc.RecordContainers(ctx, []*protocol.ContainerSnapshot{validContainer(time.Now(), "bbbbbbbbbbbb")})
	require.NoError(t, err)
	assert.Equal(t, 5, testutil.CollectAndCount(svc.metrics.ContainerValue))
}

func TestRejectedSnapshotIsNotPublished(t *testing.T) {
	svc, _ := newTestMetricService(t)
	bad := validSystem(time.Now())
	bad.CPUUsage = 100.01

	require.ErrorIs(t, svc.RecordSystem(context.Background(), bad), ErrInvalidSnapshot)
	assert.Equal(t, 0, testutil.CollectAndCount(svc.metrics.SystemValue))
}
