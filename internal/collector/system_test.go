package collector

import (
	"context"
	"testing"

	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundAndPercent(t *testing.T) {
	assert.Equal(t, 12.35, round(12.345678, 2))
	assert.Equal(t, 45.7, round(45.66, 1))
	assert.Equal(t, 25.0, percent(1, 4))
	assert.Equal(t, 0.0, percent(1, 0))
	assert.Equal(t, 100.0, clampPercent(100.4))
	assert.Equal(t, 0.0, clampPercent(-0.1))
}

func TestPickCPUTemperature(t *testing.T) {
	temps := []sensors.TemperatureStat{
		{SensorKey: "nvme_composite", Temperature: 38.85},
		{SensorKey: "coretemp_core_0", Temperature: 51.0},
		{SensorKey: "coretemp_package_id_0", Temperature: 54.26},
	}
	v := pickCPUTemperature(temps)
	require.NotNil(t, v)
	assert.Equal(t, 54.3, *v)

	assert.Nil(t, pickCPUTemperature(nil))
	assert.Nil(t, pickCPUTemperature([]sensors.TemperatureStat{{SensorKey: "nvme_composite", Temperature: 40}}))
	assert.Nil(t, pickCPUTemperature([]sensors.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 0}}))
}

func TestSystemCollectorCollect(t *testing.T) {
	c := NewSystemCollector("/")
	if !c.Available(context.Background()) {
		t.Skip("当前环境无法读取系统信息")
	}

	snapshot, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snapshot.CPUUsage, 0.0)
	assert.LessOrEqual(t, snapshot.CPUUsage, 100.0)
	assert.LessOrEqual(t, snapshot.MemoryUsed, snapshot.MemoryTotal)
	assert.LessOrEqual(t, snapshot.DiskUsed, snapshot.DiskTotal)
	assert.LessOrEqual(t, snapshot.MemoryPercent, 100.0)
	assert.LessOrEqual(t, snapshot.DiskPercent, 100.0)
}
