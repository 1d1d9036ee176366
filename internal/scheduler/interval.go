package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// intervalSchedule 固定间隔的调度计划，精确到毫秒
// cron.Every 会把间隔截断到整秒
type intervalSchedule struct {
	interval time.Duration
}

func every(interval time.Duration) cron.Schedule {
	return intervalSchedule{interval: interval}
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}
