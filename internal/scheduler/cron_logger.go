package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger 将 cron 内部日志输出到 zap
type cronLogger struct {
	logger *zap.Logger
}

var _ cron.Logger = (*cronLogger)(nil)

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		// SkipIfStillRunning 丢弃了本次触发
		l.logger.Warn("上一次任务仍在执行，跳过本次调度", fields(keysAndValues)...)
		return
	}
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
