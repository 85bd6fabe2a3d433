package storage

import (
	"context"
	"time"

	ilog "cdpaction/internal/logger"

	"gorm.io/gorm/logger"
)

// slowThreshold 慢查询阈值
const slowThreshold = 200 * time.Millisecond

// GormLogger 将 GORM 日志桥接到项目日志器
type GormLogger struct {
	ilog.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger 创建 GormLogger，默认只记录告警与错误
func NewGormLogger(l ilog.Logger) *GormLogger {
	if l == nil {
		l = ilog.NewNop()
	}
	return &GormLogger{Logger: l, LogLevel: logger.Warn}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info(msg, "data", data)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn(msg, "data", data)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error(msg, "data", data)
	}
}

// Trace 记录 SQL 执行情况
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{"sql", sql, "rows", rows, "timeMs", float64(elapsed.Microseconds()) / 1e3}

	switch {
	case err != nil && !isNotFound(err) && l.LogLevel >= logger.Error:
		l.Logger.Err(err, "SQL执行错误", fields...)
	case elapsed > slowThreshold && l.LogLevel >= logger.Warn:
		l.Logger.Warn("慢SQL查询", append(fields, "threshold", slowThreshold.String())...)
	case l.LogLevel >= logger.Info:
		l.Logger.Debug("SQL执行", fields...)
	}
}
