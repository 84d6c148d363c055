package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	// KeyLogger 日志来源（access/logbook/business），对应传统日志框架的 logger name
	KeyLogger = "logger"

	KeyError      = "error"
	KeyDuration   = "duration_ms"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status"
	KeyComponent  = "component"
)

// Err 创建错误属性，err 为 nil 时返回会被 slog 忽略的空属性
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 以毫秒（浮点）记录耗时
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDuration, float64(d.Microseconds())/1000)
}

// Source 标记日志来源
func Source(name string) slog.Attr {
	return slog.String(KeyLogger, name)
}

// Component 组件名称属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
