// Package xrotate 提供日志文件轮转，底层使用 lumberjack。
//
// Rotator 实现 io.WriteCloser，可直接作为 xlog 的输出目标：
//
//	logger, cleanup, err := xlog.New().
//		SetRotation("/var/log/xgate/gateway.log", xrotate.WithMaxSize(100)).
//		Build()
package xrotate
