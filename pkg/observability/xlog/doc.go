// Package xlog 提供基于 log/slog 的结构化日志。
//
// # 设计理念
//
//   - 所有方法强制传入 context.Context，追踪字段随 context 传播
//   - EnrichHandler 在每条记录上自动追加 xctx 中的 traceId/spanId 等字段，
//     xctx 缺失时回退读取 context 中的 OpenTelemetry span
//   - Builder 链式配置，Build 返回 cleanup 用于关闭轮转文件
//   - 动态级别：LevelVar 支持运行时调整（配置热加载使用）
//
// # 快速开始
//
//	logger, cleanup, err := xlog.New().
//		SetFormat("json").
//		SetLevel(xlog.LevelInfo).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "Some business logging ...", slog.String(xlog.KeyLogger, "business"))
//
// # 日志来源
//
// 网关中不同来源的日志通过 KeyLogger 属性区分：access（访问日志）、
// logbook（请求/响应日志）、business（业务日志）。
package xlog
