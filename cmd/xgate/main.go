// xgate 是传播追踪上下文的边缘网关。
//
// 用法:
//
//	xgate [--config xgate.yaml] [--addr :8080] [--logbook] [--log-level debug]
//
// 配置按 内置默认值 → --config 文件 → 环境变量 → 命令行参数 的顺序覆盖。
// 环境变量: MOCK_BACKEND, LOGBOOK_FILTER_ENABLED, XGATE_ADDR, XGATE_LOG_LEVEL, XGATE_JWT_SECRET。
//
// 指定 --config 时监视该文件，log.level 的变更即时生效，其余配置需要重启。
//
// 退出码:
//
//	0: 收到终止信号后正常退出
//	1: 启动失败或运行中出错
package main

import (
	"context"
	"fmt"
	"os"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	if err := createApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
