// Package xconf 加载网关配置，基于 koanf。
//
// # 分层
//
// 配置按以下顺序叠加，后者覆盖前者：
//
//  1. 内嵌默认值（WithDefaults，rawbytes provider）
//  2. 配置文件（YAML 或 JSON，按扩展名识别）
//  3. 环境变量（WithEnv，caarlos0/env 按结构体 env 标签覆盖）
//
// 环境变量在 Unmarshal 时作用于目标结构体，不写回 koanf 实例。
//
// # 热重载
//
// Watch 基于 fsnotify 监视配置文件所在目录（编辑器可能先删除再创建文件），
// 内置防抖。Reload 重新叠加默认值与文件，解析失败时保留旧配置。
// 哪些字段可以在运行时生效由调用方决定，网关只应用 log.level。
//
// # 并发安全
//
// Client、Unmarshal、Reload 可以并发调用。Client 返回的实例在 Reload
// 之后仍指向旧配置，需要最新值时重新调用 Client。
package xconf
