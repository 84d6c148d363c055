// Package xlru 提供按条目过期的并发安全 LRU 缓存，基于 hashicorp/golang-lru/v2。
//
// 每个条目的过期时间取 Config.TTL 与 SetUntil 给出的截止时间中较早者，
// 读取时检查，不启动后台清理 goroutine。网关用它缓存已校验的 JWT，
// 截止时间取 token 的 exp。
package xlru
