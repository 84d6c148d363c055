// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 回退关联 ID 生成，基于 sonyflake，失败时退回 uuid
//   - xlru: 按条目过期的 LRU 缓存，泛型支持
package util
