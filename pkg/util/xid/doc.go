// Package xid 生成日志关联用的回退标识。
//
// 当请求到达时没有活动的追踪上下文（例如服务间调用早于追踪装饰），
// xcorr 需要一个新的关联标识。xid 使用 Sonyflake 生成按时间有序、
// 全局唯一的 63 位 ID，并以 base36 字符串输出；Sonyflake 不可用时
// （机器 ID 无法确定、时间溢出）回退为 UUIDv4。
//
// # 机器 ID
//
// 按顺序尝试：XID_MACHINE_ID 环境变量 → POD_NAME 哈希 → HOSTNAME 哈希 →
// os.Hostname() 哈希。多副本部署建议显式设置 XID_MACHINE_ID。
package xid
