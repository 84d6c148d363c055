package xsnap

import "sync/atomic"

// Slot 单个连接持有的快照槽位
//
// 每个连接独占一个 Slot。请求开始时 Store 新快照，
// 连接关闭时 Clear。零值可用。
type Slot struct {
	p atomic.Pointer[Snapshot]
}

// Store 替换当前快照
func (s *Slot) Store(snap *Snapshot) {
	s.p.Store(snap)
}

// Load 返回当前快照，未捕获时返回 nil
func (s *Slot) Load() *Snapshot {
	return s.p.Load()
}

// Clear 丢弃当前快照
func (s *Slot) Clear() {
	s.p.Store(nil)
}
