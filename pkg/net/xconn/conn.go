package xconn

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/omeyang/xgate/pkg/context/xsnap"
)

// Direction 连接方向
type Direction uint8

const (
	// Inbound 服务端接受的连接
	Inbound Direction = iota + 1
	// Outbound 客户端发起的连接
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

var connSeq atomic.Uint64

// Conn 一个连接的拦截状态，独占一个快照槽位
//
// 所有方法对 nil 接收者安全。
type Conn struct {
	id     uint64
	parent uint64
	dir    Direction
	local  net.Addr
	remote net.Addr

	slot   xsnap.Slot
	busy   atomic.Bool
	closed atomic.Bool
}

// NewConn 创建连接状态，地址可以为 nil
func NewConn(dir Direction, local, remote net.Addr) *Conn {
	return &Conn{
		id:     connSeq.Add(1),
		dir:    dir,
		local:  local,
		remote: remote,
	}
}

// ID 进程内单调递增的连接编号
func (c *Conn) ID() uint64 {
	if c == nil {
		return 0
	}
	return c.id
}

// ParentID 派生 Conn 所属连接的编号，非派生 Conn 返回 0
func (c *Conn) ParentID() uint64 {
	if c == nil {
		return 0
	}
	return c.parent
}

// Direction 连接方向
func (c *Conn) Direction() Direction {
	if c == nil {
		return 0
	}
	return c.dir
}

// LocalAddr 本端地址
func (c *Conn) LocalAddr() net.Addr {
	if c == nil {
		return nil
	}
	return c.local
}

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() net.Addr {
	if c == nil {
		return nil
	}
	return c.remote
}

// Capture 捕获 ctx 并作为当前快照保存
//
// 已关闭的连接不再保存快照，返回值仍是捕获结果。
func (c *Conn) Capture(ctx context.Context) *xsnap.Snapshot {
	snap := xsnap.Capture(ctx)
	c.Attach(snap)
	return snap
}

// Attach 保存外部捕获的快照，例如 xtrace.Source.Capture 的结果
func (c *Conn) Attach(snap *xsnap.Snapshot) {
	if c == nil || c.closed.Load() {
		return
	}
	c.slot.Store(snap)
}

// Snapshot 返回当前快照，未捕获或已关闭时返回 nil
func (c *Conn) Snapshot() *xsnap.Snapshot {
	if c == nil {
		return nil
	}
	return c.slot.Load()
}

// Close 丢弃快照，可重复调用
func (c *Conn) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.slot.Clear()
}

// Closed 报告连接是否已关闭
func (c *Conn) Closed() bool {
	return c != nil && c.closed.Load()
}

// acquire 占用连接，连接已被另一个交换占用时返回 false
func (c *Conn) acquire() bool {
	return c.busy.CompareAndSwap(false, true)
}

func (c *Conn) release() {
	c.busy.Store(false)
}

// derive 为并发交换派生临时 Conn
func (c *Conn) derive() *Conn {
	d := NewConn(c.dir, c.local, c.remote)
	d.parent = c.id
	return d
}

// addr 把 "host:port" 字符串表示为 net.Addr
type addr string

func (a addr) Network() string { return "tcp" }
func (a addr) String() string  { return string(a) }
