package xconn

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
)

// DialFunc 与 http.Transport.DialContext 相同的拨号函数
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Client 客户端连接管理与出站管道
type Client struct {
	chain   ChainFactory
	capture CaptureFunc
}

// NewClient 创建客户端管道，chain 为 nil 时使用 Passthrough
func NewClient(chain ChainFactory, opts ...Option) *Client {
	if chain == nil {
		chain = Passthrough
	}
	o := buildOptions(opts)
	return &Client{chain: chain, capture: o.capture}
}

// DialContext 包装拨号函数，为每个出站连接创建 Conn 与拦截链
//
// dial 为 nil 时使用 net.Dialer。
func (cl *Client) DialContext(dial DialFunc) DialFunc {
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		nc, err := dial(ctx, network, address)
		if err != nil {
			return nil, err
		}
		c := NewConn(Outbound, nc.LocalAddr(), nc.RemoteAddr())
		return &trackedConn{Conn: nc, state: c, chain: cl.chain(c)}, nil
	}
}

// trackedConn 携带拦截状态的出站连接
type trackedConn struct {
	net.Conn
	state *Conn
	chain *Interceptor
}

func (tc *trackedConn) Close() error {
	tc.state.Close()
	return tc.Conn.Close()
}

// NetConn 返回底层连接
func (tc *trackedConn) NetConn() net.Conn {
	return tc.Conn
}

// lookupTracked 沿 NetConn 链查找 trackedConn，TLS 连接包装在 *tls.Conn 内
func lookupTracked(nc net.Conn) *trackedConn {
	for i := 0; nc != nil && i < 4; i++ {
		if tc, ok := nc.(*trackedConn); ok {
			return tc
		}
		u, ok := nc.(interface{ NetConn() net.Conn })
		if !ok {
			return nil
		}
		nc = u.NetConn()
	}
	return nil
}

// Transport 返回出站管道
//
// 获得连接时以请求 context 捕获快照并执行 OnWrite(*http.Request)，
// 请求写完时执行 OnFlush（在 Transport 的写 goroutine 上），
// 响应头到达后执行 OnRead(*http.Response)。
// 响应头早于请求写完到达时先执行 OnFlush，不等待请求体。
// 回调返回的错误会取消请求并由 RoundTrip 返回。
// 必须位于追踪装饰之内，快照才包含出站 span。
func (cl *Client) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, client: cl}
}

type transport struct {
	base   http.RoundTripper
	client *Client
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancelCause(req.Context())

	ex := &clientExchange{client: t.client, req: req, cancel: cancel}
	defer ex.finish()

	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn:      ex.gotConn,
		WroteRequest: ex.wroteRequest,
	})
	out := req.WithContext(ctx)

	resp, err := t.base.RoundTrip(out)
	if hookErr := ex.failure(); hookErr != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel(nil)
		return nil, hookErr
	}
	if err != nil {
		cancel(nil)
		return nil, err
	}
	if err := ex.read(resp); err != nil {
		_ = resp.Body.Close()
		cancel(nil)
		return nil, err
	}
	// 响应体读取仍依赖 ctx，关闭响应体时才释放
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel(nil)
	return err
}

// clientExchange 一次出站往返的拦截状态
//
// mu 保证同一交换内的回调不会并发：写 goroutine 上的 OnFlush
// 可能与响应头到达同时发生。
type clientExchange struct {
	client *Client
	req    *http.Request
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	conn     *Conn
	chain    *Interceptor
	releaseC func()
	flushed  bool // 当前连接上的 OnFlush 已执行
	err      error
	finished bool
}

func (ex *clientExchange) gotConn(info httptrace.GotConnInfo) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.finished {
		return
	}
	// Transport 重试时会再次获得连接
	ex.releaseLocked()

	if tc := lookupTracked(info.Conn); tc != nil && tc.state.acquire() {
		ex.conn, ex.chain, ex.releaseC = tc.state, tc.chain, tc.state.release
	} else {
		var c *Conn
		switch {
		case tc != nil:
			c = tc.state.derive()
		case info.Conn != nil:
			c = NewConn(Outbound, info.Conn.LocalAddr(), info.Conn.RemoteAddr())
		default:
			c = NewConn(Outbound, nil, nil)
		}
		ex.conn, ex.chain, ex.releaseC = c, ex.client.chain(c), c.Close
	}

	ex.flushed = false
	ex.conn.Attach(ex.client.capture(ex.req.Context()))
	err := ex.chain.OnWrite(ex.req.Context(), ex.conn, ex.req, nil, NextFuncs{})
	ex.failLocked(err)
}

func (ex *clientExchange) wroteRequest(info httptrace.WroteRequestInfo) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.finished || ex.conn == nil || ex.flushed {
		return
	}
	ex.flushLocked(info.Err)
}

// flushLocked 执行一次 OnFlush，writeErr 是 Transport 写请求的结果
func (ex *clientExchange) flushLocked(writeErr error) {
	ex.flushed = true
	err := ex.chain.OnFlush(context.Background(), ex.conn, NextFuncs{
		FlushFunc: func(context.Context) error { return writeErr },
	})
	// 写入失败由 Transport 自身返回，这里只记录处理器的错误
	if err != nil && !errors.Is(err, writeErr) {
		ex.failLocked(err)
	}
}

func (ex *clientExchange) read(resp *http.Response) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.conn == nil {
		// base 不触发 httptrace 时（非 http.Transport），在这里补齐写出回调
		c := NewConn(Outbound, nil, nil)
		ex.conn, ex.chain, ex.releaseC = c, ex.client.chain(c), c.Close
		ex.conn.Attach(ex.client.capture(ex.req.Context()))
		if err := ex.chain.OnWrite(ex.req.Context(), ex.conn, ex.req, nil, NextFuncs{}); err != nil {
			return err
		}
	}
	// 上游可能在请求体写完前应答（如 401、413），此时先补齐 OnFlush
	if !ex.flushed {
		ex.flushLocked(nil)
		if ex.err != nil {
			return ex.err
		}
	}
	return ex.chain.OnRead(ex.req.Context(), ex.conn, resp, NextFuncs{})
}

func (ex *clientExchange) failLocked(err error) {
	if err == nil || ex.err != nil {
		return
	}
	ex.err = err
	ex.cancel(err)
}

func (ex *clientExchange) failure() error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.err
}

func (ex *clientExchange) releaseLocked() {
	if ex.releaseC != nil {
		ex.releaseC()
		ex.releaseC = nil
	}
}

func (ex *clientExchange) finish() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.finished = true
	ex.releaseLocked()
}

// CloseIdleConnections 转发给 base
func (t *transport) CloseIdleConnections() {
	if ci, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}
