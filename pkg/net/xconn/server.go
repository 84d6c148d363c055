package xconn

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xgate/pkg/observability/xlog"
)

type bindingKey struct{}

// binding ConnContext 写入连接 context 的拦截状态
type binding struct {
	conn  *Conn
	chain *Interceptor
}

// Server 服务端连接管理与请求管道
type Server struct {
	chain   ChainFactory
	capture CaptureFunc
	conns   sync.Map // net.Conn → *Conn
	open    atomic.Int64
}

// NewServer 创建服务端管道，chain 为 nil 时使用 Passthrough
func NewServer(chain ChainFactory, opts ...Option) *Server {
	if chain == nil {
		chain = Passthrough
	}
	o := buildOptions(opts)
	return &Server{chain: chain, capture: o.capture}
}

// ConnContext 用作 http.Server.ConnContext，为新连接创建 Conn 与拦截链
func (s *Server) ConnContext(ctx context.Context, nc net.Conn) context.Context {
	c := NewConn(Inbound, nc.LocalAddr(), nc.RemoteAddr())
	s.conns.Store(nc, c)
	s.open.Add(1)
	return context.WithValue(ctx, bindingKey{}, &binding{conn: c, chain: s.chain(c)})
}

// ConnState 用作 http.Server.ConnState，连接关闭或被劫持时丢弃快照
func (s *Server) ConnState(nc net.Conn, state http.ConnState) {
	if state != http.StateClosed && state != http.StateHijacked {
		return
	}
	if v, ok := s.conns.LoadAndDelete(nc); ok {
		v.(*Conn).Close()
		s.open.Add(-1)
	}
}

// Install 把 ConnContext/ConnState 安装到 srv，保留 srv 已有的钩子
func (s *Server) Install(srv *http.Server) {
	prevCtx := srv.ConnContext
	srv.ConnContext = func(ctx context.Context, nc net.Conn) context.Context {
		if prevCtx != nil {
			ctx = prevCtx(ctx, nc)
		}
		return s.ConnContext(ctx, nc)
	}
	prevState := srv.ConnState
	srv.ConnState = func(nc net.Conn, state http.ConnState) {
		s.ConnState(nc, state)
		if prevState != nil {
			prevState(nc, state)
		}
	}
}

// Open 返回尚未关闭的连接数
func (s *Server) Open() int {
	return int(s.open.Load())
}

// Handler 请求管道
//
// 以请求 context 捕获连接快照，经 OnRead 把请求交给 next；
// 响应头、响应体与刷新分别经过 OnWrite、OnWrite、OnFlush。
// 响应头被拦截链拒绝时后续写入返回该错误，客户端收到 500。
// 必须安装在追踪装饰之内，快照才包含本次请求的 span。
func (s *Server) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, chain, done := s.exchange(r)
		defer done()

		c.Attach(s.capture(r.Context()))

		iw := &interceptWriter{rw: w, conn: c, chain: chain, req: r}
		err := chain.OnRead(r.Context(), c, r, NextFuncs{
			ReadFunc: func(ctx context.Context, msg any) error {
				req, ok := msg.(*http.Request)
				if !ok {
					return errUnexpectedMessage
				}
				next.ServeHTTP(iw, req.WithContext(ctx))
				return nil
			},
		})
		if err != nil {
			xlog.Error(r.Context(), "xconn: inbound exchange failed", xlog.Err(err))
			// 拦截链已失败，直接写底层 ResponseWriter
			if !iw.headerSent && !iw.hijacked {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return
		}
		// 处理器没有写出任何内容时，补齐隐式的 200 响应头
		if !iw.wroteHeader && !iw.hijacked {
			iw.WriteHeader(http.StatusOK)
		}
		switch {
		case iw.err == nil || iw.hijacked:
		case !iw.headerSent:
			xlog.Error(r.Context(), "xconn: response head rejected", xlog.Err(iw.err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		default:
			xlog.Debug(r.Context(), "xconn: response write failed", xlog.Err(iw.err))
		}
	})
}

// exchange 选择本次请求使用的 Conn：连接空闲时使用连接本身，
// 连接上已有并发交换或请求未经过 ConnContext 时使用临时 Conn
func (s *Server) exchange(r *http.Request) (*Conn, *Interceptor, func()) {
	b, _ := r.Context().Value(bindingKey{}).(*binding)
	if b == nil {
		c := NewConn(Inbound, nil, addr(r.RemoteAddr))
		return c, s.chain(c), c.Close
	}
	if b.conn.acquire() {
		return b.conn, b.chain, b.conn.release
	}
	c := b.conn.derive()
	return c, s.chain(c), c.Close
}

var errUnexpectedMessage = errors.New("xconn: unexpected message type")

// interceptWriter 把 ResponseWriter 的调用转换为拦截器回调
//
// 写入与刷新可能来自其他 goroutine（ReverseProxy 的刷新定时器），
// 因此以 context.Background() 为基础 context，值完全来自快照。
type interceptWriter struct {
	rw    http.ResponseWriter
	conn  *Conn
	chain *Interceptor
	req   *http.Request

	wroteHeader bool // 处理器已调用 WriteHeader
	headerSent  bool // 响应头已写到底层 ResponseWriter
	hijacked    bool
	status      int
	written     int64
	err         error
}

func (w *interceptWriter) Header() http.Header {
	return w.rw.Header()
}

func (w *interceptWriter) WriteHeader(code int) {
	if w.wroteHeader || w.hijacked {
		return
	}
	w.wroteHeader = true
	w.status = code

	head := &http.Response{
		Status:     http.StatusText(code),
		StatusCode: code,
		Proto:      w.req.Proto,
		ProtoMajor: w.req.ProtoMajor,
		ProtoMinor: w.req.ProtoMinor,
		Header:     w.rw.Header(),
		Request:    w.req,
	}
	w.complete(w.chain.OnWrite(context.Background(), w.conn, head, w.complete, w.next()))
}

// Write 之前的写入或刷新失败后不再写出，直接返回首个错误
func (w *interceptWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return 0, w.err
	}
	before := w.written
	err := w.chain.OnWrite(context.Background(), w.conn, p, w.complete, w.next())
	w.complete(err)
	return int(w.written - before), err
}

func (w *interceptWriter) Flush() {
	_ = w.FlushError()
}

// FlushError 供 http.ResponseController 使用
func (w *interceptWriter) FlushError() error {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return w.err
	}
	err := w.chain.OnFlush(context.Background(), w.conn, w.next())
	w.complete(err)
	return err
}

// Hijack 供协议升级使用，劫持后不再经过拦截器
func (w *interceptWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	nc, brw, err := http.NewResponseController(w.rw).Hijack()
	if err == nil {
		w.hijacked = true
	}
	return nc, brw, err
}

func (w *interceptWriter) Unwrap() http.ResponseWriter {
	return w.rw
}

func (w *interceptWriter) complete(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}

// next 实际执行写入的阶段
func (w *interceptWriter) next() Next {
	return NextFuncs{
		WriteFunc: func(_ context.Context, msg any, done Completion) error {
			var err error
			switch m := msg.(type) {
			case *http.Response:
				w.rw.WriteHeader(m.StatusCode)
				w.headerSent = true
			case []byte:
				var n int
				n, err = w.rw.Write(m)
				w.written += int64(n)
				w.headerSent = true
			default:
				err = errUnexpectedMessage
			}
			if done != nil {
				done(err)
			}
			return err
		},
		FlushFunc: func(context.Context) error {
			return http.NewResponseController(w.rw).Flush()
		},
	}
}
