package xwirelog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omeyang/xgate/pkg/context/xctx"
	"github.com/omeyang/xgate/pkg/net/xconn"
	"github.com/omeyang/xgate/pkg/observability/xcorr"
	"github.com/omeyang/xgate/pkg/observability/xlog"
	"github.com/omeyang/xgate/pkg/observability/xtrace"
)

// 日志消息
const (
	MsgIncomingRequest  = "Incoming Request"
	MsgOutgoingRequest  = "Outgoing Request"
	MsgIncomingResponse = "Incoming Response"
	MsgOutgoingResponse = "Outgoing Response"
)

// 日志属性 Key
const (
	KeyCorrelation = "correlation"
	KeyType        = "type"
	KeyOrigin      = "origin"
	KeyURI         = "uri"
	KeyProtocol    = "protocol"
	KeyRemote      = "remote"
	KeyHeaders     = "headers"
)

// SourceName 日志来源名
const SourceName = "logbook"

// ErrNilLogger 未提供 logger
var ErrNilLogger = errors.New("xwirelog: nil logger")

// obfuscated 敏感头的替换值
const obfuscated = "XXX"

// defaultObfuscate 默认脱敏的请求头
var defaultObfuscate = []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie"}

// Option Logbook 选项
type Option func(*Logbook)

// WithCorrelation 指定关联 ID 解析器，默认 xcorr.New(xtrace.NewSource())
func WithCorrelation(r xcorr.Resolver) Option {
	return func(lb *Logbook) {
		if r != nil {
			lb.resolver = r
		}
	}
}

// WithHeaders 是否记录请求头与响应头，默认不记录
func WithHeaders(enabled bool) Option {
	return func(lb *Logbook) {
		lb.headers = enabled
	}
}

// WithObfuscate 追加需要脱敏的头
func WithObfuscate(headers ...string) Option {
	return func(lb *Logbook) {
		for _, h := range headers {
			lb.obfuscate[http.CanonicalHeaderKey(h)] = struct{}{}
		}
	}
}

// WithClock 替换时钟，用于测试耗时
func WithClock(now func() time.Time) Option {
	return func(lb *Logbook) {
		if now != nil {
			lb.now = now
		}
	}
}

// Logbook 请求/响应日志
type Logbook struct {
	logger    xlog.Logger
	resolver  xcorr.Resolver
	headers   bool
	obfuscate map[string]struct{}
	now       func() time.Time
}

// New 创建 Logbook
func New(logger xlog.Logger, opts ...Option) (*Logbook, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	lb := &Logbook{
		logger:    logger.With(xlog.Source(SourceName)),
		obfuscate: make(map[string]struct{}, len(defaultObfuscate)),
		now:       time.Now,
	}
	for _, h := range defaultObfuscate {
		lb.obfuscate[h] = struct{}{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(lb)
		}
	}
	if lb.resolver == nil {
		lb.resolver = xcorr.New(xtrace.NewSource())
	}
	return lb, nil
}

// ServerHandler 为一个入站连接创建处理器
func (lb *Logbook) ServerHandler() xconn.Handler {
	return &serverHandler{lb: lb}
}

// ClientHandler 为一个出站连接创建处理器
func (lb *Logbook) ClientHandler() xconn.Handler {
	return &clientHandler{lb: lb}
}

func (lb *Logbook) log(ctx context.Context, msg string, attrs []slog.Attr) {
	lb.logger.Info(ctx, msg, attrs...)
}

func (lb *Logbook) requestAttrs(correlation, origin string, r *http.Request) []slog.Attr {
	attrs := []slog.Attr{
		slog.String(KeyCorrelation, correlation),
		slog.String(KeyType, "request"),
		slog.String(KeyOrigin, origin),
		slog.String(KeyProtocol, r.Proto),
		slog.String(xlog.KeyMethod, r.Method),
		slog.String(KeyURI, requestURI(r)),
	}
	if r.RemoteAddr != "" {
		attrs = append(attrs, slog.String(KeyRemote, r.RemoteAddr))
	}
	if lb.headers {
		attrs = append(attrs, lb.headerAttr(r.Header))
	}
	return attrs
}

func (lb *Logbook) responseAttrs(correlation, origin string, resp *http.Response, elapsed time.Duration) []slog.Attr {
	attrs := []slog.Attr{
		slog.String(KeyCorrelation, correlation),
		slog.String(KeyType, "response"),
		slog.String(KeyOrigin, origin),
		slog.String(KeyProtocol, resp.Proto),
		slog.Int(xlog.KeyStatusCode, resp.StatusCode),
		xlog.Duration(elapsed),
	}
	if lb.headers {
		attrs = append(attrs, lb.headerAttr(resp.Header))
	}
	return attrs
}

func (lb *Logbook) headerAttr(h http.Header) slog.Attr {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, ok := lb.obfuscate[http.CanonicalHeaderKey(k)]; ok {
			out[k] = obfuscated
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return slog.Any(KeyHeaders, out)
}

// requestURI 出站请求没有 RequestURI，使用完整 URL
func requestURI(r *http.Request) string {
	if r.URL != nil && r.URL.Host != "" {
		return r.URL.String()
	}
	if r.RequestURI != "" {
		return r.RequestURI
	}
	if r.URL != nil {
		return r.URL.RequestURI()
	}
	return ""
}

// serverHandler 入站方向：Incoming Request / Outgoing Response
//
// 同一连接上的交换不会并发，字段无需加锁。
type serverHandler struct {
	lb          *Logbook
	correlation func() string
	start       time.Time
}

var _ xconn.Handler = (*serverHandler)(nil)

func (h *serverHandler) Read(ctx context.Context, _ *xconn.Conn, msg any, next xconn.Next) error {
	req, ok := msg.(*http.Request)
	if !ok {
		return next.Read(ctx, msg)
	}
	h.start = h.lb.now()
	h.correlation = xcorr.Supplier(h.lb.resolver, req)
	ctx = withCorrelation(ctx, h.correlation())
	h.lb.log(ctx, MsgIncomingRequest, h.lb.requestAttrs(h.correlation(), "remote", req))
	return next.Read(ctx, msg)
}

// Write 连接快照不含 Read 写入的关联 ID，记录响应头时补回
func (h *serverHandler) Write(ctx context.Context, _ *xconn.Conn, msg any, done xconn.Completion, next xconn.Next) error {
	if resp, ok := msg.(*http.Response); ok {
		var id string
		if h.correlation != nil {
			id = h.correlation()
			ctx = withCorrelation(ctx, id)
		}
		h.lb.log(ctx, MsgOutgoingResponse, h.lb.responseAttrs(id, "local", resp, h.lb.now().Sub(h.start)))
	}
	return next.Write(ctx, msg, done)
}

func (h *serverHandler) Flush(ctx context.Context, _ *xconn.Conn, next xconn.Next) error {
	return next.Flush(ctx)
}

// clientHandler 出站方向：Outgoing Request / Incoming Response
type clientHandler struct {
	lb          *Logbook
	correlation string
	start       time.Time
}

var _ xconn.Handler = (*clientHandler)(nil)

func (h *clientHandler) Read(ctx context.Context, _ *xconn.Conn, msg any, next xconn.Next) error {
	if resp, ok := msg.(*http.Response); ok {
		h.lb.log(ctx, MsgIncomingResponse, h.lb.responseAttrs(h.correlation, "remote", resp, h.lb.now().Sub(h.start)))
	}
	return next.Read(ctx, msg)
}

func (h *clientHandler) Write(ctx context.Context, _ *xconn.Conn, msg any, done xconn.Completion, next xconn.Next) error {
	if req, ok := msg.(*http.Request); ok {
		h.start = h.lb.now()
		// 出站请求沿用入站请求解析出的关联 ID
		h.correlation = xctx.CorrelationID(ctx)
		if h.correlation == "" {
			h.correlation = h.lb.resolver.Resolve(req)
		}
		h.lb.log(ctx, MsgOutgoingRequest, h.lb.requestAttrs(h.correlation, "local", req))
	}
	return next.Write(ctx, msg, done)
}

func (h *clientHandler) Flush(ctx context.Context, _ *xconn.Conn, next xconn.Next) error {
	return next.Flush(ctx)
}

// withCorrelation 把关联 ID 写入 ctx，供日志 enrich 输出 correlationId
func withCorrelation(ctx context.Context, id string) context.Context {
	if xctx.CorrelationID(ctx) == id {
		return ctx
	}
	if withID, err := xctx.WithCorrelationID(ctx, id); err == nil {
		return withID
	}
	return ctx
}
