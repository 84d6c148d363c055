package xtrace

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgate/pkg/context/xctx"
)

// instrumentationName otel instrumentation scope
const instrumentationName = "github.com/omeyang/xgate/pkg/observability/xtrace"

// Option Tracing 选项
type Option func(*Tracing)

// WithTracerProvider 指定 TracerProvider，默认使用 otel 全局 provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracing) {
		if tp != nil {
			t.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithPropagator 指定传播器，默认 Propagator()
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Tracing) {
		if p != nil {
			t.propagator = p
		}
	}
}

// Tracing 入站与出站的追踪装饰
//
// 与请求/响应日志开关无关，总是安装。
type Tracing struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracing 创建追踪装饰
func NewTracing(opts ...Option) *Tracing {
	t := &Tracing{}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.tracer == nil {
		t.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	if t.propagator == nil {
		t.propagator = Propagator()
	}
	return t
}

// Propagator 返回装饰使用的传播器
func (t *Tracing) Propagator() propagation.TextMapPropagator {
	return t.propagator
}

// =============================================================================
// 入站装饰
// =============================================================================

// ServerMiddleware 为每个入站请求创建 server span
//
// 从入站头提取远端上下文（traceparent 或 B3），span 写入 request context，
// traceId/spanId 同步到 xctx；入站 X-Request-ID 保留为 requestId。
// 5xx 响应把 span 状态标记为 Error。
func (t *Tracing) ServerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := t.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := t.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("client.address", r.RemoteAddr),
			),
		)
		defer span.End()

		ctx = SyncContext(ctx, span.SpanContext())
		if rid := r.Header.Get(HeaderRequestID); rid != "" {
			if withID, err := xctx.WithRequestID(ctx, rid); err == nil {
				ctx = withID
			}
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}

// statusWriter 记录状态码，Flush/Unwrap 保持对 http.ResponseController 透明
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Flush() {
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// =============================================================================
// 出站装饰
// =============================================================================

// Transport 为每个出站请求创建 client span 并写入传播头
//
// base 为 nil 时使用 http.DefaultTransport。出站请求被 Clone，调用方的请求不被修改。
// 当前 span 作为父级同时记录到 xctx.ParentSpanID，
// 未采样（非 sdk 记录）的 span 也能写出 X-B3-ParentSpanId。
// 日志使用的 xctx spanId 不被覆盖，仍是入站 server span。
func (t *Tracing) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &tracingTransport{base: base, t: t}
}

type tracingTransport struct {
	base http.RoundTripper
	t    *Tracing
}

func (tt *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	parent := trace.SpanContextFromContext(ctx)

	ctx, span := tt.t.tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.URL.Host),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	if parent.IsValid() {
		if withParent, err := xctx.WithParentSpanID(ctx, parent.SpanID().String()); err == nil {
			ctx = withParent
		}
	}

	out := req.Clone(ctx)
	tt.t.propagator.Inject(ctx, propagation.HeaderCarrier(out.Header))

	resp, err := tt.base.RoundTrip(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

// CloseIdleConnections 转发给 base
func (tt *tracingTransport) CloseIdleConnections() {
	if ci, ok := tt.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}
