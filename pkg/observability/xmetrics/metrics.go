package xmetrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xgate/pkg/observability/xmetrics"

	MetricServerRequests = "xgate.http.server.requests"
	MetricServerDuration = "xgate.http.server.duration"
	MetricClientRequests = "xgate.http.client.requests"
	MetricClientDuration = "xgate.http.client.duration"

	outcomeOK    = "ok"
	outcomeError = "error"
)

type config struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// Option 定义 HTTP 指标的配置选项。
type Option func(*config)

// WithInstrumentationName 设置 instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// HTTP 入站与出站请求指标
type HTTP struct {
	serverTotal    metric.Int64Counter
	serverDuration metric.Float64Histogram
	clientTotal    metric.Int64Counter
	clientDuration metric.Float64Histogram
}

// NewHTTP 创建 HTTP 指标。
func NewHTTP(opts ...Option) (*HTTP, error) {
	cfg := &config{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	h := &HTTP{}
	var err error
	if h.serverTotal, err = meter.Int64Counter(MetricServerRequests,
		metric.WithDescription("inbound requests"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, MetricServerRequests, err)
	}
	if h.serverDuration, err = meter.Float64Histogram(MetricServerDuration,
		metric.WithDescription("inbound request duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, MetricServerDuration, err)
	}
	if h.clientTotal, err = meter.Int64Counter(MetricClientRequests,
		metric.WithDescription("outbound requests"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, MetricClientRequests, err)
	}
	if h.clientDuration, err = meter.Float64Histogram(MetricClientDuration,
		metric.WithDescription("outbound request duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, MetricClientDuration, err)
	}
	return h, nil
}

// Middleware 记录入站请求
func (h *HTTP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.record(r.Context(), h.serverTotal, h.serverDuration, start, sw.status, nil,
			attribute.String("http.request.method", r.Method))
	})
}

// Transport 记录出站请求，base 为 nil 时使用 http.DefaultTransport
func (h *HTTP) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, h: h}
}

type transport struct {
	base http.RoundTripper
	h    *HTTP
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.h.record(req.Context(), t.h.clientTotal, t.h.clientDuration, start, status, err,
		attribute.String("http.request.method", req.Method),
		attribute.String("server.address", req.URL.Host),
	)
	return resp, err
}

// CloseIdleConnections 转发给 base
func (t *transport) CloseIdleConnections() {
	if ci, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

func (h *HTTP) record(ctx context.Context, total metric.Int64Counter, duration metric.Float64Histogram,
	start time.Time, status int, err error, extra ...attribute.KeyValue) {
	outcome := outcomeOK
	if err != nil || status >= http.StatusInternalServerError {
		outcome = outcomeError
	}
	attrs := make([]attribute.KeyValue, 0, 2+len(extra))
	attrs = append(attrs, extra...)
	attrs = append(attrs,
		attribute.Int("http.response.status_code", status),
		attribute.String("outcome", outcome),
	)
	set := metric.WithAttributes(attrs...)
	total.Add(ctx, 1, set)
	duration.Record(ctx, time.Since(start).Seconds(), set)
}

// statusWriter 记录状态码，Unwrap 保持对 http.ResponseController 透明
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
