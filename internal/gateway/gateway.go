package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgate/pkg/net/xinstrument"
	"github.com/omeyang/xgate/pkg/observability/xcorr"
	"github.com/omeyang/xgate/pkg/observability/xlog"
	"github.com/omeyang/xgate/pkg/observability/xmetrics"
	"github.com/omeyang/xgate/pkg/observability/xtrace"
	"github.com/omeyang/xgate/pkg/observability/xwirelog"
	"github.com/omeyang/xgate/pkg/resilience/xbreaker"
)

// Option 网关选项
type Option func(*options)

type options struct {
	logger         xlog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	baseTransport  *http.Transport
	now            func() time.Time
}

// WithLogger 网关所有日志的输出，默认 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracerProvider 默认使用 otel 全局 provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider 默认使用 otel 全局 provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithBaseTransport 出站使用的 http.Transport，会被克隆
func WithBaseTransport(tr *http.Transport) Option {
	return func(o *options) {
		o.baseTransport = tr
	}
}

// WithClock 访问日志计时使用的时钟
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Gateway 组装好的边缘服务
//
// 入站顺序（外→内）：追踪装饰 → 连接拦截管道 → 访问日志 → 指标 → 业务日志
// → 授权 → 请求头过滤 → 路由。出站经过同一 Composer 的客户端装饰。
type Gateway struct {
	cfg       Config
	logger    xlog.Logger
	composer  *xinstrument.Composer
	auth      *Authorizer
	transport http.RoundTripper
	client    *http.Client
	handler   http.Handler
}

// New 按配置组装网关，日志开关在此确定且不再改变
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: xlog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	backend, err := parseUpstream(cfg.Gateway.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	source := xtrace.NewSource()
	tracing := xtrace.NewTracing(xtrace.WithTracerProvider(o.tracerProvider))

	lbOpts := []xwirelog.Option{
		xwirelog.WithCorrelation(xcorr.New(source)),
		xwirelog.WithHeaders(cfg.Logbook.Headers),
	}
	logbook, err := xwirelog.New(o.logger, lbOpts...)
	if err != nil {
		return nil, err
	}
	composer, err := xinstrument.New(
		xinstrument.Config{LoggingEnabled: cfg.Logbook.Filter.Enabled},
		xinstrument.WithTraceSource(source),
		xinstrument.WithTracing(tracing),
		xinstrument.WithLogbook(logbook),
	)
	if err != nil {
		return nil, err
	}

	var metricOpts []xmetrics.Option
	if o.meterProvider != nil {
		metricOpts = append(metricOpts, xmetrics.WithMeterProvider(o.meterProvider))
	}
	metrics, err := xmetrics.NewHTTP(metricOpts...)
	if err != nil {
		return nil, err
	}

	auth, err := NewAuthorizer(cfg.Gateway.JWT, cfg.Gateway.PermitAll, o.logger)
	if err != nil {
		return nil, err
	}

	g := &Gateway{cfg: cfg, logger: o.logger, composer: composer, auth: auth}

	inner := []func(http.RoundTripper) http.RoundTripper{metrics.Transport}
	if bc := cfg.Gateway.Breaker; bc.Enabled {
		b := xbreaker.NewBreaker("upstream",
			xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(bc.ConsecutiveFailures)),
			xbreaker.WithTimeout(bc.Timeout),
			xbreaker.WithLogger(o.logger),
		)
		inner = append(inner, func(rt http.RoundTripper) http.RoundTripper {
			return xbreaker.Transport(b, rt)
		})
	}
	g.transport = composer.Transport(o.baseTransport, inner...)
	g.client = &http.Client{Transport: g.transport, Timeout: cfg.Gateway.UpstreamTimeout}

	r := chi.NewRouter()
	r.Use(
		accessLog(o.logger, o.now),
		metrics.Middleware,
		businessLog(o.logger),
		auth.Middleware,
		filterHeaders(cfg.Gateway.RemoveRequestHeaders),
	)
	r.Method(http.MethodGet, ControllerPath, newQuestionController(g.client, backend, o.logger))
	for _, route := range cfg.Gateway.Routes {
		target := backend
		if route.Upstream != "" {
			if target, err = url.Parse(route.Upstream); err != nil {
				return nil, fmt.Errorf("%w: route %s: %w", ErrInvalidConfig, route.ID, err)
			}
		}
		method := route.Method
		if method == "" {
			method = http.MethodGet
		}
		r.Method(method, route.Path, newProxy(route, target, g.transport, o.logger))
	}
	g.handler = composer.Server(r)
	return g, nil
}

// Handler 入站处理链
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Transport 出站 RoundTripper，带完整装饰
func (g *Gateway) Transport() http.RoundTripper {
	return g.transport
}

// Authorizer 授权谓词
func (g *Gateway) Authorizer() *Authorizer {
	return g.auth
}

// LoggingEnabled 启动时确定的请求/响应日志开关
func (g *Gateway) LoggingEnabled() bool {
	return g.composer.LoggingEnabled()
}

// ConfigureServer 在 srv 上安装连接级钩子
func (g *Gateway) ConfigureServer(srv *http.Server) {
	g.composer.ConfigureServer(srv)
}

// OpenConnections 已安装钩子的服务端上尚未关闭的入站连接数
func (g *Gateway) OpenConnections() int {
	return g.composer.OpenConnections()
}

// Server 按 server 配置创建 http.Server 并安装连接钩子
func (g *Gateway) Server() *http.Server {
	srv := &http.Server{
		Addr:              g.cfg.Server.Addr,
		Handler:           g.handler,
		ReadHeaderTimeout: g.cfg.Server.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(xlog.Slog(g.logger).Handler(), slog.LevelWarn),
	}
	g.ConfigureServer(srv)
	return srv
}

// Close 关闭出站空闲连接
func (g *Gateway) Close() {
	g.client.CloseIdleConnections()
}
