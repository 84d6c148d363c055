package xinstrument

import (
	"errors"
	"net/http"

	"github.com/omeyang/xgate/pkg/net/xconn"
	"github.com/omeyang/xgate/pkg/observability/xtrace"
	"github.com/omeyang/xgate/pkg/observability/xwirelog"
)

var (
	// ErrTraceSourceRequired 开启请求日志时必须提供追踪来源
	ErrTraceSourceRequired = errors.New("xinstrument: trace source required when logging is enabled")

	// ErrLogbookRequired 开启请求日志时必须提供 Logbook
	ErrLogbookRequired = errors.New("xinstrument: logbook required when logging is enabled")
)

// Config 组装配置
type Config struct {
	// LoggingEnabled 请求/响应日志开关，零值为关闭
	LoggingEnabled bool
}

// Option 组装选项
type Option func(*Composer)

// WithTraceSource 追踪来源，用于捕获连接快照；开启日志时必填，关闭时默认 xtrace.NewSource()
func WithTraceSource(s xtrace.Source) Option {
	return func(c *Composer) {
		c.source = s
	}
}

// WithTracing 追踪装饰，默认 xtrace.NewTracing()
func WithTracing(t *xtrace.Tracing) Option {
	return func(c *Composer) {
		if t != nil {
			c.tracing = t
		}
	}
}

// WithLogbook 请求/响应日志，仅在开启日志时使用
func WithLogbook(lb *xwirelog.Logbook) Option {
	return func(c *Composer) {
		c.logbook = lb
	}
}

// Composer 按配置为每个连接构建拦截链
type Composer struct {
	cfg     Config
	source  xtrace.Source
	tracing *xtrace.Tracing
	logbook *xwirelog.Logbook

	serverChain xconn.ChainFactory
	clientChain xconn.ChainFactory

	server *xconn.Server
	client *xconn.Client
}

// New 校验配置并选择分支
func New(cfg Config, opts ...Option) (*Composer, error) {
	c := &Composer{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if cfg.LoggingEnabled {
		if c.source == nil {
			return nil, ErrTraceSourceRequired
		}
		if c.logbook == nil {
			return nil, ErrLogbookRequired
		}
		lb := c.logbook
		c.serverChain = func(*xconn.Conn) *xconn.Interceptor {
			return xconn.New(xconn.Wrap(lb.ServerHandler()))
		}
		c.clientChain = func(*xconn.Conn) *xconn.Interceptor {
			return xconn.New(xconn.Wrap(lb.ClientHandler()))
		}
	} else {
		c.serverChain = xconn.Passthrough
		c.clientChain = xconn.Passthrough
	}

	if c.source == nil {
		c.source = xtrace.NewSource()
	}
	if c.tracing == nil {
		c.tracing = xtrace.NewTracing()
	}
	// 连接快照统一由追踪来源捕获
	capture := xconn.WithCapture(c.source.Capture)
	c.server = xconn.NewServer(c.serverChain, capture)
	c.client = xconn.NewClient(c.clientChain, capture)
	return c, nil
}

// LoggingEnabled 报告启动时选择的分支
func (c *Composer) LoggingEnabled() bool {
	return c.cfg.LoggingEnabled
}

// Source 返回追踪来源
func (c *Composer) Source() xtrace.Source {
	return c.source
}

// ServerChain 为入站连接构建拦截链
func (c *Composer) ServerChain(conn *xconn.Conn) *xconn.Interceptor {
	return c.serverChain(conn)
}

// ClientChain 为出站连接构建拦截链
func (c *Composer) ClientChain(conn *xconn.Conn) *xconn.Interceptor {
	return c.clientChain(conn)
}

// Server 入站装饰：追踪在外，拦截管道在内
func (c *Composer) Server(next http.Handler) http.Handler {
	return c.tracing.ServerMiddleware(c.server.Handler(next))
}

// ConfigureServer 安装连接级钩子，未安装时每个请求使用临时 Conn
func (c *Composer) ConfigureServer(srv *http.Server) {
	c.server.Install(srv)
}

// OpenConnections 返回已安装钩子的服务端上尚未关闭的连接数
func (c *Composer) OpenConnections() int {
	return c.server.Open()
}

// Transport 出站装饰：追踪在外，拦截管道在内
//
// base 被克隆后替换 DialContext，调用方的 Transport 不受影响。
// base 为 nil 时克隆 http.DefaultTransport。
// inner 安装在拦截管道与 http.Transport 之间（例如熔断器），按顺序由外向内。
func (c *Composer) Transport(base *http.Transport, inner ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	tr := base.Clone()
	tr.DialContext = c.client.DialContext(tr.DialContext)

	var rt http.RoundTripper = tr
	for i := len(inner) - 1; i >= 0; i-- {
		if inner[i] != nil {
			rt = inner[i](rt)
		}
	}
	return c.tracing.Transport(c.client.Transport(rt))
}
