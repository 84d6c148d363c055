package gateway

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/omeyang/xgate/pkg/config/xconf"
)

//go:embed defaults.yaml
var defaultConfig []byte

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("gateway: invalid config")

// Config 网关进程配置
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Logbook LogbookConfig `koanf:"logbook"`
	Tracing TracingConfig `koanf:"tracing"`
	Gateway GatewayConfig `koanf:"gateway"`
}

// ServerConfig 监听配置
type ServerConfig struct {
	Addr              string        `koanf:"addr" env:"XGATE_ADDR"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig 日志配置，Level 可热更新
type LogConfig struct {
	Level  string `koanf:"level" env:"XGATE_LOG_LEVEL"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// LogbookConfig 请求/响应日志
type LogbookConfig struct {
	Filter  LogbookFilter `koanf:"filter"`
	Headers bool          `koanf:"headers"`
}

// LogbookFilter 对应 logbook.filter.enabled，零值为关闭
type LogbookFilter struct {
	Enabled bool `koanf:"enabled" env:"LOGBOOK_FILTER_ENABLED"`
}

// TracingConfig TracerProvider 配置
type TracingConfig struct {
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// GatewayConfig 边缘策略
type GatewayConfig struct {
	Backend              string        `koanf:"backend" env:"MOCK_BACKEND"`
	UpstreamTimeout      time.Duration `koanf:"upstream_timeout"`
	Routes               []Route       `koanf:"routes"`
	PermitAll            []Matcher     `koanf:"permit_all"`
	RemoveRequestHeaders []string      `koanf:"remove_request_headers"`
	JWT                  JWTConfig     `koanf:"jwt"`
	Breaker              BreakerConfig `koanf:"breaker"`
}

// Route 代理路由，Upstream 为空时使用 Backend
type Route struct {
	ID       string `koanf:"id"`
	Method   string `koanf:"method"`
	Path     string `koanf:"path"`
	Rewrite  string `koanf:"rewrite"`
	Upstream string `koanf:"upstream"`
}

// Matcher 免鉴权的 (method, path)
type Matcher struct {
	Method string `koanf:"method"`
	Path   string `koanf:"path"`
}

// JWTConfig HS256 bearer token 校验
type JWTConfig struct {
	Secret    string `koanf:"secret" env:"XGATE_JWT_SECRET"`
	Issuer    string `koanf:"issuer"`
	CacheSize int    `koanf:"cache_size"`
}

// BreakerConfig 上游熔断
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	Timeout             time.Duration `koanf:"timeout"`
}

// LoadConfig 按 内置默认值 → path（可为空）→ 环境变量 加载配置
//
// environ 非 nil 时代替进程环境变量，测试用。
func LoadConfig(path string, environ map[string]string) (xconf.Config, Config, error) {
	src, err := xconf.New(path,
		xconf.WithDefaults(defaultConfig, xconf.FormatYAML),
		xconf.WithEnv(env.Options{Environment: environ}),
	)
	if err != nil {
		return nil, Config{}, err
	}
	cfg, err := Decode(src)
	if err != nil {
		return nil, Config{}, err
	}
	return src, cfg, nil
}

// Decode 从已加载的配置源解码并校验
func Decode(src xconf.Config) (Config, error) {
	var cfg Config
	if err := src.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查启动所需的配置
func (c Config) Validate() error {
	if _, err := parseUpstream(c.Gateway.Backend); err != nil {
		return fmt.Errorf("%w: gateway.backend: %w", ErrInvalidConfig, err)
	}
	for _, r := range c.Gateway.Routes {
		if r.ID == "" || r.Path == "" {
			return fmt.Errorf("%w: route requires id and path", ErrInvalidConfig)
		}
		if r.Upstream != "" {
			if _, err := parseUpstream(r.Upstream); err != nil {
				return fmt.Errorf("%w: route %s: %w", ErrInvalidConfig, r.ID, err)
			}
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute http(s) URL", raw)
	}
	return u, nil
}
