package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// koanfConfig Config 的 koanf 实现
type koanfConfig struct {
	k      atomic.Pointer[koanf.Koanf]
	path   string
	format Format
	opts   *Options

	reloadMu sync.Mutex // 串行化 Reload，防止旧数据覆盖新数据
}

// New 加载配置
//
// path 为空时只使用 WithDefaults 提供的默认值；两者都没有时返回 ErrEmptyPath。
func New(path string, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	if path == "" && options.defaults == nil {
		return nil, ErrEmptyPath
	}
	if options.defaults != nil && !isValidFormat(options.defaultsFormat) {
		return nil, fmt.Errorf("%w: defaults format %q", ErrUnsupportedFormat, options.defaultsFormat)
	}

	c := &koanfConfig{path: path, opts: options}
	if path != "" {
		format, err := detectFormat(path)
		if err != nil {
			return nil, err
		}
		c.format = format
	}

	k, err := c.build()
	if err != nil {
		return nil, err
	}
	c.k.Store(k)
	return c, nil
}

// NewFromBytes 从字节数据加载配置，不支持 Reload 与 Watch
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	return New("", append(opts, WithDefaults(data, format))...)
}

// build 按层加载出新的 koanf 实例
func (c *koanfConfig) build() (*koanf.Koanf, error) {
	k := koanf.New(c.opts.Delim)
	if len(c.opts.defaults) > 0 {
		if err := loadData(k, c.opts.defaults, c.opts.defaultsFormat); err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
	}
	if c.path == "" {
		return k, nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if len(data) > 0 {
		if err := loadData(k, data, c.format); err != nil {
			return nil, fmt.Errorf("%s: %w", c.path, err)
		}
	}
	return k, nil
}

func (c *koanfConfig) Client() *koanf.Koanf {
	return c.k.Load()
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	if err := c.k.Load().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: c.opts.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if !c.opts.envEnabled {
		return nil
	}
	if err := env.ParseWithOptions(target, c.opts.envOptions); err != nil {
		return fmt.Errorf("%w: env: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *koanfConfig) Reload() error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	k, err := c.build()
	if err != nil {
		return err
	}
	c.k.Store(k)
	return nil
}

func (c *koanfConfig) Path() string {
	return c.path
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
