package xconf

import "github.com/caarlos0/env/v11"

// Options 配置加载选项
type Options struct {
	// Delim 键分隔符，默认 "."
	Delim string

	// Tag Unmarshal 使用的结构体标签，默认 "koanf"
	Tag string

	defaults       []byte
	defaultsFormat Format

	envEnabled bool
	envOptions env.Options
}

// Option 配置选项函数
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim: ".",
		Tag:   "koanf",
	}
}

// WithDelim 设置键分隔符
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置 Unmarshal 结构体标签
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithDefaults 设置最底层的默认配置，通常来自 go:embed
func WithDefaults(data []byte, format Format) Option {
	return func(o *Options) {
		o.defaults = data
		o.defaultsFormat = format
	}
}

// WithEnv 开启环境变量覆盖，Unmarshal 后按目标结构体的 env 标签应用
//
// opts 透传给 env.ParseWithOptions，例如 Prefix 或 Environment（测试中注入）。
func WithEnv(opts ...env.Options) Option {
	return func(o *Options) {
		o.envEnabled = true
		if len(opts) > 0 {
			o.envOptions = opts[0]
		}
	}
}
