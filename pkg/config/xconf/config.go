package xconf

import "github.com/knadh/koanf/v2"

// Format 配置格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 分层配置
type Config interface {
	// Client 返回当前的 koanf 实例
	Client() *koanf.Koanf

	// Unmarshal 把 path 下的配置反序列化到 target，path 为空时反序列化全部配置。
	// 开启 WithEnv 时随后应用环境变量覆盖。
	Unmarshal(path string, target any) error

	// Reload 重新叠加默认值与配置文件
	Reload() error

	// Path 配置文件路径，没有文件时为空
	Path() string
}

// MustUnmarshal 与 Unmarshal 相同，失败时 panic，用于启动阶段
func MustUnmarshal(cfg Config, path string, target any) {
	if err := cfg.Unmarshal(path, target); err != nil {
		panic(err)
	}
}
