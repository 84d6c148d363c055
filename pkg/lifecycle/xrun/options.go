package xrun

import (
	"os"
	"syscall"

	"github.com/omeyang/xgate/pkg/observability/xlog"
)

// Option Group 选项
type Option func(*options)

type options struct {
	logger          xlog.Logger
	name            string
	signals         []os.Signal
	signalSource    <-chan os.Signal
	noSignalHandler bool
}

func defaultOptions() *options {
	return &options{
		logger: xlog.Default(),
		name:   "xrun",
	}
}

// DefaultSignals 默认监听的信号，每次返回新切片
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// WithLogger 生命周期日志，默认 xlog.Default()
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName Group 名称，出现在日志中
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 替换监听的信号列表，空列表使用 DefaultSignals
func WithSignals(signals []os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *options) {
		o.signals = copied
	}
}

// WithSignalSource 额外的信号来源，测试中用来代替真实信号
func WithSignalSource(ch <-chan os.Signal) Option {
	return func(o *options) {
		o.signalSource = ch
	}
}

// WithoutSignalHandler 不监听信号
func WithoutSignalHandler() Option {
	return func(o *options) {
		o.noSignalHandler = true
	}
}
