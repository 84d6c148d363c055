package xconn

import (
	"context"

	"github.com/omeyang/xgate/pkg/context/xsnap"
)

// CaptureFunc 把请求 context 捕获为连接快照，例如 xtrace.Source.Capture
type CaptureFunc func(ctx context.Context) *xsnap.Snapshot

// Option Server 与 Client 的选项
type Option func(*options)

type options struct {
	capture CaptureFunc
}

// WithCapture 指定快照捕获函数，默认 xsnap.Capture，nil 忽略
func WithCapture(fn CaptureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.capture = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{capture: xsnap.Capture}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
