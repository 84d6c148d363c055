package xcorr

import (
	"net/http"
	"strings"
	"sync"

	"github.com/omeyang/xgate/pkg/observability/xtrace"
	"github.com/omeyang/xgate/pkg/util/xid"
)

// HeaderCorrelationID 回退路径优先读取的请求头
const HeaderCorrelationID = "X-Correlation-ID"

// maxHeaderIDLen 请求头中的 ID 超过此长度时忽略，避免日志被超长值污染
const maxHeaderIDLen = 128

// DefaultHeaders 回退路径依次读取的请求头
var DefaultHeaders = []string{HeaderCorrelationID, xtrace.HeaderRequestID}

// Resolver 关联 ID 解析器
type Resolver interface {
	Resolve(r *http.Request) string
}

// Func 函数适配为 Resolver
type Func func(r *http.Request) string

// Resolve 实现 Resolver
func (f Func) Resolve(r *http.Request) string { return f(r) }

// Generator 回退 ID 生成器
type Generator func() string

// Option 解析器选项
type Option func(*resolver)

// WithFallback 替换回退生成器，nil 忽略
func WithFallback(g Generator) Option {
	return func(r *resolver) {
		if g != nil {
			r.fallback = g
		}
	}
}

// WithHeaders 替换回退路径读取的请求头，空列表表示不读取任何头
func WithHeaders(headers ...string) Option {
	return func(r *resolver) {
		r.headers = append([]string(nil), headers...)
	}
}

type resolver struct {
	source   xtrace.Source
	fallback Generator
	headers  []string
}

// New 创建解析器
//
// source 为 nil 时只走回退路径。
func New(source xtrace.Source, opts ...Option) Resolver {
	r := &resolver{
		source:   source,
		fallback: xid.NewCorrelationID,
		headers:  DefaultHeaders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *resolver) Resolve(req *http.Request) (id string) {
	defer func() {
		if rec := recover(); rec != nil {
			id = r.fallbackID(req)
		}
	}()
	if req != nil && r.source != nil {
		if sc, ok := r.source.CurrentSpan(req.Context()); ok {
			return xtrace.FormatSpanContext(sc)
		}
	}
	return r.fallbackID(req)
}

func (r *resolver) fallbackID(req *http.Request) string {
	if req != nil {
		for _, h := range r.headers {
			if v := strings.TrimSpace(req.Header.Get(h)); v != "" && len(v) <= maxHeaderIDLen {
				return v
			}
		}
	}
	if id := safeGenerate(r.fallback); id != "" {
		return id
	}
	return xid.NewCorrelationID()
}

func safeGenerate(g Generator) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	return g()
}

// Supplier 返回延迟解析 req 关联 ID 的函数，首次调用后结果固定，可并发调用
func Supplier(r Resolver, req *http.Request) func() string {
	return sync.OnceValue(func() string { return r.Resolve(req) })
}
