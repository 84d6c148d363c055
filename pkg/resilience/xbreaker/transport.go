package xbreaker

import (
	"errors"
	"fmt"
	"net/http"
)

// errUpstreamStatus 5xx 响应计为失败，不返回给调用方
var errUpstreamStatus = errors.New("xbreaker: upstream server error")

// Transport 用 b 保护 base，base 为 nil 时使用 http.DefaultTransport
//
// 熔断打开时返回 *BreakerError，请求不会发出。
// 5xx 响应计为失败但照常返回。
func Transport(b *Breaker, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if b == nil {
		return base
	}
	return &transport{b: b, base: base}
}

type transport struct {
	b    *Breaker
	base http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.b.Do(req.Context(), func() error {
		var err error
		resp, err = t.base.RoundTrip(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %d", errUpstreamStatus, resp.StatusCode)
		}
		return nil
	})
	if errors.Is(err, errUpstreamStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CloseIdleConnections 转发给 base
func (t *transport) CloseIdleConnections() {
	if ci, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}
