package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/omeyang/xgate/pkg/observability/xlog"
	"github.com/omeyang/xgate/pkg/resilience/xbreaker"
)

// newProxy 为一条路由创建反向代理
//
// Rewrite 非空时替换上游路径，否则沿用入站路径。
func newProxy(route Route, target *url.URL, transport http.RoundTripper, logger xlog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			if route.Rewrite != "" {
				pr.Out.URL.Path = joinPath(target.Path, route.Rewrite)
				pr.Out.URL.RawPath = ""
			}
			pr.SetXForwarded()
		},
		Transport:    transport,
		ErrorLog:     slog.NewLogLogger(xlog.Slog(logger).Handler(), slog.LevelWarn),
		ErrorHandler: upstreamErrorHandler(logger, route.ID),
	}
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case strings.HasSuffix(base, "/") && strings.HasPrefix(p, "/"):
		return base + p[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(p, "/"):
		return base + "/" + p
	}
	return base + p
}

// upstreamStatus 把出站错误映射为响应状态：熔断 503，其余 502
func upstreamStatus(err error) int {
	if xbreaker.IsBreakerError(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func upstreamErrorHandler(logger xlog.Logger, routeID string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		status := upstreamStatus(err)
		logger.Warn(r.Context(), "upstream request failed",
			xlog.Component("proxy"),
			slog.String("route", routeID),
			slog.Int(xlog.KeyStatusCode, status),
			xlog.Err(err),
		)
		w.WriteHeader(status)
	}
}
