package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/omeyang/xgate/pkg/observability/xlog"
)

// 日志来源
const (
	SourceBusiness = "business"
	SourceAccess   = "access"
)

// MsgBusiness 每个请求一条的业务日志
const MsgBusiness = "Some business logging ..."

// MsgAccess 访问日志
const MsgAccess = "access"

func businessLog(logger xlog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(xlog.Source(SourceBusiness))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info(r.Context(), MsgBusiness)
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog 请求结束后写一条访问日志
func accessLog(logger xlog.Logger, now func() time.Time) func(http.Handler) http.Handler {
	logger = logger.With(xlog.Source(SourceAccess))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := now()
			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info(r.Context(), MsgAccess,
				slog.String(xlog.KeyMethod, r.Method),
				slog.String("uri", r.URL.RequestURI()),
				slog.String("protocol", r.Proto),
				slog.Int(xlog.KeyStatusCode, rec.status),
				slog.Int64("bytes", rec.bytes),
				xlog.Duration(now().Sub(start)),
				slog.String("remote", r.RemoteAddr),
			)
		})
	}
}

// filterHeaders 删除配置的请求头，位于授权之后、路由之前
func filterHeaders(names []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(names) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out := r.Clone(r.Context())
			for _, name := range names {
				out.Header.Del(name)
			}
			next.ServeHTTP(w, out)
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *recorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *recorder) Flush() {
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *recorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
