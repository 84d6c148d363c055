package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"

	"github.com/omeyang/xgate/internal/gateway"
	"github.com/omeyang/xgate/pkg/observability/xlog"
	"github.com/omeyang/xgate/pkg/observability/xmetrics"
	"github.com/omeyang/xgate/pkg/observability/xtrace"
	"github.com/omeyang/xgate/pkg/observability/xwirelog"
)

const testSecret = "test-secret"

var propagationHeaders = []string{
	xtrace.HeaderTraceparent,
	xtrace.HeaderB3TraceID,
	xtrace.HeaderB3SpanID,
	xtrace.HeaderB3Sampled,
	xtrace.HeaderB3ParentSpanID,
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func (b *syncBuffer) count(t *testing.T, logger string) int {
	t.Helper()
	n := 0
	for _, l := range b.lines(t) {
		if l[xlog.KeyLogger] == logger {
			n++
		}
	}
	return n
}

// received 后端收到的一次请求
type received struct {
	path   string
	header http.Header
}

type env struct {
	gw      *gateway.Gateway
	server  *httptest.Server
	backend *httptest.Server
	logs    *syncBuffer
	reader  *sdkmetric.ManualReader

	mu       sync.Mutex
	requests []received
}

type envOption func(map[string]string)

func withLogbook(enabled bool) envOption {
	return func(m map[string]string) {
		m["LOGBOOK_FILTER_ENABLED"] = fmt.Sprint(enabled)
	}
}

func newEnv(t *testing.T, cfgMutate func(*gateway.Config), opts ...envOption) *env {
	t.Helper()
	e := &env{logs: &syncBuffer{}, reader: sdkmetric.NewManualReader()}

	e.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.requests = append(e.requests, received{path: r.URL.Path, header: r.Header.Clone()})
		e.mu.Unlock()
		if r.URL.Path == "/question" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "42")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(e.backend.Close)

	environ := map[string]string{
		"MOCK_BACKEND":     e.backend.URL,
		"XGATE_JWT_SECRET": testSecret,
	}
	for _, opt := range opts {
		opt(environ)
	}
	_, cfg, err := gateway.LoadConfig("", environ)
	require.NoError(t, err)
	if cfgMutate != nil {
		cfgMutate(&cfg)
	}

	logger, _, err := xlog.New().SetOutput(e.logs).SetFormat("json").SetLevel(xlog.LevelInfo).Build()
	require.NoError(t, err)
	tp, err := xtrace.NewTracerProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	mp := xmetrics.NewMeterProvider("xgate-test", e.reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	e.gw, err = gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithTracerProvider(tp),
		gateway.WithMeterProvider(mp),
		gateway.WithBaseTransport(&http.Transport{}),
	)
	require.NoError(t, err)
	t.Cleanup(e.gw.Close)

	e.server = httptest.NewUnstartedServer(e.gw.Handler())
	e.gw.ConfigureServer(e.server.Config)
	e.server.Start()
	t.Cleanup(e.server.Close)
	return e
}

// do 每次使用独立连接发送请求
func (e *env) do(t *testing.T, path string, header http.Header) (int, string, http.Header) {
	t.Helper()
	tr := &http.Transport{DisableKeepAlives: true}
	defer tr.CloseIdleConnections()
	client := &http.Client{Transport: tr}

	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func (e *env) lastRequest(t *testing.T) received {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.requests)
	return e.requests[len(e.requests)-1]
}

func (e *env) requestCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validToken(t *testing.T) string {
	t.Helper()
	return signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
}

// assertCorrelated 所有日志共享同一对 traceId/spanId，并与出站头一致
func assertCorrelated(t *testing.T, lines []map[string]any, out http.Header) {
	t.Helper()
	require.NotEmpty(t, lines)
	traceID, _ := lines[0]["traceId"].(string)
	spanID, _ := lines[0]["spanId"].(string)
	require.NotEmpty(t, traceID)
	require.NotEmpty(t, spanID)
	for _, l := range lines {
		assert.Equal(t, traceID, l["traceId"], l["msg"])
		assert.Equal(t, spanID, l["spanId"], l["msg"])
	}
	for _, h := range propagationHeaders {
		assert.NotEmpty(t, out.Get(h), h)
	}
	assert.Equal(t, traceID, out.Get(xtrace.HeaderB3TraceID))
	assert.Equal(t, spanID, out.Get(xtrace.HeaderB3ParentSpanID))
	assert.Contains(t, out.Get(xtrace.HeaderTraceparent), traceID)
}

func TestQuestionController(t *testing.T) {
	for _, logging := range []bool{true, false} {
		name := "请求日志关闭"
		wantWire := 0
		if logging {
			name = "请求日志开启"
			wantWire = 4
		}
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, nil, withLogbook(logging))
			assert.Equal(t, logging, e.gw.LoggingEnabled())

			status, body, _ := e.do(t, gateway.ControllerPath, nil)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, "42", body)

			require.Eventually(t, func() bool {
				return e.logs.count(t, gateway.SourceAccess) == 1
			}, 2*time.Second, 10*time.Millisecond)

			out := e.lastRequest(t)
			assert.Equal(t, "/question", out.path)
			lines := e.logs.lines(t)
			assertCorrelated(t, lines, out.header)

			assert.Equal(t, 1, e.logs.count(t, gateway.SourceBusiness))
			assert.Equal(t, wantWire, e.logs.count(t, xwirelog.SourceName))

			var wire []string
			for _, l := range lines {
				if l[xlog.KeyLogger] == xwirelog.SourceName {
					wire = append(wire, l["msg"].(string))
					assert.Equal(t, l["traceId"].(string)+"/"+l["spanId"].(string), l[xwirelog.KeyCorrelation])
				}
				if l[xlog.KeyLogger] == gateway.SourceAccess {
					assert.Equal(t, float64(http.StatusOK), l[xlog.KeyStatusCode])
					assert.Equal(t, gateway.ControllerPath, l["uri"])
					assert.Equal(t, float64(2), l["bytes"])
				}
			}
			if logging {
				assert.ElementsMatch(t, []string{
					xwirelog.MsgIncomingRequest,
					xwirelog.MsgOutgoingRequest,
					xwirelog.MsgIncomingResponse,
					xwirelog.MsgOutgoingResponse,
				}, wire)
			}
		})
	}
}

func TestRouteRewrite(t *testing.T) {
	e := newEnv(t, nil, withLogbook(true))

	status, body, _ := e.do(t, "/question-route", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "42", body)

	out := e.lastRequest(t)
	assert.Equal(t, "/question", out.path)
	assert.NotEmpty(t, out.header.Get("X-Forwarded-For"))

	require.Eventually(t, func() bool {
		return e.logs.count(t, gateway.SourceAccess) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assertCorrelated(t, e.logs.lines(t), out.header)
	assert.Equal(t, 4, e.logs.count(t, xwirelog.SourceName))
}

func TestHeaderFilter(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		token bool
	}{
		{name: "公开路由", path: "/remove-request-header-public"},
		{name: "受保护路由", path: "/remove-request-header-protected", token: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, logging := range []bool{true, false} {
				e := newEnv(t, nil, withLogbook(logging))
				h := http.Header{}
				h.Set("x-remove-me", "value-to-be-removed")
				h.Set("x-keep-me", "value-to-be-kept")
				if tt.token {
					h.Set("Authorization", "Bearer "+validToken(t))
				}

				status, _, _ := e.do(t, tt.path, h)
				require.Equal(t, http.StatusOK, status)

				out := e.lastRequest(t)
				assert.Equal(t, tt.path, out.path)
				assert.Empty(t, out.header.Values("x-remove-me"))
				assert.Equal(t, "value-to-be-kept", out.header.Get("x-keep-me"))
				for _, name := range propagationHeaders {
					assert.NotEmpty(t, out.header.Get(name), name)
				}
			}
		})
	}
}

func TestAuthorizationDenied(t *testing.T) {
	e := newEnv(t, nil, withLogbook(true))

	tests := []struct {
		name      string
		auth      string
		challenge string
	}{
		{name: "无 token", challenge: "Bearer"},
		{name: "非 Bearer", auth: "Basic dXNlcjpwYXNz", challenge: "Bearer"},
		{name: "签名错误", auth: "Bearer " + signToken(t, "other", jwt.RegisteredClaims{Subject: "mallory"}), challenge: `Bearer error="invalid_token"`},
		{
			name: "已过期",
			auth: "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}),
			challenge: `Bearer error="invalid_token"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.auth != "" {
				h.Set("Authorization", tt.auth)
			}
			status, _, respHeader := e.do(t, "/remove-request-header-protected", h)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tt.challenge, respHeader.Get("WWW-Authenticate"))
		})
	}
	assert.Equal(t, 0, e.requestCount(), "拒绝的请求不应到达出站")

	status, _, _ := e.do(t, "/unknown", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+validToken(t))
	status, _, _ = e.do(t, "/unknown", h)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 0, e.requestCount())
}

func TestConcurrentIsolation(t *testing.T) {
	e := newEnv(t, nil, withLogbook(true))

	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			tr := &http.Transport{DisableKeepAlives: true}
			defer tr.CloseIdleConnections()
			resp, err := (&http.Client{Transport: tr}).Get(e.server.URL + gateway.ControllerPath)
			if !assert.NoError(t, err) {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return e.logs.count(t, gateway.SourceAccess) == n
	}, 5*time.Second, 10*time.Millisecond)

	type group struct {
		spans    map[string]struct{}
		business int
		access   int
		wire     int
	}
	groups := map[string]*group{}
	for _, l := range e.logs.lines(t) {
		tid, _ := l["traceId"].(string)
		require.NotEmpty(t, tid, l["msg"])
		g, ok := groups[tid]
		if !ok {
			g = &group{spans: map[string]struct{}{}}
			groups[tid] = g
		}
		g.spans[l["spanId"].(string)] = struct{}{}
		switch l[xlog.KeyLogger] {
		case gateway.SourceBusiness:
			g.business++
		case gateway.SourceAccess:
			g.access++
		case xwirelog.SourceName:
			g.wire++
			assert.Equal(t, tid+"/"+l["spanId"].(string), l[xwirelog.KeyCorrelation])
		}
	}
	require.Len(t, groups, n)
	for tid, g := range groups {
		assert.Len(t, g.spans, 1, tid)
		assert.Equal(t, 1, g.business, tid)
		assert.Equal(t, 1, g.access, tid)
		assert.Equal(t, 4, g.wire, tid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Len(t, e.requests, n)
	seen := map[string]struct{}{}
	for _, r := range e.requests {
		tid := r.header.Get(xtrace.HeaderB3TraceID)
		require.Contains(t, groups, tid)
		seen[tid] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestUpstreamFailure(t *testing.T) {
	t.Run("后端不可达返回 502", func(t *testing.T) {
		e := newEnv(t, nil)
		e.backend.Close()

		status, _, _ := e.do(t, gateway.ControllerPath, nil)
		assert.Equal(t, http.StatusBadGateway, status)
		status, _, _ = e.do(t, "/question-route", nil)
		assert.Equal(t, http.StatusBadGateway, status)
	})

	t.Run("熔断打开返回 503", func(t *testing.T) {
		e := newEnv(t, func(c *gateway.Config) {
			c.Gateway.Breaker.Enabled = true
			c.Gateway.Breaker.ConsecutiveFailures = 1
			c.Gateway.Breaker.Timeout = time.Hour
		})
		e.backend.Close()

		status, _, _ := e.do(t, gateway.ControllerPath, nil)
		assert.Equal(t, http.StatusBadGateway, status)
		status, _, _ = e.do(t, gateway.ControllerPath, nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		status, _, _ = e.do(t, "/question-route", nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})
}

func TestMetricsRecorded(t *testing.T) {
	e := newEnv(t, nil)
	status, _, _ := e.do(t, gateway.ControllerPath, nil)
	require.Equal(t, http.StatusOK, status)

	var rm metricdata.ResourceMetrics
	require.NoError(t, e.reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		xmetrics.MetricServerRequests,
		xmetrics.MetricServerDuration,
		xmetrics.MetricClientRequests,
		xmetrics.MetricClientDuration,
	} {
		assert.True(t, names[want], want)
	}
}

func TestServerConnectionTracking(t *testing.T) {
	e := newEnv(t, nil)
	srv := e.gw.Server()
	assert.Equal(t, ":8080", srv.Addr)
	assert.NotNil(t, srv.ConnState)

	status, _, _ := e.do(t, gateway.ControllerPath, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Eventually(t, func() bool { return e.gw.OpenConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
