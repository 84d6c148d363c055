package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/omeyang/xgate/pkg/observability/xlog"
)

// ControllerPath 本地控制器路径
const ControllerPath = "/question-controller"

// questionController 通过出站客户端请求 <backend>/question 并转发结果
type questionController struct {
	client *http.Client
	target string
	logger xlog.Logger
}

func newQuestionController(client *http.Client, backend *url.URL, logger xlog.Logger) *questionController {
	return &questionController{
		client: client,
		target: backend.JoinPath("question").String(),
		logger: logger,
	}
}

func (c *questionController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, c.target, nil)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		c.logger.Debug(r.Context(), "copy upstream body failed", xlog.Component("controller"), xlog.Err(err))
	}
}

func (c *questionController) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := upstreamStatus(err)
	c.logger.Warn(r.Context(), "upstream request failed",
		xlog.Component("controller"),
		slog.String("target", c.target),
		slog.Int(xlog.KeyStatusCode, status),
		xlog.Err(err),
	)
	http.Error(w, http.StatusText(status), status)
}
