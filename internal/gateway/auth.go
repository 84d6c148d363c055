package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/omeyang/xgate/pkg/observability/xlog"
	"github.com/omeyang/xgate/pkg/util/xlru"
)

var (
	// ErrMissingToken 缺少 bearer token
	ErrMissingToken = errors.New("gateway: missing bearer token")

	// ErrInvalidToken token 校验失败
	ErrInvalidToken = errors.New("gateway: invalid bearer token")

	// ErrNoSecret 未配置 jwt.secret，受保护路由一律拒绝
	ErrNoSecret = errors.New("gateway: jwt secret not configured")
)

const defaultTokenCacheSize = 1024

// Authorizer 授权谓词：permit-all 列表放行，其余请求要求 HS256 bearer JWT
//
// 校验通过的 token 缓存到过期时间，期间不再验签。
type Authorizer struct {
	permit map[string]struct{}
	secret []byte
	issuer string
	cache  *xlru.Cache[string, string]
	logger xlog.Logger
}

// NewAuthorizer 创建授权谓词
func NewAuthorizer(cfg JWTConfig, permitAll []Matcher, logger xlog.Logger) (*Authorizer, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultTokenCacheSize
	}
	cache, err := xlru.New[string, string](xlru.Config{Size: size})
	if err != nil {
		return nil, fmt.Errorf("gateway: token cache: %w", err)
	}
	if logger == nil {
		logger = xlog.Default()
	}
	a := &Authorizer{
		permit: make(map[string]struct{}, len(permitAll)),
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		cache:  cache,
		logger: logger,
	}
	for _, m := range permitAll {
		a.permit[matchKey(m.Method, m.Path)] = struct{}{}
	}
	return a, nil
}

func matchKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Permitted 报告 (method, path) 是否免鉴权
func (a *Authorizer) Permitted(method, path string) bool {
	_, ok := a.permit[matchKey(method, path)]
	return ok
}

// Authenticate 校验 token 并返回 subject
func (a *Authorizer) Authenticate(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	if sub, ok := a.cache.Get(token); ok {
		return sub, nil
	}
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	a.cache.SetUntil(token, claims.Subject, until)
	return claims.Subject, nil
}

// Middleware 拒绝的请求返回 401，不会进入路由与出站调用
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Permitted(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		_, err := a.Authenticate(bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			a.logger.Debug(r.Context(), "request denied",
				xlog.Component("auth"),
				slog.String(xlog.KeyMethod, r.Method),
				slog.String(xlog.KeyPath, r.URL.Path),
				xlog.Err(err),
			)
			challenge := "Bearer"
			if !errors.Is(err, ErrMissingToken) {
				challenge = `Bearer error="invalid_token"`
			}
			w.Header().Set("WWW-Authenticate", challenge)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken 取 "Bearer <token>" 中的 token，scheme 不区分大小写
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
