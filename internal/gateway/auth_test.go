package gateway_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgate/internal/gateway"
)

func TestAuthorizer(t *testing.T) {
	a, err := gateway.NewAuthorizer(
		gateway.JWTConfig{Secret: testSecret, Issuer: "xgate"},
		[]gateway.Matcher{{Method: "get", Path: "/public"}},
		nil,
	)
	require.NoError(t, err)

	t.Run("permit-all 匹配方法与路径", func(t *testing.T) {
		assert.True(t, a.Permitted(http.MethodGet, "/public"))
		assert.False(t, a.Permitted(http.MethodPost, "/public"))
		assert.False(t, a.Permitted(http.MethodGet, "/public/x"))
	})

	t.Run("校验与缓存", func(t *testing.T) {
		tok := signToken(t, testSecret, jwt.RegisteredClaims{
			Issuer:    "xgate",
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		for range 2 {
			sub, err := a.Authenticate(tok)
			require.NoError(t, err)
			assert.Equal(t, "alice", sub)
		}
	})

	t.Run("拒绝", func(t *testing.T) {
		wrongIssuer := signToken(t, testSecret, jwt.RegisteredClaims{Issuer: "other", Subject: "bob"})
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: "xgate"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = a.Authenticate("")
		assert.ErrorIs(t, err, gateway.ErrMissingToken)
		_, err = a.Authenticate(wrongIssuer)
		assert.ErrorIs(t, err, gateway.ErrInvalidToken)
		_, err = a.Authenticate(none)
		assert.ErrorIs(t, err, gateway.ErrInvalidToken)
		_, err = a.Authenticate("not-a-jwt")
		assert.ErrorIs(t, err, gateway.ErrInvalidToken)
	})

	t.Run("未配置密钥", func(t *testing.T) {
		noSecret, err := gateway.NewAuthorizer(gateway.JWTConfig{}, nil, nil)
		require.NoError(t, err)
		_, err = noSecret.Authenticate(signToken(t, testSecret, jwt.RegisteredClaims{}))
		assert.ErrorIs(t, err, gateway.ErrNoSecret)
	})
}

func TestAuthorizerMiddleware(t *testing.T) {
	a, err := gateway.NewAuthorizer(gateway.JWTConfig{Secret: testSecret}, []gateway.Matcher{{Method: "GET", Path: "/public"}}, nil)
	require.NoError(t, err)

	called := 0
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called++
		w.WriteHeader(http.StatusNoContent)
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, http.StatusNoContent, rw.Code)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "bearer "+validToken(t))
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusNoContent, rw.Code)

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "Bearer", rw.Header().Get("WWW-Authenticate"))
	assert.Equal(t, 2, called)
}
