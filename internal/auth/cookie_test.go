package auth

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordedCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionCookies_SetDevelopment(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	SessionCookies{Lifetime: DefaultTokenLifetime}.Set(rec, req, "abc")

	c := recordedCookie(t, rec)
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), c.MaxAge)
}

func TestSessionCookies_SetProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	SessionCookies{Lifetime: time.Hour, Production: true}.Set(rec, req, "abc")

	c := recordedCookie(t, rec)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestSessionCookies_SecureOverTLS(t *testing.T) {
	direct := httptest.NewRequest(http.MethodPost, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	proxied := httptest.NewRequest(http.MethodPost, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")

	for _, req := range []*http.Request{direct, proxied} {
		rec := httptest.NewRecorder()
		SessionCookies{Lifetime: time.Hour}.Set(rec, req, "abc")
		assert.True(t, recordedCookie(t, rec).Secure)
	}
}

func TestSessionCookies_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)

	SessionCookies{Lifetime: time.Hour}.Clear(rec, req)

	header := rec.Header().Get("Set-Cookie")
	assert.Contains(t, header, "token=;")
	assert.Contains(t, header, "Max-Age=0")
	assert.Contains(t, header, "Expires=Thu, 01 Jan 1970 00:00:00 GMT")
	assert.Contains(t, header, "HttpOnly")
}

func TestExtract(t *testing.T) {
	t.Run("cookie wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
		req.Header.Set("Authorization", "Bearer from-header")
		assert.Equal(t, "from-cookie", Extract(req))
	})

	t.Run("bearer fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer from-header")
		assert.Equal(t, "from-header", Extract(req))
	})

	t.Run("empty cookie falls back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: ""})
		req.Header.Set("Authorization", "bearer lower")
		assert.Equal(t, "lower", Extract(req))
	})

	t.Run("other scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		assert.Equal(t, "", Extract(req))
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Equal(t, "", Extract(httptest.NewRequest(http.MethodGet, "/", nil)))
	})
}
