package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "token"

// SessionCookies writes and reads the session cookie. In production the
// frontend lives on another origin, so the cookie must be SameSite=None and
// therefore Secure.
type SessionCookies struct {
	Lifetime   time.Duration
	Production bool
}

func (s SessionCookies) sameSite() http.SameSite {
	if s.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (s SessionCookies) secure(r *http.Request) bool {
	return s.Production || IsTLS(r)
}

// IsTLS reports whether r reached us over TLS, directly or via a proxy.
func IsTLS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Set attaches the session cookie for token.
func (s SessionCookies) Set(w http.ResponseWriter, r *http.Request, token string) {
	lifetime := s.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		SameSite: s.sameSite(),
		Secure:   s.secure(r),
	})
}

// Clear overwrites the session cookie with an empty, already expired value.
func (s SessionCookies) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: s.sameSite(),
		Secure:   s.secure(r),
	})
}

// Extract returns the session token from the cookie, falling back to an
// "Authorization: Bearer" header for non-browser clients.
func Extract(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
