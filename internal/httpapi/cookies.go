package httpapi

import (
	"net/http"
	"time"

	"clipstream.dev/internal/auth"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// CookieConfig controls the token cookie attributes.
type CookieConfig struct {
	Domain string
	Path   string
	Secure bool
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

func (c CookieConfig) sameSite() http.SameSite {
	// Cross-site clients need SameSite=None, which browsers only accept on
	// secure cookies.
	if c.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (a *API) setAuthCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, a.tokenCookie(accessCookieName, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, a.tokenCookie(refreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (a *API) clearAuthCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, a.tokenCookie(accessCookieName, "", expired))
	http.SetCookie(w, a.tokenCookie(refreshCookieName, "", expired))
}

func (a *API) tokenCookie(name, value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   a.cookies.Domain,
		Path:     a.cookies.Path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookies.Secure,
		SameSite: a.cookies.sameSite(),
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	return cookie
}
