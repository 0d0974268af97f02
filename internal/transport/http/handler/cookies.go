package handler

import (
	"net/http"
	"time"
)

const (
	authCookieName    = "auth_token"
	refreshCookieName = "refresh_token"
)

// CookieWriter sets and clears the bearer-credential cookies. Secure is
// toggled off in development so the cookies work over plain HTTP.
type CookieWriter struct {
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

func (c CookieWriter) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	c.set(w, authCookieName, accessToken, c.AccessMaxAge)
	if refreshToken != "" {
		c.set(w, refreshCookieName, refreshToken, c.RefreshMaxAge)
	}
}

func (c CookieWriter) clearAuthCookies(w http.ResponseWriter) {
	c.clear(w, authCookieName)
	c.clear(w, refreshCookieName)
}

func (c CookieWriter) set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   c.Secure,
	})
}

func (c CookieWriter) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   c.Secure,
	})
}
