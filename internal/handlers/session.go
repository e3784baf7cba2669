package handlers

import (
	"net/http"
	"time"
)

// TokenCookieName is the cookie carrying the identity token.
const TokenCookieName = "token"

// SessionCookies attaches, reads, and clears the session token on the HTTP
// transport. The cookie lifetime matches the token lifetime so both expire
// together.
type SessionCookies struct {
	ttl    time.Duration
	secure bool
}

func NewSessionCookies(ttl time.Duration, secure bool) SessionCookies {
	return SessionCookies{ttl: ttl, secure: secure}
}

// Attach stores the token in an http-only, same-site-strict cookie.
func (c SessionCookies) Attach(w http.ResponseWriter, tokenString string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read returns the carried token, or false if the cookie is absent.
func (c SessionCookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the cookie immediately.
func (c SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
