package authsession

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CookiePolicy holds the configuration-driven attributes of the session cookie.
type CookiePolicy struct {
	TTL      time.Duration
	Secure   bool
	HttpOnly bool
	SameSite string
}

// CookieManager issues and clears the auth session cookie.
type CookieManager struct {
	path     string
	secure   bool
	httpOnly bool
	sameSite http.SameSite
	maxAge   int
}

// NewCookieManager creates a cookie manager from the given policy.
// Unrecognized same-site values fall back to Lax.
func NewCookieManager(policy CookiePolicy) *CookieManager {
	var sameSite http.SameSite
	switch strings.ToLower(policy.SameSite) {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	default:
		sameSite = http.SameSiteLaxMode
	}

	return &CookieManager{
		path:     "/",
		secure:   policy.Secure,
		httpOnly: policy.HttpOnly,
		sameSite: sameSite,
		maxAge:   int(policy.TTL / time.Second),
	}
}

// SetSessionCookie writes the session cookie carrying the session id.
func (c *CookieManager) SetSessionCookie(w http.ResponseWriter, sessionID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID.String(),
		Path:     c.path,
		MaxAge:   c.maxAge,
		Secure:   c.secure,
		HttpOnly: c.httpOnly,
		SameSite: c.sameSite,
	})
}

// ClearSessionCookie expires the session cookie.
func (c *CookieManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     c.path,
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: c.httpOnly,
		SameSite: c.sameSite,
	})
}

// SessionIDFromRequest extracts and parses the session id cookie.
// The boolean reports whether a cookie was present at all.
func SessionIDFromRequest(r *http.Request) (uuid.UUID, bool, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, true, err
	}
	return id, true, nil
}
