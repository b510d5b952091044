package session

import (
	"net/http"
	"net/url"
	"strings"
)

// CookieName is the single cookie this service issues and reads.
const CookieName = "session"

// EncodeCookie renders a Set-Cookie header value carrying the session
// token. All attributes are fixed except Max-Age, so the output is
// reproducible for a given token and lifetime.
func EncodeCookie(tok string, maxAge int) string {
	c := http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}

// ClearCookie renders a Set-Cookie header value that deletes the
// session cookie immediately (Max-Age=0, same path and flags).
func ClearCookie() string {
	c := http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}

// DecodeCookie extracts the session token from a raw Cookie request
// header. The value is percent-decoded. Absent, empty, or malformed
// input yields "" rather than an error; callers treat "" as
// unauthenticated.
func DecodeCookie(rawHeader string) string {
	if strings.TrimSpace(rawHeader) == "" {
		return ""
	}
	for _, part := range strings.Split(rawHeader, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) != CookieName {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		if value == "" {
			return ""
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return ""
		}
		return decoded
	}
	return ""
}

// SetOn writes the session cookie onto an outgoing response.
func SetOn(w http.ResponseWriter, tok string, maxAge int) {
	if w == nil {
		return
	}
	w.Header().Add("Set-Cookie", EncodeCookie(tok, maxAge))
}

// ClearOn instructs the client to drop the session cookie.
func ClearOn(w http.ResponseWriter) {
	if w == nil {
		return
	}
	w.Header().Add("Set-Cookie", ClearCookie())
}
