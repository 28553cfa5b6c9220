// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// cookies reads and writes the session cookie.  The cookie only ever holds
// the opaque session ID.
type cookies struct {
	name   string
	secure bool
}

func newCookies(opts options) cookies {
	return cookies{name: opts.withCookieName, secure: opts.withSecureCookie}
}

func (c cookies) sessionID(r *http.Request) string {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c cookies) set(w http.ResponseWriter, sessionID string, lifetime time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c cookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isLocalTarget reports whether t is a path on this application, so that
// redirecting to it can't send the browser elsewhere.
func isLocalTarget(t string) bool {
	if !strings.HasPrefix(t, "/") || strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/\\") {
		return false
	}
	u, err := url.Parse(t)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

// localTarget returns t when it's local and fallback otherwise.
func localTarget(t, fallback string) string {
	if isLocalTarget(t) {
		return t
	}
	return fallback
}
