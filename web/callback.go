// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/oidc/callback"
	"github.com/hashicorp/capweb/session"
)

// NewCallbackHandler creates the handler for the provider's redirect back to
// the application.  A completed flow becomes a session and a session cookie,
// and the browser continues to the page it originally asked for.  Any
// failure is logged and counted, no session is created, and the browser goes
// to the failure URL without any detail.
//
// Supported options:
//   - WithCookieName
//   - WithSecureCookie
//   - WithFailureURL
//   - WithSessionLifetime
//   - WithLogger
//   - WithMetrics
func NewCallbackHandler(c callback.Completer, store session.Store, opt ...Option) (http.HandlerFunc, error) {
	const op = "web.NewCallbackHandler"
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	ck := newCookies(opts)
	logger := opts.withLogger
	metrics := opts.withMetrics

	fail := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, opts.withFailureURL, http.StatusFound)
	}

	successFn := func(state string, a *oidc.Authorization, w http.ResponseWriter, r *http.Request) {
		start := startFromContext(r)
		sid, err := store.Create(r.Context(), a.Identity,
			session.WithAccessToken(a.Token.AccessToken()),
			session.WithLifetime(opts.withSessionLifetime),
		)
		if err != nil {
			logger.Error("unable to create session", "error", err)
			metrics.ObserveCompletion(ResultInternal, start)
			fail(w, r)
			return
		}
		ck.set(w, sid, opts.withSessionLifetime)
		metrics.ObserveCompletion(ResultSuccess, start)
		logger.Info("login", "subject", a.Identity.Subject())
		http.Redirect(w, r, localTarget(a.Request.RedirectTarget(), "/"), http.StatusFound)
	}

	errorFn := func(state string, e error, w http.ResponseWriter, r *http.Request) {
		result := ResultFor(e)
		metrics.ObserveCompletion(result, startFromContext(r))
		logger.Warn("login failed", "result", result, "error", e)
		fail(w, r)
	}

	h, err := callback.AuthCode(c, successFn, errorFn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(withStart(r.Context(), time.Now())))
	}, nil
}
