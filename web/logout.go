// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
)

// FederatedLogout builds the identity provider's logout URL.
// *oidc.Provider is the FederatedLogout used outside of tests.
type FederatedLogout interface {
	LogoutURL(returnTo string) (string, error)
}

// ensure that oidc.Provider implements the FederatedLogout interface.
var _ FederatedLogout = (*oidc.Provider)(nil)

// LogoutCoordinator ends the local session and the provider's session
// together.
type LogoutCoordinator struct {
	store    session.Store
	provider FederatedLogout
	returnTo string
	cookies  cookies
	logger   hclog.Logger
	metrics  *Metrics
}

// NewLogoutCoordinator creates a LogoutCoordinator.  returnTo is the
// absolute URL the provider sends the browser back to, normally the
// application's base URL.
//
// Supported options:
//   - WithCookieName
//   - WithSecureCookie
//   - WithLogger
//   - WithMetrics
func NewLogoutCoordinator(store session.Store, provider FederatedLogout, returnTo string, opt ...Option) (*LogoutCoordinator, error) {
	const op = "web.NewLogoutCoordinator"
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrInvalidParameter)
	}
	if provider == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(returnTo)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%s: return to %q is not an absolute url: %w", op, returnTo, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	return &LogoutCoordinator{
		store:    store,
		provider: provider,
		returnTo: returnTo,
		cookies:  newCookies(opts),
		logger:   opts.withLogger,
		metrics:  opts.withMetrics,
	}, nil
}

// Logout destroys the session (if any) and only then returns the provider's
// logout URL.  A failure to destroy the session is logged but doesn't stop
// the logout: the user asked to leave.  Calling it again, or with an empty
// sessionID, yields the same URL.
func (l *LogoutCoordinator) Logout(ctx context.Context, sessionID string) (string, error) {
	const op = "LogoutCoordinator.Logout"
	if sessionID != "" {
		if err := l.store.Destroy(ctx, sessionID); err != nil {
			l.logger.Error("unable to destroy session during logout", "error", err)
		}
	}
	u, err := l.provider.LogoutURL(l.returnTo)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	l.metrics.IncrementLogouts()
	return u, nil
}

// Handler serves POST /logout: the session cookie is cleared and the browser
// is sent to the provider's logout endpoint.
func (l *LogoutCoordinator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := l.Logout(r.Context(), l.cookies.sessionID(r))
		l.cookies.clear(w)
		if err != nil {
			l.logger.Error("unable to build provider logout url", "error", err)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
	}
}
