// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
)

// Authorizer starts authorization code flows.  *oidc.Provider is the
// Authorizer used outside of tests.
type Authorizer interface {
	BeginAuthorization(ctx context.Context, requestedResource string) (string, oidc.Request, error)
}

// ensure that oidc.Provider implements the Authorizer interface.
var _ Authorizer = (*oidc.Provider)(nil)

// DecisionState is the outcome of a Gate decision.
type DecisionState int

const (
	// DecisionPermitted lets the request through.
	DecisionPermitted DecisionState = iota

	// DecisionRedirectToLogin sends the browser to the identity provider.
	DecisionRedirectToLogin
)

// String returns a readable state.
func (s DecisionState) String() string {
	switch s {
	case DecisionPermitted:
		return "permitted"
	case DecisionRedirectToLogin:
		return "redirect-to-login"
	default:
		return fmt.Sprintf("DecisionState(%d)", int(s))
	}
}

// Decision is what the Gate decided for one request.
type Decision struct {
	State DecisionState

	// RedirectURL is the provider's authorization URL when State is
	// DecisionRedirectToLogin.
	RedirectURL string

	// Session and Identity are set when a live session permitted the
	// request.  Both are nil for public paths.
	Session  *session.Session
	Identity *oidc.Identity
}

// Gate decides, for every request, whether it may proceed.
type Gate struct {
	store          session.Store
	authorizer     Authorizer
	cookies        cookies
	publicPaths    map[string]bool
	publicPrefixes []string
	logger         hclog.Logger
	metrics        *Metrics
}

// NewGate creates a Gate.
//
// Supported options:
//   - WithPublicPaths
//   - WithPublicPrefixes
//   - WithCookieName
//   - WithLogger
//   - WithMetrics
func NewGate(store session.Store, authorizer Authorizer, opt ...Option) (*Gate, error) {
	const op = "web.NewGate"
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrInvalidParameter)
	}
	if authorizer == nil {
		return nil, fmt.Errorf("%s: authorizer is nil: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	g := &Gate{
		store:          store,
		authorizer:     authorizer,
		cookies:        newCookies(opts),
		publicPaths:    map[string]bool{},
		publicPrefixes: append(append([]string{}, DefaultPublicPrefixes...), opts.withPublicPrefixes...),
		logger:         opts.withLogger,
		metrics:        opts.withMetrics,
	}
	for _, p := range append(append([]string{}, DefaultPublicPaths...), opts.withPublicPaths...) {
		g.publicPaths[p] = true
	}
	return g, nil
}

// IsPublic reports whether path is let through without a session.
func (g *Gate) IsPublic(path string) bool {
	if g.publicPaths[path] {
		return true
	}
	for _, p := range g.publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Decide makes the Gate's decision for r.  Public paths are permitted
// without looking at the cookie or the store.  An error means the decision
// couldn't be made (a failing session store) and the request must not
// proceed.
func (g *Gate) Decide(r *http.Request) (Decision, error) {
	const op = "Gate.Decide"
	if g.IsPublic(r.URL.Path) {
		return Decision{State: DecisionPermitted}, nil
	}

	if sid := g.cookies.sessionID(r); sid != "" {
		s, err := g.store.Get(r.Context(), sid)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: unable to read session: %w", op, err)
		}
		if s != nil {
			return Decision{State: DecisionPermitted, Session: s, Identity: s.Identity}, nil
		}
	}

	target := "/"
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		target = localTarget(r.URL.RequestURI(), "/")
	}
	authURL, _, err := g.authorizer.BeginAuthorization(r.Context(), target)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: unable to begin authorization: %w", op, err)
	}
	g.metrics.IncrementStarted()
	return Decision{State: DecisionRedirectToLogin, RedirectURL: authURL}, nil
}

// Middleware applies the Gate to next.  Permitted requests reach next with
// the Identity (and Session) in their context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := g.Decide(r)
		if err != nil {
			g.logger.Error("gate decision failed", "path", r.URL.Path, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		switch d.State {
		case DecisionRedirectToLogin:
			http.Redirect(w, r, d.RedirectURL, http.StatusFound)
		default:
			ctx := r.Context()
			if d.Session != nil {
				ctx = withSession(WithIdentity(ctx, d.Identity), d.Session)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}
