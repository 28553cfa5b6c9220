// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/oidc/callback"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultProviderName is the {provider} segment of the callback route.
const DefaultProviderName = "auth0"

// IdentityProvider is everything the router needs from the identity
// provider.  *oidc.Provider is the IdentityProvider used outside of tests.
type IdentityProvider interface {
	Authorizer
	FederatedLogout
	callback.Completer
}

// ensure that oidc.Provider implements the IdentityProvider interface.
var _ IdentityProvider = (*oidc.Provider)(nil)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Provider is required.
	Provider IdentityProvider

	// Sessions is required.
	Sessions session.Store

	// BaseURL is the application's absolute base URL.  It's where the
	// identity provider returns the browser after logout.  Required.
	BaseURL string

	// ProviderName is the {provider} segment of the callback route.
	// Defaults to DefaultProviderName.
	ProviderName string

	// Home serves "/" and Profile serves "/profile".  Static serves
	// "/static/*" with the prefix stripped.  Each is optional.
	Home    http.Handler
	Profile http.Handler
	Static  http.Handler

	// Gatherer, when set, is served at MetricsPath.
	Gatherer prometheus.Gatherer
}

// NewRouter creates the application's http.Handler: the callback and logout
// routes, the metrics endpoint and the application's pages, all behind the
// Gate.
//
// Supported options:
//   - WithLogger
//   - WithMetrics
//   - WithCookieName
//   - WithSecureCookie (defaults to whether BaseURL is https)
//   - WithPublicPaths
//   - WithPublicPrefixes
//   - WithFailureURL
//   - WithSessionLifetime
func NewRouter(cfg RouterConfig, opt ...Option) (http.Handler, error) {
	const op = "web.NewRouter"
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrInvalidParameter)
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q is not an absolute url: %w", op, cfg.BaseURL, ErrInvalidParameter)
	}
	providerName := cfg.ProviderName
	if providerName == "" {
		providerName = DefaultProviderName
	}
	opt = append([]Option{WithSecureCookie(strings.EqualFold(u.Scheme, "https"))}, opt...)
	opts := getOpts(opt...)

	gate, err := NewGate(cfg.Sessions, cfg.Provider, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logout, err := NewLogoutCoordinator(cfg.Sessions, cfg.Provider, cfg.BaseURL, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cb, err := NewCallbackHandler(cfg.Provider, cfg.Sessions, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.withLogger))
	r.Use(middleware.Recoverer)
	r.Use(gate.Middleware)

	r.Get(CallbackPrefix+"{provider}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "provider") != providerName {
			http.NotFound(w, req)
			return
		}
		cb(w, req)
	})
	r.Post(LogoutPath, logout.Handler())
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Home != nil {
		r.Method(http.MethodGet, "/", cfg.Home)
	}
	if cfg.Profile != nil {
		r.Method(http.MethodGet, "/profile", cfg.Profile)
	}
	if cfg.Static != nil {
		r.Method(http.MethodGet, "/static/*", http.StripPrefix("/static/", cfg.Static))
	}
	return r, nil
}

// requestLogger logs one line per request.
func requestLogger(logger hclog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
