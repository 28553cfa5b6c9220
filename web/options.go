// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"errors"
	"time"

	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
)

// ErrInvalidParameter is returned for invalid arguments.
var ErrInvalidParameter = errors.New("invalid parameter")

const (
	// DefaultCookieName is the session cookie's name.
	DefaultCookieName = "capweb_session"

	// DefaultFailureURL is where the browser goes when a login fails.
	DefaultFailureURL = "/"

	// CallbackPrefix is the path prefix of the callback route:
	// /login/oauth2/code/{provider}
	CallbackPrefix = "/login/oauth2/code/"

	// LogoutPath is the logout route.
	LogoutPath = "/logout"

	// MetricsPath is the prometheus scrape route.
	MetricsPath = "/metrics"
)

// DefaultPublicPaths are always let through by the Gate (exact match).
var DefaultPublicPaths = []string{"/", LogoutPath, MetricsPath}

// DefaultPublicPrefixes are always let through by the Gate (prefix match).
var DefaultPublicPrefixes = []string{"/static/", CallbackPrefix}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// options is the set of available options for web functions
type options struct {
	withLogger          hclog.Logger
	withMetrics         *Metrics
	withCookieName      string
	withSecureCookie    bool
	withPublicPaths     []string
	withPublicPrefixes  []string
	withFailureURL      string
	withSessionLifetime time.Duration
}

func getDefaultOptions() options {
	return options{
		withLogger:          hclog.NewNullLogger(),
		withCookieName:      DefaultCookieName,
		withFailureURL:      DefaultFailureURL,
		withSessionLifetime: session.DefaultLifetime,
	}
}

// getOpts gets the defaults and applies the opt overrides passed in.
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMetrics provides optional metrics.
func WithMetrics(m *Metrics) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMetrics = m
		}
	}
}

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSecureCookie = secure
		}
	}
}

// WithPublicPaths adds exact paths the Gate lets through.
func WithPublicPaths(paths ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPublicPaths = append(o.withPublicPaths, paths...)
		}
	}
}

// WithPublicPrefixes adds path prefixes the Gate lets through.
func WithPublicPrefixes(prefixes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPublicPrefixes = append(o.withPublicPrefixes, prefixes...)
		}
	}
}

// WithFailureURL overrides DefaultFailureURL.  It must be a local path.
func WithFailureURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && isLocalTarget(u) {
			o.withFailureURL = u
		}
	}
}

// WithSessionLifetime overrides session.DefaultLifetime for sessions created
// by the callback.
func WithSessionLifetime(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withSessionLifetime = d
		}
	}
}
