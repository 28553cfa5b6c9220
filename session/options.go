// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// options is the set of available options for session functions
type options struct {
	withAccessToken oidc.AccessToken
	withLifetime    time.Duration
	withNowFunc     func() time.Time
	withLogger      hclog.Logger
}

func getDefaultOptions() options {
	return options{
		withLifetime: DefaultLifetime,
		withLogger:   hclog.NewNullLogger(),
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

func (o options) now() time.Time {
	if o.withNowFunc != nil {
		return o.withNowFunc()
	}
	return time.Now()
}

// WithAccessToken stores the access_token with the session.
func WithAccessToken(t oidc.AccessToken) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withAccessToken = t
		}
	}
}

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLifetime = d
		}
	}
}

// WithNow provides an optional func for determining the current time.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && now != nil {
			o.withNowFunc = now
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}
