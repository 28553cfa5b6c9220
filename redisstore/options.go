// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package redisstore

import (
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"
)

// ErrInvalidParameter is returned for invalid arguments.
var ErrInvalidParameter = errors.New("invalid parameter")

const (
	// DefaultSessionPrefix prefixes session keys.
	DefaultSessionPrefix = "capweb:session:"

	// DefaultRequestPrefix prefixes pending authorization request keys.
	DefaultRequestPrefix = "capweb:request:"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withKeyPrefix string
	withNowFunc   func() time.Time
	withLogger    hclog.Logger
}

func getOpts(defaultPrefix string, opt ...Option) options {
	opts := options{
		withKeyPrefix: defaultPrefix,
		withLogger:    hclog.NewNullLogger(),
	}
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

// WithKeyPrefix overrides the store's key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && prefix != "" {
			o.withKeyPrefix = prefix
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
