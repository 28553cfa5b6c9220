// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Request basically represents one OIDC authentication flow for a user.  It
// contains the data needed to uniquely represent that one-time flow across the
// multiple interactions needed to complete the OIDC flow the user is
// attempting.
//
// State() is passed throughout the OIDC interactions to uniquely identify the
// flow's request.  The State() and Nonce() cannot be equal, and will be used
// during the OIDC flow to prevent CSRF and replay attacks.
type Request interface {
	// State is a unique identifier and an opaque value used to maintain
	// request between the oidc request and the callback.  State cannot equal
	// the Nonce.
	State() string

	// Nonce is a unique nonce and a string value used to associate a Client
	// session with an ID Token, and to mitigate replay attacks.  Nonce cannot
	// equal the State.
	Nonce() string

	// IsExpired returns true if the request has expired.
	IsExpired() bool

	// ExpiresAt is when the request stops being valid.
	ExpiresAt() time.Time

	// RedirectTarget is the local URL the user originally asked for.  It may
	// be empty.
	RedirectTarget() string

	// PKCEVerifier is the PKCE code verifier sent during the code exchange.
	// It's empty when PKCE isn't used.
	PKCEVerifier() string
}

// Req represents the oidc request used for oidc flows and implements the Request interface.
type Req struct {
	//	state is a unique identifier and an opaque value used to maintain request
	//	between the oidc request and the callback.
	state string

	// nonce is a unique nonce and suitable for use as an oidc nonce.
	nonce string

	// expiration is the expiration time for the Request.
	expiration time.Time

	// redirectTarget is where the user lands once the flow completes.
	redirectTarget string

	// verifier is an optional PKCE code verifier.
	verifier string

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

// ensure that Request implements the Request interface.
var _ Request = (*Req)(nil)

// NewRequest creates a new Request (*Req).
//
// Supported options:
//   - WithNow
//   - WithRedirectTarget
//   - WithPKCE
func NewRequest(expireIn time.Duration, opt ...Option) (*Req, error) {
	const op = "oidc.NewRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getReqOpts(opt...)

	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
	}
	state, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
	}
	r := &Req{
		state:          state,
		nonce:          nonce,
		redirectTarget: opts.withRedirectTarget,
		nowFunc:        opts.withNowFunc,
	}
	if opts.withPKCE {
		r.verifier = oauth2.GenerateVerifier()
	}
	r.expiration = r.now().Add(expireIn)
	return r, nil
}

// State implements the Request.State() interface function.
func (r *Req) State() string { return r.state }

// Nonce implements the Request.Nonce() interface function.
func (r *Req) Nonce() string { return r.nonce }

// ExpiresAt implements the Request.ExpiresAt() interface function.
func (r *Req) ExpiresAt() time.Time { return r.expiration }

// RedirectTarget implements the Request.RedirectTarget() interface function.
func (r *Req) RedirectTarget() string { return r.redirectTarget }

// PKCEVerifier implements the Request.PKCEVerifier() interface function.
func (r *Req) PKCEVerifier() string { return r.verifier }

// IsExpired returns true if the request has expired.
func (r *Req) IsExpired() bool {
	return !r.expiration.After(r.now())
}

// now returns the current time using the optional nowFunc.
func (r *Req) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now() // fallback to this default
}

// reqJSON is the persisted form of a Req, used by shared request stores.
type reqJSON struct {
	State          string    `json:"state"`
	Nonce          string    `json:"nonce"`
	Expiration     time.Time `json:"expiration"`
	RedirectTarget string    `json:"redirect_target,omitempty"`
	Verifier       string    `json:"verifier,omitempty"`
}

// MarshalJSON encodes the request, including its PKCE verifier, so it must
// only be written to server-side storage.
func (r *Req) MarshalJSON() ([]byte, error) {
	return json.Marshal(reqJSON{
		State:          r.state,
		Nonce:          r.nonce,
		Expiration:     r.expiration,
		RedirectTarget: r.redirectTarget,
		Verifier:       r.verifier,
	})
}

// UnmarshalJSON decodes a request written by MarshalJSON.
func (r *Req) UnmarshalJSON(data []byte) error {
	const op = "Req.UnmarshalJSON"
	var j reqJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if j.State == "" || j.Nonce == "" {
		return fmt.Errorf("%s: state and nonce are required: %w", op, ErrInvalidParameter)
	}
	r.state = j.State
	r.nonce = j.Nonce
	r.expiration = j.Expiration
	r.redirectTarget = j.RedirectTarget
	r.verifier = j.Verifier
	return nil
}

// reqOptions is the set of available options for Req functions
type reqOptions struct {
	withNowFunc        func() time.Time
	withRedirectTarget string
	withPKCE           bool
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{}
}

// getReqOpts gets the request defaults and applies the opt overrides passed in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithRedirectTarget records the local URL to return the user to once the
// flow completes.
func WithRedirectTarget(target string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withRedirectTarget = target
		}
	}
}
