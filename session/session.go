// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/sdk/id"
)

// DefaultLifetime is how long a session lasts when WithLifetime isn't used.
const DefaultLifetime = 8 * time.Hour

var (
	// ErrInvalidParameter is returned for invalid arguments.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is returned for nil arguments.
	ErrNilParameter = errors.New("nil parameter")
)

// Session binds a browser (through an opaque ID carried by a cookie) to the
// Identity it authenticated as.
type Session struct {
	// ID is the opaque session ID: 256 bits of randomness, base64url
	// encoded.
	ID string

	// Identity is who the session belongs to.  Never nil.
	Identity *oidc.Identity

	// AccessToken is the access_token issued alongside the id_token.  It's
	// kept but never presented anywhere.
	AccessToken oidc.AccessToken

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// ExpiresAt is when the session stops being valid.
	ExpiresAt time.Time
}

// New creates a Session with a fresh ID for the identity.
//
// Supported options:
//   - WithAccessToken
//   - WithLifetime
//   - WithNow
func New(identity *oidc.Identity, opt ...Option) (*Session, error) {
	const op = "session.New"
	if identity == nil {
		return nil, fmt.Errorf("%s: identity is nil: %w", op, ErrNilParameter)
	}
	if identity.Subject() == "" {
		return nil, fmt.Errorf("%s: identity has no subject: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	if opts.withLifetime <= 0 {
		return nil, fmt.Errorf("%s: lifetime not greater than zero: %w", op, ErrInvalidParameter)
	}
	sid, err := id.New("")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	now := opts.now()
	return &Session{
		ID:          sid,
		Identity:    identity,
		AccessToken: opts.withAccessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(opts.withLifetime),
	}, nil
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// record is the persisted form of a Session.  Unlike Session's own
// formatting, the access token is written in the clear, so records must only
// go to server-side storage.
type record struct {
	ID          string         `json:"id"`
	Identity    *oidc.Identity `json:"identity"`
	AccessToken string         `json:"access_token,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Encode serializes the session for a shared store.
func Encode(s *Session) ([]byte, error) {
	const op = "session.Encode"
	if s == nil {
		return nil, fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	b, err := json.Marshal(record{
		ID:          s.ID,
		Identity:    s.Identity,
		AccessToken: string(s.AccessToken),
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Session, error) {
	const op = "session.Decode"
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if r.ID == "" || r.Identity == nil {
		return nil, fmt.Errorf("%s: session record is incomplete: %w", op, ErrInvalidParameter)
	}
	return &Session{
		ID:          r.ID,
		Identity:    r.Identity,
		AccessToken: oidc.AccessToken(r.AccessToken),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}, nil
}
