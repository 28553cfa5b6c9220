// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	sessionKey
	startKey
)

// WithIdentity returns a copy of ctx carrying the identity.
func WithIdentity(ctx context.Context, id *oidc.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the Identity the Gate attached to a request's
// context.
func IdentityFromContext(ctx context.Context) (*oidc.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*oidc.Identity)
	return id, ok && id != nil
}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the Session the Gate attached to a request's
// context.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok && s != nil
}

func withStart(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startKey, t)
}

// startFromContext returns when the callback started processing r, or now
// when that's unknown.
func startFromContext(r *http.Request) time.Time {
	if t, ok := r.Context().Value(startKey).(time.Time); ok {
		return t
	}
	return time.Now()
}
