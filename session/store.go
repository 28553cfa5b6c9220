// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks Store

import (
	"context"

	"github.com/hashicorp/capweb/oidc"
)

// Store keeps sessions keyed by their opaque ID.
//
// Implementations must be concurrently safe, since the store will likely be
// used within a concurrent http.Handler.
type Store interface {
	// Create a session for the identity and return its ID.
	Create(ctx context.Context, identity *oidc.Identity, opt ...Option) (string, error)

	// Get the session for the ID.  An unknown, expired or empty ID returns
	// (nil, nil): absence isn't an error.  Errors are backend failures.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Destroy the session.  Destroying an absent session is a no-op.
	Destroy(ctx context.Context, sessionID string) error
}
