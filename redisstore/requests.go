// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/capweb/oidc"
	"github.com/redis/go-redis/v9"
)

// Requests is an oidc.RequestStore kept in Redis.  Consume uses GETDEL, so
// exactly one of any number of concurrent callbacks, on any replica, gets a
// pending request back.
type Requests struct {
	client redis.Cmdable
	opts   options
}

// ensure that Requests implements the oidc.RequestStore interface.
var _ oidc.RequestStore = (*Requests)(nil)

// NewRequests creates a Requests store.
//
// Supported options:
//   - WithKeyPrefix
//   - WithNow
//   - WithLogger
func NewRequests(client redis.Cmdable, opt ...Option) (*Requests, error) {
	const op = "redisstore.NewRequests"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrInvalidParameter)
	}
	return &Requests{
		client: client,
		opts:   getOpts(DefaultRequestPrefix, opt...),
	}, nil
}

func (r *Requests) key(state string) string {
	return r.opts.withKeyPrefix + state
}

// Add implements oidc.RequestStore.
func (r *Requests) Add(ctx context.Context, req oidc.Request) error {
	const op = "Requests.Add"
	if req == nil {
		return fmt.Errorf("%s: request is nil: %w", op, oidc.ErrNilParameter)
	}
	if req.State() == "" {
		return fmt.Errorf("%s: request state is empty: %w", op, oidc.ErrInvalidParameter)
	}
	ttl := req.ExpiresAt().Sub(r.opts.now())
	if ttl <= 0 {
		return fmt.Errorf("%s: request is already expired: %w", op, oidc.ErrExpiredRequest)
	}
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: unable to encode request: %w", op, err)
	}
	ok, err := r.client.SetNX(ctx, r.key(req.State()), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: unable to store request: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: request state already exists: %w", op, oidc.ErrInvalidParameter)
	}
	return nil
}

// Consume implements oidc.RequestStore.
func (r *Requests) Consume(ctx context.Context, state string) (oidc.Request, error) {
	const op = "Requests.Consume"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, oidc.ErrInvalidState)
	}
	b, err := r.client.GetDel(ctx, r.key(state)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%s: state not found: %w", op, oidc.ErrInvalidState)
	case err != nil:
		return nil, fmt.Errorf("%s: unable to consume request: %w", op, err)
	}
	var req oidc.Req
	if err := json.Unmarshal(b, &req); err != nil {
		r.opts.withLogger.Warn("discarding unreadable authorization request", "error", err)
		return nil, fmt.Errorf("%s: unreadable request: %w", op, oidc.ErrInvalidState)
	}
	if !req.ExpiresAt().After(r.opts.now()) {
		return nil, fmt.Errorf("%s: %s: %w", op, oidc.ErrExpiredRequest, oidc.ErrInvalidState)
	}
	return &req, nil
}
