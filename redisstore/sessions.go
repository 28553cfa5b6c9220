// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/redis/go-redis/v9"
)

// Sessions is a session.Store kept in Redis.  Each session is one key whose
// TTL is the session's remaining lifetime, so Redis does the expiry.
type Sessions struct {
	client redis.Cmdable
	opts   options
}

// ensure that Sessions implements the session.Store interface.
var _ session.Store = (*Sessions)(nil)

// NewSessions creates a Sessions store.
//
// Supported options:
//   - WithKeyPrefix
//   - WithNow
//   - WithLogger
func NewSessions(client redis.Cmdable, opt ...Option) (*Sessions, error) {
	const op = "redisstore.NewSessions"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, ErrInvalidParameter)
	}
	return &Sessions{
		client: client,
		opts:   getOpts(DefaultSessionPrefix, opt...),
	}, nil
}

func (s *Sessions) key(sessionID string) string {
	return s.opts.withKeyPrefix + sessionID
}

// Create implements session.Store.
func (s *Sessions) Create(ctx context.Context, identity *oidc.Identity, opt ...session.Option) (string, error) {
	const op = "Sessions.Create"
	opt = append([]session.Option{session.WithNow(s.opts.withNowFunc)}, opt...)
	sess, err := session.New(identity, opt...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	b, err := session.Encode(sess)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	ttl := sess.ExpiresAt.Sub(s.opts.now())
	ok, err := s.client.SetNX(ctx, s.key(sess.ID), b, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%s: unable to store session: %w", op, err)
	}
	if !ok {
		// 256 random bits colliding means the random source is broken
		return "", fmt.Errorf("%s: session id collision: %w", op, session.ErrInvalidParameter)
	}
	return sess.ID, nil
}

// Get implements session.Store.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	const op = "Sessions.Get"
	if sessionID == "" {
		return nil, nil
	}
	b, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: unable to read session: %w", op, err)
	}
	sess, err := session.Decode(b)
	if err != nil {
		// an unreadable record is treated as absent and removed
		s.opts.withLogger.Warn("discarding unreadable session record", "error", err)
		_ = s.client.Del(ctx, s.key(sessionID)).Err()
		return nil, nil
	}
	if sess.IsExpired(s.opts.now()) {
		return nil, nil
	}
	return sess, nil
}

// Destroy implements session.Store.
func (s *Sessions) Destroy(ctx context.Context, sessionID string) error {
	const op = "Sessions.Destroy"
	if sessionID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%s: unable to delete session: %w", op, err)
	}
	return nil
}
