// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a client from a redis:// or rediss:// URL and verifies
// the server is reachable.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "redisstore.NewClient"
	if redisURL == "" {
		return nil, fmt.Errorf("%s: url is empty: %w", op, ErrInvalidParameter)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse url: %w", op, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: ping failed: %w", op, err)
	}
	return client, nil
}
