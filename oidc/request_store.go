// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// RequestStore holds pending authorization Requests between the redirect to
// the provider and the callback.
//
// Implementations must be concurrently safe, since the store will likely be
// used within a concurrent http.Handler.
type RequestStore interface {
	// Add a new Request, keyed by its State().
	Add(ctx context.Context, r Request) error

	// Consume atomically removes and returns the Request for the state.  It
	// returns ErrInvalidState when the state is unknown, was already
	// consumed or has expired.  For any one state, at most one caller ever
	// gets the Request back.
	Consume(ctx context.Context, state string) (Request, error)
}

// MemoryRequestStore is an in-process RequestStore.
type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[string]Request
	nowFunc  func() time.Time
	logger   hclog.Logger
}

// ensure that MemoryRequestStore implements the RequestStore interface.
var _ RequestStore = (*MemoryRequestStore)(nil)

// NewMemoryRequestStore creates an empty MemoryRequestStore.
//
// Supported options:
//   - WithNow
//   - WithLogger
func NewMemoryRequestStore(opt ...Option) *MemoryRequestStore {
	opts := getRequestStoreOpts(opt...)
	return &MemoryRequestStore{
		requests: map[string]Request{},
		nowFunc:  opts.withNowFunc,
		logger:   opts.withLogger,
	}
}

// Add implements RequestStore.
func (s *MemoryRequestStore) Add(_ context.Context, r Request) error {
	const op = "MemoryRequestStore.Add"
	if r == nil {
		return fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() == "" {
		return fmt.Errorf("%s: request state is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.State()]; ok {
		return fmt.Errorf("%s: request state already exists: %w", op, ErrInvalidParameter)
	}
	s.requests[r.State()] = r
	return nil
}

// Consume implements RequestStore.  The lookup and the delete happen under
// one lock, so concurrent duplicate callbacks see exactly one winner.
func (s *MemoryRequestStore) Consume(_ context.Context, state string) (Request, error) {
	const op = "MemoryRequestStore.Consume"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidState)
	}
	s.mu.Lock()
	r, ok := s.requests[state]
	delete(s.requests, state)
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s: state not found: %w", op, ErrInvalidState)
	}
	if !r.ExpiresAt().After(s.now()) {
		return nil, fmt.Errorf("%s: %s: %w", op, ErrExpiredRequest, ErrInvalidState)
	}
	return r, nil
}

// Len returns the number of requests currently held, expired or not.
func (s *MemoryRequestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Cleanup removes expired requests and returns how many were removed.
func (s *MemoryRequestStore) Cleanup() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for state, r := range s.requests {
		if !r.ExpiresAt().After(now) {
			delete(s.requests, state)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.  Abandoned
// flows (the user closed the tab mid-redirect) are reclaimed this way.
func (s *MemoryRequestStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Cleanup(); n > 0 {
					s.logger.Debug("removed expired authorization requests", "count", n)
				}
			}
		}
	}()
}

func (s *MemoryRequestStore) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}

// requestStoreOptions is the set of available options for MemoryRequestStore
type requestStoreOptions struct {
	withNowFunc func() time.Time
	withLogger  hclog.Logger
}

func requestStoreDefaults() requestStoreOptions {
	return requestStoreOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getRequestStoreOpts(opt ...Option) requestStoreOptions {
	opts := requestStoreDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
