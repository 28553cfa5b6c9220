// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/go-hclog"
)

// MemoryStore is an in-process Store.  Sessions don't survive a restart and
// aren't shared between replicas; see the redisstore package for that.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	nowFunc  func() time.Time
	logger   hclog.Logger
}

// ensure that MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
//
// Supported options:
//   - WithNow
//   - WithLogger
func NewMemoryStore(opt ...Option) *MemoryStore {
	opts := getOpts(opt...)
	return &MemoryStore{
		sessions: map[string]*Session{},
		nowFunc:  opts.withNowFunc,
		logger:   opts.withLogger,
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, identity *oidc.Identity, opt ...Option) (string, error) {
	const op = "MemoryStore.Create"
	opt = append([]Option{WithNow(m.nowFunc)}, opt...)
	s, err := New(identity, opt...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s.ID, nil
}

// Get implements Store.  Expired sessions are removed as they're found.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.IsExpired(m.now()) {
		delete(m.sessions, sessionID)
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Destroy implements Store.
func (m *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Len returns the number of sessions held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for sid, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, sid)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (m *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Cleanup(); n > 0 {
					m.logger.Debug("removed expired sessions", "count", n)
				}
			}
		}
	}()
}

func (m *MemoryStore) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}
