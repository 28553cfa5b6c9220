// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(t *testing.T) *oidc.Identity {
	t.Helper()
	id, err := oidc.ProjectClaims([]byte(`{"sub":"auth0|1","name":"Jane Doe","email":"jane@example.com"}`))
	require.NoError(t, err)
	return id
}

func TestNew(t *testing.T) {
	t.Parallel()
	now := time.Unix(1700000000, 0)
	testNow := func() time.Time { return now }

	t.Run("defaults", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := New(testIdentity(t), WithNow(testNow))
		require.NoError(err)
		raw, err := base64.RawURLEncoding.DecodeString(s.ID)
		require.NoError(err)
		assert.Len(raw, 32)
		assert.Equal(now, s.CreatedAt)
		assert.Equal(now.Add(DefaultLifetime), s.ExpiresAt)
		assert.Empty(s.AccessToken)
		assert.Equal("auth0|1", s.Identity.Subject())
	})
	t.Run("options", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := New(testIdentity(t), WithNow(testNow), WithLifetime(time.Hour), WithAccessToken("at_secret"))
		require.NoError(err)
		assert.Equal(now.Add(time.Hour), s.ExpiresAt)
		assert.Equal(oidc.AccessToken("at_secret"), s.AccessToken)
		assert.NotContains(fmt.Sprintf("%v", s), "at_secret")
	})
	t.Run("nil-identity", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("zero-identity", func(t *testing.T) {
		_, err := New(&oidc.Identity{})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("bad-lifetime", func(t *testing.T) {
		_, err := New(testIdentity(t), WithLifetime(0))
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestSession_IsExpired(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	now := time.Now()
	s := &Session{ExpiresAt: now}
	assert.True(s.IsExpired(now))
	assert.False(s.IsExpired(now.Add(-time.Nanosecond)))
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s, err := New(testIdentity(t), WithAccessToken("at_secret"))
	require.NoError(err)

	b, err := Encode(s)
	require.NoError(err)
	got, err := Decode(b)
	require.NoError(err)
	assert.Equal(s.ID, got.ID)
	assert.Equal(s.AccessToken, got.AccessToken)
	assert.True(s.CreatedAt.Equal(got.CreatedAt))
	assert.True(s.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(s.Identity.Claims(), got.Identity.Claims())
	assert.Equal(s.Identity.ClaimNames(), got.Identity.ClaimNames())

	_, err = Encode(nil)
	assert.ErrorIs(err, ErrNilParameter)
	_, err = Decode([]byte(`{"id":"x"}`))
	assert.ErrorIs(err, ErrInvalidParameter)
	_, err = Decode([]byte(`not json`))
	assert.Error(err)
}
