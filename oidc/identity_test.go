// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectClaims(t *testing.T) {
	t.Parallel()

	t.Run("jane-doe", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := `{"sub":"auth0|1","name":"Jane Doe","email":"jane@example.com","picture":"https://example.com/jane.png","iat":1700000000,"exp":1700003600,"https://example.com/roles":["admin"]}`
		id, err := ProjectClaims([]byte(raw))
		require.NoError(err)
		assert.Equal("auth0|1", id.Subject())
		assert.Equal("Jane Doe", id.Name())
		assert.Equal("jane@example.com", id.Email())
		assert.Equal("https://example.com/jane.png", id.Picture())
		assert.Equal(time.Unix(1700000000, 0).UTC(), id.IssuedAt())
		assert.Equal(time.Unix(1700003600, 0).UTC(), id.ExpiresAt())
		assert.Equal([]string{"sub", "name", "email", "picture", "iat", "exp", "https://example.com/roles"}, id.ClaimNames())

		roles, ok := id.Claim("https://example.com/roles")
		require.True(ok)
		assert.Equal([]interface{}{"admin"}, roles)
		iat, ok := id.Claim("iat")
		require.True(ok)
		assert.Equal(json.Number("1700000000"), iat)

		_, ok = id.Claim("missing")
		assert.False(ok)
	})

	t.Run("subject-only", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		id, err := ProjectClaims([]byte(`{"sub":"u1"}`))
		require.NoError(err)
		assert.Equal("u1", id.Subject())
		assert.Empty(id.Name())
		assert.Empty(id.Email())
		assert.Empty(id.Picture())
		assert.True(id.IssuedAt().IsZero())
	})

	t.Run("non-string-name", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		id, err := ProjectClaims([]byte(`{"sub":"u1","name":{"given":"Jane"}}`))
		require.NoError(err)
		assert.Empty(id.Name())
		v, ok := id.Claim("name")
		require.True(ok)
		assert.Equal(map[string]interface{}{"given": "Jane"}, v)
	})

	malformed := []struct {
		name string
		raw  string
	}{
		{name: "missing-sub", raw: `{"name":"Jane Doe"}`},
		{name: "empty-sub", raw: `{"sub":""}`},
		{name: "numeric-sub", raw: `{"sub":42}`},
		{name: "array", raw: `["sub"]`},
		{name: "not-json", raw: `sub`},
		{name: "empty", raw: ``},
	}
	for _, tt := range malformed {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProjectClaims([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedIdentity)
		})
	}
}

func TestNewIdentity(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	claims := map[string]interface{}{"sub": "u1", "email": "u1@example.com", "exp": int64(1700003600)}
	id, err := NewIdentity(claims)
	require.NoError(err)
	assert.Equal([]string{"email", "exp", "sub"}, id.ClaimNames())
	assert.Equal(time.Unix(1700003600, 0).UTC(), id.ExpiresAt())

	// later changes to the caller's map don't leak in
	claims["email"] = "changed@example.com"
	assert.Equal("u1@example.com", id.Email())

	_, err = NewIdentity(nil)
	assert.ErrorIs(err, ErrMalformedIdentity)
	_, err = NewIdentity(map[string]interface{}{"email": "x"})
	assert.ErrorIs(err, ErrMalformedIdentity)
}

func TestIdentity_immutable(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	id, err := ProjectClaims([]byte(`{"sub":"u1","groups":["a","b"],"meta":{"k":"v"}}`))
	require.NoError(err)

	groups, _ := id.Claim("groups")
	groups.([]interface{})[0] = "mutated"
	all := id.Claims()
	all["meta"].(map[string]interface{})["k"] = "mutated"
	names := id.ClaimNames()
	names[0] = "mutated"

	groups, _ = id.Claim("groups")
	assert.Equal([]interface{}{"a", "b"}, groups)
	meta, _ := id.Claim("meta")
	assert.Equal(map[string]interface{}{"k": "v"}, meta)
	assert.Equal([]string{"sub", "groups", "meta"}, id.ClaimNames())
}

func TestIdentity_JSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	raw := `{"sub":"auth0|1","name":"Jane Doe","exp":1700003600,"custom":{"b":1,"a":2}}`
	id, err := ProjectClaims([]byte(raw))
	require.NoError(err)

	b, err := json.Marshal(id)
	require.NoError(err)
	assert.Equal(`{"sub":"auth0|1","name":"Jane Doe","exp":1700003600,"custom":{"a":2,"b":1}}`, string(b))

	var got Identity
	require.NoError(json.Unmarshal(b, &got))
	assert.Equal(id.ClaimNames(), got.ClaimNames())
	assert.Equal(id.Claims(), got.Claims())

	assert.ErrorIs(json.Unmarshal([]byte(`{"name":"x"}`), &got), ErrMalformedIdentity)
}
