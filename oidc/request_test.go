// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()
	testNow := func() time.Time { return time.Now().Add(-1 * time.Minute) }

	tests := []struct {
		name          string
		expireIn      time.Duration
		opts          []Option
		wantTarget    string
		wantPKCE      bool
		wantNowFunc   func() time.Time
		wantErr       bool
		wantIsErr     error
		wantExpiredAt func() time.Time
	}{
		{
			name:     "defaults",
			expireIn: 10 * time.Minute,
		},
		{
			name:        "with-options",
			expireIn:    time.Minute,
			opts:        []Option{WithNow(testNow), WithRedirectTarget("/profile"), WithPKCE()},
			wantTarget:  "/profile",
			wantPKCE:    true,
			wantNowFunc: testNow,
		},
		{
			name:      "zero-expire-in",
			expireIn:  0,
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "negative-expire-in",
			expireIn:  -time.Second,
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewRequest(tt.expireIn, tt.opts...)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.True(strings.HasPrefix(got.State(), "st_"))
			assert.True(strings.HasPrefix(got.Nonce(), "n_"))
			assert.NotEqual(got.State(), got.Nonce())
			assert.Equal(tt.wantTarget, got.RedirectTarget())
			assert.Equal(tt.wantPKCE, got.PKCEVerifier() != "")
			now := time.Now()
			if tt.wantNowFunc != nil {
				now = tt.wantNowFunc()
			}
			assert.WithinDuration(now.Add(tt.expireIn), got.ExpiresAt(), time.Second)
			assert.False(got.IsExpired())
		})
	}
}

func TestReq_IsExpired(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	base := time.Now()
	now := base
	r, err := NewRequest(10*time.Minute, WithNow(func() time.Time { return now }))
	require.NoError(err)

	now = base.Add(10*time.Minute - time.Second)
	assert.False(r.IsExpired())

	// the boundary itself is expired
	now = base.Add(10 * time.Minute)
	assert.True(r.IsExpired())
}

func TestReq_JSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRequest(time.Minute, WithRedirectTarget("/profile"), WithPKCE())
	require.NoError(err)

	b, err := json.Marshal(r)
	require.NoError(err)

	var got Req
	require.NoError(json.Unmarshal(b, &got))
	assert.Equal(r.State(), got.State())
	assert.Equal(r.Nonce(), got.Nonce())
	assert.Equal(r.RedirectTarget(), got.RedirectTarget())
	assert.Equal(r.PKCEVerifier(), got.PKCEVerifier())
	assert.True(r.ExpiresAt().Equal(got.ExpiresAt()))

	err = json.Unmarshal([]byte(`{"state":"st_1"}`), &got)
	assert.ErrorIs(err, ErrInvalidParameter)
}
