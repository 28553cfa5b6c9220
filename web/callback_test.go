// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/capweb/session/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

type completerFunc func(ctx context.Context, resp *oidc.AuthResponse) (*oidc.Authorization, error)

func (f completerFunc) CompleteAuthorization(ctx context.Context, resp *oidc.AuthResponse) (*oidc.Authorization, error) {
	return f(ctx, resp)
}

// testCompleter authorizes every callback, returning to target.
func testCompleter(t *testing.T, target string) completerFunc {
	t.Helper()
	id := testIdentity(t)
	tk, err := oidc.NewToken("eyJ.test.token", &oauth2.Token{AccessToken: "at_secret", Expiry: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	r, err := oidc.NewRequest(time.Minute, oidc.WithRedirectTarget(target))
	require.NoError(t, err)
	return func(context.Context, *oidc.AuthResponse) (*oidc.Authorization, error) {
		return &oidc.Authorization{Identity: id, Token: tk, Request: r}, nil
	}
}

func TestNewCallbackHandler(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	_, err := NewCallbackHandler(testCompleter(t, "/"), nil)
	assert.ErrorIs(err, ErrInvalidParameter)
	_, err = NewCallbackHandler(nil, session.NewMemoryStore())
	assert.ErrorIs(err, oidc.ErrInvalidParameter)
}

func TestCallbackHandler_success(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		target       string
		wantLocation string
	}{
		{name: "original-target", target: "/profile?tab=claims", wantLocation: "/profile?tab=claims"},
		{name: "no-target", target: "", wantLocation: "/"},
		{name: "external-target", target: "https://evil.example.com/", wantLocation: "/"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			ctx := context.Background()
			store := session.NewMemoryStore()
			m := NewMetrics(prometheus.NewRegistry())
			h, err := NewCallbackHandler(testCompleter(t, tt.target), store, WithMetrics(m), WithSessionLifetime(time.Hour))
			require.NoError(err)

			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/login/oauth2/code/auth0?state=st_1&code=c", nil))
			assert.Equal(http.StatusFound, w.Code)
			assert.Equal(tt.wantLocation, w.Header().Get("Location"))

			cks := w.Result().Cookies()
			require.Len(cks, 1)
			assert.Equal(DefaultCookieName, cks[0].Name)
			assert.Equal(3600, cks[0].MaxAge)

			s, err := store.Get(ctx, cks[0].Value)
			require.NoError(err)
			require.NotNil(s)
			assert.Equal("auth0|alice", s.Identity.Subject())
			assert.Equal(oidc.AccessToken("at_secret"), s.AccessToken)
			assert.WithinDuration(time.Now().Add(time.Hour), s.ExpiresAt, time.Minute)
			assert.Equal(1.0, testutil.ToFloat64(m.AuthorizationsCompleted.WithLabelValues(ResultSuccess)))
		})
	}
}

func TestCallbackHandler_failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		wantResult string
	}{
		{name: "denied", err: &oidc.AuthenErrorResponse{Code: "access_denied"}, wantResult: ResultDenied},
		{name: "invalid-state", err: fmt.Errorf("op: %w", oidc.ErrInvalidState), wantResult: ResultInvalidState},
		{name: "token-exchange", err: fmt.Errorf("op: %w", oidc.ErrTokenExchange), wantResult: ResultTokenExchange},
		{name: "invalid-token", err: fmt.Errorf("op: %w", oidc.ErrInvalidToken), wantResult: ResultInvalidToken},
		{name: "malformed-identity", err: fmt.Errorf("op: %w", oidc.ErrMalformedIdentity), wantResult: ResultMalformedIdentity},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			ctrl := gomock.NewController(t)
			// no expectations: a failed login never touches the session store
			store := mocks.NewMockStore(ctrl)
			m := NewMetrics(prometheus.NewRegistry())
			c := completerFunc(func(context.Context, *oidc.AuthResponse) (*oidc.Authorization, error) {
				return nil, tt.err
			})
			h, err := NewCallbackHandler(c, store, WithMetrics(m), WithFailureURL("/login-failed"))
			require.NoError(err)

			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/login/oauth2/code/auth0?state=st_1&code=c", nil))
			assert.Equal(http.StatusFound, w.Code)
			assert.Equal("/login-failed", w.Header().Get("Location"))
			assert.Empty(w.Result().Cookies())
			assert.Equal(1.0, testutil.ToFloat64(m.AuthorizationsCompleted.WithLabelValues(tt.wantResult)))
		})
	}
}

func TestCallbackHandler_sessionCreateFailure(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("connection refused"))
	m := NewMetrics(prometheus.NewRegistry())
	h, err := NewCallbackHandler(testCompleter(t, "/profile"), store, WithMetrics(m))
	require.NoError(err)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/login/oauth2/code/auth0?state=st_1&code=c", nil))
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal(DefaultFailureURL, w.Header().Get("Location"))
	assert.Empty(w.Result().Cookies())
	assert.Equal(1.0, testutil.ToFloat64(m.AuthorizationsCompleted.WithLabelValues(ResultInternal)))
}
