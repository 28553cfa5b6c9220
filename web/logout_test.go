// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/capweb/session/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testReturnTo = "https://app.example.com/"

type logoutFunc func(returnTo string) (string, error)

func (f logoutFunc) LogoutURL(returnTo string) (string, error) { return f(returnTo) }

func testLogoutURL(returnTo string) (string, error) {
	return "https://idp.example.com/v2/logout?client_id=c&returnTo=" + returnTo, nil
}

func TestNewLogoutCoordinator(t *testing.T) {
	t.Parallel()
	store := session.NewMemoryStore()
	tests := []struct {
		name     string
		store    session.Store
		provider FederatedLogout
		returnTo string
		wantErr  bool
	}{
		{name: "valid", store: store, provider: logoutFunc(testLogoutURL), returnTo: testReturnTo},
		{name: "nil-store", provider: logoutFunc(testLogoutURL), returnTo: testReturnTo, wantErr: true},
		{name: "nil-provider", store: store, returnTo: testReturnTo, wantErr: true},
		{name: "relative-return-to", store: store, provider: logoutFunc(testLogoutURL), returnTo: "/", wantErr: true},
		{name: "empty-return-to", store: store, provider: logoutFunc(testLogoutURL), wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewLogoutCoordinator(tt.store, tt.provider, tt.returnTo)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, ErrInvalidParameter)
				assert.Nil(got)
				return
			}
			require.NoError(err)
			assert.NotNil(got)
		})
	}
}

func TestLogoutCoordinator_Logout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("destroys-before-redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		destroyed := false
		store.EXPECT().Destroy(gomock.Any(), "sess-1").DoAndReturn(func(context.Context, string) error {
			destroyed = true
			return nil
		})
		provider := logoutFunc(func(returnTo string) (string, error) {
			assert.True(destroyed, "logout url built before the session was destroyed")
			return testLogoutURL(returnTo)
		})
		l, err := NewLogoutCoordinator(store, provider, testReturnTo)
		require.NoError(err)

		got, err := l.Logout(ctx, "sess-1")
		require.NoError(err)
		assert.Equal("https://idp.example.com/v2/logout?client_id=c&returnTo="+testReturnTo, got)
	})
	t.Run("store-failure-still-redirects", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().Destroy(gomock.Any(), "sess-1").Return(errors.New("connection refused"))
		l, err := NewLogoutCoordinator(store, logoutFunc(testLogoutURL), testReturnTo)
		require.NoError(err)

		got, err := l.Logout(ctx, "sess-1")
		require.NoError(err)
		assert.NotEmpty(got)
	})
	t.Run("no-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctrl := gomock.NewController(t)
		l, err := NewLogoutCoordinator(mocks.NewMockStore(ctrl), logoutFunc(testLogoutURL), testReturnTo)
		require.NoError(err)

		got, err := l.Logout(ctx, "")
		require.NoError(err)
		assert.NotEmpty(got)
	})
	t.Run("idempotent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := session.NewMemoryStore()
		sid, err := store.Create(ctx, testIdentity(t))
		require.NoError(err)
		l, err := NewLogoutCoordinator(store, logoutFunc(testLogoutURL), testReturnTo)
		require.NoError(err)

		first, err := l.Logout(ctx, sid)
		require.NoError(err)
		s, err := store.Get(ctx, sid)
		require.NoError(err)
		assert.Nil(s)

		second, err := l.Logout(ctx, sid)
		require.NoError(err)
		assert.Equal(first, second)
	})
	t.Run("provider-failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l, err := NewLogoutCoordinator(session.NewMemoryStore(), logoutFunc(func(string) (string, error) {
			return "", errors.New("bad return to")
		}), testReturnTo)
		require.NoError(err)

		_, err = l.Logout(ctx, "sess-1")
		assert.Error(err)
	})
}

func TestLogoutCoordinator_Handler(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	store := session.NewMemoryStore()
	sid, err := store.Create(ctx, testIdentity(t))
	require.NoError(err)
	m := NewMetrics(prometheus.NewRegistry())
	l, err := NewLogoutCoordinator(store, logoutFunc(testLogoutURL), testReturnTo, WithMetrics(m), WithSecureCookie(true))
	require.NoError(err)

	w := httptest.NewRecorder()
	l.Handler()(w, withCookie(httptest.NewRequest(http.MethodPost, LogoutPath, nil), sid))
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("https://idp.example.com/v2/logout?client_id=c&returnTo="+testReturnTo, w.Header().Get("Location"))
	assert.Equal(0, store.Len())
	assert.Equal(1.0, testutil.ToFloat64(m.Logouts))

	cks := w.Result().Cookies()
	require.Len(cks, 1)
	assert.Equal(DefaultCookieName, cks[0].Name)
	assert.Empty(cks[0].Value)
	assert.Equal(-1, cks[0].MaxAge)
	assert.True(cks[0].HttpOnly)
	assert.True(cks[0].Secure)
}
