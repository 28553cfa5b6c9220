// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
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
)

const testAuthURL = "https://idp.example.com/authorize?state=st_1"

// testAuthorizer records the redirect targets it's asked to begin flows for.
type testAuthorizer struct {
	mu      sync.Mutex
	targets []string
	err     error
}

func (a *testAuthorizer) BeginAuthorization(_ context.Context, target string) (string, oidc.Request, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", nil, a.err
	}
	a.targets = append(a.targets, target)
	r, err := oidc.NewRequest(time.Minute, oidc.WithRedirectTarget(target))
	if err != nil {
		return "", nil, err
	}
	return testAuthURL, r, nil
}

func (a *testAuthorizer) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.targets...)
}

func testIdentity(t *testing.T) *oidc.Identity {
	t.Helper()
	id, err := oidc.ProjectClaims([]byte(`{"sub":"auth0|alice","name":"Alice","email":"alice@example.com"}`))
	require.NoError(t, err)
	return id
}

func testSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(testIdentity(t))
	require.NoError(t, err)
	return s
}

func withCookie(r *http.Request, value string) *http.Request {
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: value})
	return r
}

func TestNewGate(t *testing.T) {
	t.Parallel()
	store := session.NewMemoryStore()
	a := &testAuthorizer{}

	tests := []struct {
		name       string
		store      session.Store
		authorizer Authorizer
		wantErr    bool
	}{
		{name: "valid", store: store, authorizer: a},
		{name: "nil-store", authorizer: a, wantErr: true},
		{name: "nil-authorizer", store: store, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewGate(tt.store, tt.authorizer)
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

func TestGate_Decide_public(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	// no expectations: any store call fails the test
	store := mocks.NewMockStore(ctrl)
	a := &testAuthorizer{}
	g, err := NewGate(store, a, WithPublicPaths("/about"), WithPublicPrefixes("/assets/"))
	require.NoError(t, err)

	paths := []string{
		"/",
		"/static/app.css",
		"/static/",
		"/login/oauth2/code/auth0",
		"/logout",
		"/metrics",
		"/about",
		"/assets/logo.png",
	}
	for _, p := range paths {
		p := p
		t.Run(p, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			for _, ck := range []string{"", "sess-unknown"} {
				r := httptest.NewRequest(http.MethodGet, p, nil)
				if ck != "" {
					r = withCookie(r, ck)
				}
				d, err := g.Decide(r)
				require.NoError(err)
				assert.Equal(DecisionPermitted, d.State)
				assert.Nil(d.Identity)
				assert.Empty(d.RedirectURL)
			}
		})
	}
	assert.Empty(t, a.calls())
}

func TestGate_Decide(t *testing.T) {
	t.Parallel()
	sess := testSession(t)

	tests := []struct {
		name       string
		method     string
		target     string
		cookie     string
		setup      func(m *mocks.MockStoreMockRecorder)
		wantState  DecisionState
		wantTarget string
		wantErr    bool
	}{
		{
			name:   "live-session",
			method: http.MethodGet,
			target: "/profile",
			cookie: sess.ID,
			setup: func(m *mocks.MockStoreMockRecorder) {
				m.Get(gomock.Any(), sess.ID).Return(sess, nil)
			},
			wantState: DecisionPermitted,
		},
		{
			name:       "no-cookie",
			method:     http.MethodGet,
			target:     "/profile?tab=claims",
			wantState:  DecisionRedirectToLogin,
			wantTarget: "/profile?tab=claims",
		},
		{
			name:   "unknown-session",
			method: http.MethodGet,
			target: "/profile",
			cookie: "sess-unknown",
			setup: func(m *mocks.MockStoreMockRecorder) {
				m.Get(gomock.Any(), "sess-unknown").Return(nil, nil)
			},
			wantState:  DecisionRedirectToLogin,
			wantTarget: "/profile",
		},
		{
			name:       "head-keeps-target",
			method:     http.MethodHead,
			target:     "/reports/1",
			wantState:  DecisionRedirectToLogin,
			wantTarget: "/reports/1",
		},
		{
			name:       "post-returns-home",
			method:     http.MethodPost,
			target:     "/reports",
			wantState:  DecisionRedirectToLogin,
			wantTarget: "/",
		},
		{
			name:   "store-failure",
			method: http.MethodGet,
			target: "/profile",
			cookie: "sess-1",
			setup: func(m *mocks.MockStoreMockRecorder) {
				m.Get(gomock.Any(), "sess-1").Return(nil, errors.New("connection refused"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			ctrl := gomock.NewController(t)
			store := mocks.NewMockStore(ctrl)
			if tt.setup != nil {
				tt.setup(store.EXPECT())
			}
			a := &testAuthorizer{}
			g, err := NewGate(store, a)
			require.NoError(err)

			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.cookie != "" {
				r = withCookie(r, tt.cookie)
			}
			d, err := g.Decide(r)
			if tt.wantErr {
				require.Error(err)
				assert.Empty(a.calls())
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantState, d.State)
			switch tt.wantState {
			case DecisionPermitted:
				assert.Equal(sess.Identity, d.Identity)
				assert.Empty(a.calls())
			case DecisionRedirectToLogin:
				assert.Equal(testAuthURL, d.RedirectURL)
				assert.Nil(d.Identity)
				assert.Equal([]string{tt.wantTarget}, a.calls())
			}
		})
	}
}

func TestGate_Middleware(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore()
	sid, err := store.Create(ctx, testIdentity(t))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	g, err := NewGate(store, &testAuthorizer{}, WithMetrics(m))
	require.NoError(t, err)

	var gotID *oidc.Identity
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = IdentityFromContext(r.Context())
		_, _ = w.Write([]byte("ok"))
	}))

	t.Run("permitted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withCookie(httptest.NewRequest(http.MethodGet, "/profile", nil), sid))
		assert.Equal(http.StatusOK, w.Code)
		require.NotNil(gotID)
		assert.Equal("auth0|alice", gotID.Subject())
	})
	t.Run("redirect", func(t *testing.T) {
		assert := assert.New(t)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile", nil))
		assert.Equal(http.StatusFound, w.Code)
		assert.Equal(testAuthURL, w.Header().Get("Location"))
		assert.Equal(1.0, testutil.ToFloat64(m.AuthorizationsStarted))
	})
	t.Run("public-has-no-identity", func(t *testing.T) {
		assert := assert.New(t)
		gotID = nil
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withCookie(httptest.NewRequest(http.MethodGet, "/", nil), sid))
		assert.Equal(http.StatusOK, w.Code)
		assert.Nil(gotID)
	})
}

func TestGate_Middleware_errors(t *testing.T) {
	t.Parallel()

	t.Run("store", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().Get(gomock.Any(), "sess-1").Return(nil, errors.New("connection refused"))
		g, err := NewGate(store, &testAuthorizer{})
		require.NoError(err)

		w := httptest.NewRecorder()
		g.Middleware(http.NotFoundHandler()).ServeHTTP(w, withCookie(httptest.NewRequest(http.MethodGet, "/profile", nil), "sess-1"))
		assert.Equal(http.StatusInternalServerError, w.Code)
		assert.Empty(w.Header().Get("Location"))
	})
	t.Run("authorizer", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		g, err := NewGate(session.NewMemoryStore(), &testAuthorizer{err: errors.New("request store down")})
		require.NoError(err)

		w := httptest.NewRecorder()
		g.Middleware(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile", nil))
		assert.Equal(http.StatusInternalServerError, w.Code)
	})
}

func TestDecisionState_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("permitted", DecisionPermitted.String())
	assert.Equal("redirect-to-login", DecisionRedirectToLogin.String())
	assert.Equal("DecisionState(7)", DecisionState(7).String())
}
