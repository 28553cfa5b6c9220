// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/capweb/oidc/internal/strutils"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local TLS server that plays the part of the identity
// provider: it serves {issuer}authorize, {issuer}oauth/token,
// {issuer}.well-known/jwks.json and {issuer}v2/logout.  Its behavior can be
// bent with the Set* functions to produce every failure the relying party
// must handle.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks *jose.JSONWebKeySet

	mu                  sync.Mutex
	allowedRedirectURIs []string
	allowedReturnTo     []string
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	nonce               string
	codeChallenge       string
	replySubject        string
	customClaims        map[string]interface{}
	customAudience      string
	customIssuer        string
	expiry              time.Duration
	omitIDToken         bool
	invalidSignature    bool
	authError           *AuthenErrorResponse
	tokenStatus         int
	tokenDelay          time.Duration
	tokenRequests       int
	logoutRequests      int

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider that's stopped when the
// test completes.
//
// Supported options:
//   - WithTestPort
func StartTestProvider(t *testing.T, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	opts := getTestProviderOpts(opt...)

	p := &TestProvider{
		t:                   t,
		clientID:            "test-client-id",
		clientSecret:        "test-client-secret",
		expectedAuthCode:    "test-auth-code",
		replySubject:        "auth0|1234567890",
		expiry:              5 * time.Minute,
		allowedRedirectURIs: []string{"https://example.com/login/oauth2/code/auth0"},
		allowedReturnTo:     []string{"https://example.com/"},
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	if opts.withPort != 0 {
		p.httpServer = httptestNewUnstartedServerWithPort(t, p, opts.withPort)
	} else {
		p.httpServer = httptest.NewUnstartedServer(p)
	}
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the base URL of the running provider, without a trailing
// slash.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Issuer returns the provider's issuer: Addr() with a trailing slash.
func (p *TestProvider) Issuer() string { return p.httpServer.URL + "/" }

// CACert returns the pem-encoded CA certificate used by the provider's HTTPS
// server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client that trusts the provider and never follows
// redirects.
func (p *TestProvider) HTTPClient() *http.Client {
	c := p.httpServer.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

// SigningKeys returns the provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// ClientCreds returns the client credentials the provider accepts.
func (p *TestProvider) ClientCreds() (clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, p.clientSecret
}

// ClientConfig returns a valid Config for a relying party of this provider.
// The redirectURL is added to the allowed redirect URIs.
func (p *TestProvider) ClientConfig(redirectURL string, opt ...Option) *Config {
	p.t.Helper()
	p.mu.Lock()
	if !strutils.StrListContains(p.allowedRedirectURIs, redirectURL) {
		p.allowedRedirectURIs = append(p.allowedRedirectURIs, redirectURL)
	}
	clientID, clientSecret := p.clientID, p.clientSecret
	p.mu.Unlock()

	opt = append([]Option{WithProviderCA(p.caCert)}, opt...)
	c, err := NewConfig(p.Issuer(), clientID, ClientSecret(clientSecret), redirectURL, opt...)
	require.NoError(p.t, err)
	return c
}

// SetClientCreds configures the client credentials the provider accepts.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the code returned from authorize and
// accepted by the token endpoint.  An empty code makes authorize deny every
// request.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedAuthNonce sets the nonce embedded in issued id_tokens.  It's
// normally captured by the authorize endpoint.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

// SetAllowedRedirectURIs configures the callback URIs the provider accepts.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetAllowedReturnTo configures the URLs the logout endpoint will send the
// browser back to.
func (p *TestProvider) SetAllowedReturnTo(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedReturnTo = uris
}

// SetReplySubject sets the "sub" of issued id_tokens.  An empty subject omits
// the claim.
func (p *TestProvider) SetReplySubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
}

// SetCustomClaims lets you set claims to return in the id_token.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures the "aud" of issued id_tokens.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// SetCustomIssuer configures the "iss" of issued id_tokens.
func (p *TestProvider) SetCustomIssuer(customIssuer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customIssuer = customIssuer
}

// SetExpiry configures how long issued id_tokens are valid.  A negative
// duration issues already expired tokens.
func (p *TestProvider) SetExpiry(exp time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiry = exp
}

// OmitIDTokens forces an error state where the token endpoint does not return
// an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetInvalidSignature makes the provider sign id_tokens with a key that's not
// in its published key set.
func (p *TestProvider) SetInvalidSignature(invalid bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidSignature = invalid
}

// SetAuthError makes the authorize endpoint redirect back with the error
// instead of a code.  A nil error restores normal behavior.
func (p *TestProvider) SetAuthError(e *AuthenErrorResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = e
}

// SetTokenStatus makes the token endpoint fail with the http status.  Zero
// restores normal behavior.
func (p *TestProvider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// SetTokenDelay makes the token endpoint wait before replying.
func (p *TestProvider) SetTokenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenDelay = d
}

// TokenRequests returns how many requests the token endpoint has received.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// LogoutRequests returns how many requests the logout endpoint has received.
func (p *TestProvider) LogoutRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logoutRequests
}

// Authorize plays the user's browser: it follows authURL to the provider and
// returns what the provider sent back to the callback.
func (p *TestProvider) Authorize(authURL string) *AuthResponse {
	p.t.Helper()
	require := require.New(p.t)
	resp, err := p.HTTPClient().Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	q := loc.Query()
	ar := &AuthResponse{
		State: q.Get("state"),
		Code:  q.Get("code"),
	}
	if q.Get("error") != "" {
		ar.Error = &AuthenErrorResponse{
			Code:        q.Get("error"),
			Description: q.Get("error_description"),
		}
	}
	return ar
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path == "/"+tokenPath {
		p.mu.Lock()
		delay := p.tokenDelay
		p.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/" + authorizePath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()

		redirectURI := qv.Get("redirect_uri")
		if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if qv.Get("response_type") != "code" {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}
		if qv.Get("client_id") != p.clientID {
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
			return
		}
		if !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid") {
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		}
		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}
		if p.authError != nil {
			p.writeAuthErrorResponse(w, req, p.authError.Code, p.authError.Description)
			return
		}
		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}
		p.nonce = qv.Get("nonce")
		p.codeChallenge = ""
		if qv.Get("code_challenge_method") == "S256" {
			p.codeChallenge = qv.Get("code_challenge")
		}

		redirectURI += "?state=" + url.QueryEscape(state) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)
		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/" + jwksPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/" + tokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.tokenRequests++

		switch {
		case p.tokenStatus != 0:
			_ = p.writeTokenErrorResponse(w, p.tokenStatus, "server_error", "forced failure")
			return
		case req.FormValue("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case req.FormValue("client_id") != p.clientID || req.FormValue("client_secret") != p.clientSecret:
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case p.expectedAuthCode == "" || req.FormValue("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "invalid_grant", "unexpected auth code")
			return
		case p.codeChallenge != "" && s256(req.FormValue("code_verifier")) != p.codeChallenge:
			_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "invalid_grant", "bad code_verifier")
			return
		}

		now := time.Now()
		stdClaims := jwt.Claims{
			Subject:  p.replySubject,
			Issuer:   p.Issuer(),
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(p.expiry)),
			Audience: jwt.Audience{p.clientID},
		}
		if p.customAudience != "" {
			stdClaims.Audience = jwt.Audience{p.customAudience}
		}
		if p.customIssuer != "" {
			stdClaims.Issuer = p.customIssuer
		}
		privateClaims := map[string]interface{}{}
		if p.nonce != "" {
			privateClaims["nonce"] = p.nonce
		}
		for k, v := range p.customClaims {
			privateClaims[k] = v
		}

		signingKey := p.ecdsaPrivateKey
		if p.invalidSignature {
			_, signingKey = TestGenerateKeys(p.t)
		}
		jwtData := TestSignJWT(p.t, signingKey, stdClaims, privateClaims)

		reply := struct {
			AccessToken string `json:"access_token"`
			IDToken     string `json:"id_token,omitempty"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
		}{
			AccessToken: "at_" + base64.RawURLEncoding.EncodeToString([]byte(p.replySubject)),
			IDToken:     jwtData,
			TokenType:   "Bearer",
			ExpiresIn:   86400,
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/" + logoutPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.logoutRequests++
		qv := req.URL.Query()
		if qv.Get("client_id") != p.clientID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		returnTo := qv.Get("returnTo")
		if !strutils.StrListContains(p.allowedReturnTo, returnTo) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.Redirect(w, req, returnTo, http.StatusFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: string(ES256),
				Use:       "sig",
			},
		},
	}
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port if desired.
func httptestNewUnstartedServerWithPort(t *testing.T, handler http.Handler, port int) *httptest.Server {
	t.Helper()
	require := require.New(t)
	require.NotEmpty(port)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	require.NoError(err)

	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}

// testProviderOptions is the set of available options for TestProvider
// functions
type testProviderOptions struct {
	withPort int
}

func testProviderDefaults() testProviderOptions {
	return testProviderOptions{}
}

func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTestPort makes the TestProvider listen on 127.0.0.1:port.
func WithTestPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withPort = port
		}
	}
}
