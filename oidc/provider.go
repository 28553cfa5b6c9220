// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// Provider provides integration with an OIDC provider using the typical
// 3-legged OIDC authorization code flow: it issues authorization redirects,
// completes callbacks by exchanging codes for tokens, verifies id_tokens and
// builds federated logout redirects.
type Provider struct {
	config   *Config
	requests RequestStore
	client   *http.Client
	verifier *oidc.IDTokenVerifier
	logger   hclog.Logger

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like: refreshing JWKs key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// AuthResponse is what the provider sent back to the callback.
type AuthResponse struct {
	// State is the "state" parameter echoed by the provider.
	State string

	// Code is the authorization code.  Empty when Error is set.
	Code string

	// Error is set when the provider returned an error response.
	Error *AuthenErrorResponse
}

// Authorization is the outcome of a successfully completed flow.
type Authorization struct {
	// Identity of the authenticated user.
	Identity *Identity

	// Token holds the verified id_token and the access_token.
	Token *Token

	// Request is the consumed pending Request; its RedirectTarget() is where
	// the user wanted to go.
	Request Request
}

// NewProvider creates and initializes a Provider.  Unlike provider discovery,
// no http request is made: the provider's signing keys are fetched on first
// use and cached.
//
// Supported options:
//   - WithLogger
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config, requests RequestStore, opt ...Option) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if requests == nil {
		return nil, fmt.Errorf("%s: request store is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		requests:            requests,
		logger:              opts.withLogger,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	jwksURL := c.JWKSURL
	if jwksURL == "" {
		jwksURL = c.Issuer + jwksPath
	}
	keySet := oidc.NewRemoteKeySet(HTTPClientContext(p.backgroundCtx, client), jwksURL)
	p.verifier = oidc.NewVerifier(c.Issuer, keySet, &oidc.Config{
		ClientID:             c.ClientID,
		SupportedSigningAlgs: c.signingAlgs(),
		Now:                  c.Now,
	})
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	// checking for nil here prevents a panic when developers neglect to check
	// check for an error before deferring a call to p.Done():
	// p, err := NewProvider(...)
	// defer p.Done()
	// if err != nil { ... }
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's configuration.
func (p *Provider) Config() *Config { return p.config }

func (p *Provider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.config.AuthorizeEndpoint(),
			TokenURL: p.config.TokenEndpoint(),
			// client_id and client_secret travel in the POST body
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: p.config.Scopes,
	}
}

// BeginAuthorization starts a new flow: it creates a pending Request that
// remembers requestedResource, adds it to the RequestStore and returns the
// URL the browser must be redirected to.
func (p *Provider) BeginAuthorization(ctx context.Context, requestedResource string) (string, Request, error) {
	const op = "Provider.BeginAuthorization"
	opts := []Option{
		WithRedirectTarget(requestedResource),
		WithNow(p.config.NowFunc),
	}
	if p.config.UsePKCE {
		opts = append(opts, WithPKCE())
	}
	r, err := NewRequest(p.config.requestExpiry(), opts...)
	if err != nil {
		return "", nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	authURL, err := p.AuthURL(ctx, r)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := p.requests.Add(ctx, r); err != nil {
		return "", nil, fmt.Errorf("%s: unable to store request: %w", op, err)
	}
	p.logger.Trace("authorization started", "expires", r.ExpiresAt(), "pkce", r.PKCEVerifier() != "")
	return authURL, r, nil
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with an IdP:
//
//	{issuer}authorize?client_id=…&nonce=…&redirect_uri=…&response_type=code&scope=…&state=…
//
// See NewRequest() to create an oidc flow Request with a valid state and
// Nonce that will uniquely identify the user's authentication attempt through
// out the flow.
func (p *Provider) AuthURL(_ context.Context, r Request) (string, error) {
	const op = "Provider.AuthURL"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() == r.Nonce() {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(r.Nonce()),
	}
	if v := r.PKCEVerifier(); v != "" {
		authCodeOpts = append(authCodeOpts, oauth2.S256ChallengeOption(v))
	}
	return p.oauth2Config().AuthCodeURL(r.State(), authCodeOpts...), nil
}

// CompleteAuthorization finishes the flow started by BeginAuthorization.  The
// pending Request is consumed exactly once whatever the outcome.  Errors are
// classified as ErrAuthorizationDenied, ErrInvalidState, ErrTokenExchange,
// ErrInvalidToken or ErrMalformedIdentity; none of them should be retried.
// No session is created here.
func (p *Provider) CompleteAuthorization(ctx context.Context, resp *AuthResponse) (*Authorization, error) {
	const op = "Provider.CompleteAuthorization"
	if resp == nil {
		return nil, fmt.Errorf("%s: auth response is nil: %w", op, ErrNilParameter)
	}
	if resp.Error != nil {
		if resp.State != "" {
			// the flow is over either way
			_, _ = p.requests.Consume(ctx, resp.State)
		}
		return nil, fmt.Errorf("%s: %w", op, resp.Error)
	}

	r, err := p.requests.Consume(ctx, resp.State)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tk, err := p.Exchange(ctx, r, resp.State, resp.Code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := p.VerifyIDToken(ctx, tk.IDToken(), r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.logger.Trace("authorization completed", "subject", id.Subject())
	return &Authorization{
		Identity: id,
		Token:    tk,
		Request:  r,
	}, nil
}

// Exchange will request a token from the provider's token endpoint, using the
// authorizationCode and authorizationState it received in an earlier
// successful oidc authentication response.
//
// It will also validate the authorizationState it receives against the
// existing Request for the user's oidc authentication flow.  The request is
// bounded by the config's ExchangeTimeout and is never retried: the
// authorization code is single use.
//
// On success, the Token returned will include an IDToken which has NOT been
// verified yet; see VerifyIDToken.
func (p *Provider) Exchange(ctx context.Context, r Request, authorizationState string, authorizationCode string) (*Token, error) {
	const op = "Provider.Exchange"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() != authorizationState {
		return nil, fmt.Errorf("%s: authentication request state and authorization state are not equal: %w", op, ErrInvalidState)
	}
	if r.IsExpired() {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidState, ErrExpiredRequest)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w: %w", op, ErrTokenExchange, ErrInvalidParameter)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.exchangeTimeout())
	defer cancel()
	oidcCtx := HTTPClientContext(ctx, p.client)

	var exchangeOpts []oauth2.AuthCodeOption
	if v := r.PKCEVerifier(); v != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(v))
	}
	oauth2Token, err := p.oauth2Config().Exchange(oidcCtx, authorizationCode, exchangeOpts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			p.logger.Debug("token endpoint rejected exchange", "status", retrieveErr.Response.StatusCode, "error", retrieveErr.ErrorCode)
		}
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrTokenExchange, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w: %w", op, ErrInvalidToken, ErrMissingIDToken)
	}
	t, err := NewToken(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new id_token: %w: %w", op, ErrInvalidToken, err)
	}
	return t, nil
}

// VerifyIDToken will verify the inbound IDToken and project its claims into
// an Identity.
//  1. verifies the id_token's signature with the provider's published keys
//     and one of the supported signing algorithms
//  2. verifies the "iss" claim equals the configured Issuer
//  3. verifies the "aud" claim contains the configured ClientID
//  4. verifies the id_token isn't expired
//  5. verifies the "nonce" claim equals the Request's Nonce()
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, r Request) (*Identity, error) {
	const op = "Provider.VerifyIDToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w: %w", op, ErrInvalidToken, ErrMissingIDToken)
	}
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	oidcIDToken, err := p.verifier.Verify(HTTPClientContext(ctx, p.client), string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	if oidcIDToken.Nonce != r.Nonce() {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, ErrInvalidNonce)
	}
	var raw json.RawMessage
	if err := oidcIDToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%s: unable to read id_token claims: %w: %w", op, ErrMalformedIdentity, err)
	}
	id, err := ProjectClaims(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// LogoutURL builds the provider's federated logout URL:
//
//	{issuer}v2/logout?client_id={clientID}&returnTo={returnTo}
//
// Following it ends the user's session at the provider, which then sends the
// browser back to returnTo.
func (p *Provider) LogoutURL(returnTo string) (string, error) {
	const op = "Provider.LogoutURL"
	if err := validateAbsoluteURL(returnTo); err != nil {
		return "", fmt.Errorf("%s: returnTo: %w", op, err)
	}
	u, err := url.Parse(p.config.LogoutEndpoint())
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse logout endpoint: %w", op, err)
	}
	v := url.Values{}
	v.Set("client_id", p.config.ClientID)
	v.Set("returnTo", returnTo)
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// providerOptions is the set of available options for Provider functions
type providerOptions struct {
	withLogger hclog.Logger
}

// providerDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func providerDefaults() providerOptions {
	return providerOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getProviderOpts gets the provider defaults and applies the opt overrides passed in
func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
