// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc is the relying party side of an OpenID Connect 1.0 Authorization
Code Flow against a single identity provider whose endpoints hang off its
issuer URL:

	{issuer}authorize              authorization endpoint
	{issuer}oauth/token            token endpoint
	{issuer}.well-known/jwks.json  published signing keys
	{issuer}v2/logout              federated logout

A typical web application creates one Provider at startup:

	c, err := oidc.NewConfig(issuer, clientID, clientSecret, redirectURL)
	...
	p, err := oidc.NewProvider(c, oidc.NewMemoryRequestStore())
	...
	defer p.Done()

and uses it from its handlers:

	// on a protected request without a session
	authURL, _, err := p.BeginAuthorization(ctx, r.URL.RequestURI())
	http.Redirect(w, r, authURL, http.StatusFound)

	// on the callback
	authz, err := p.CompleteAuthorization(ctx, &oidc.AuthResponse{State: state, Code: code})

	// on logout, after the local session is gone
	logoutURL, err := p.LogoutURL("https://app.example.com/")

CompleteAuthorization consumes the pending Request exactly once, exchanges the
code (client_secret_post, bounded by Config.ExchangeTimeout, never retried),
verifies the id_token's signature, issuer, audience, expiry and nonce, and
projects its claims into an Identity.  Its errors wrap one of
ErrAuthorizationDenied, ErrInvalidState, ErrTokenExchange, ErrInvalidToken or
ErrMalformedIdentity.

TestProvider is an in-process identity provider used to test all of the above.
*/
package oidc
