// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrInvalidIssuer     = errors.New("invalid issuer")
	ErrIdGeneratorFailed = errors.New("id generation failed")
	ErrExpiredRequest    = errors.New("request is expired")
	ErrMissingIDToken    = errors.New("id_token is missing")
	ErrInvalidNonce      = errors.New("invalid id_token nonce")
	ErrUnsupportedAlg    = errors.New("unsupported signing algorithm")
	ErrNotFound          = errors.New("not found")

	// ErrAuthorizationDenied is returned when the IdP's authentication
	// response carries an error (the user declined or the IdP failed).
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrInvalidState is returned when a callback's state was never issued,
	// was already consumed or has expired.
	ErrInvalidState = errors.New("invalid authorization state")

	// ErrTokenExchange is returned when the back-channel code exchange fails
	// (network, timeout or a non-2xx response from the token endpoint).
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrInvalidToken is returned when the id_token fails signature, issuer,
	// audience, expiry or nonce validation.
	ErrInvalidToken = errors.New("invalid id_token")

	// ErrMalformedIdentity is returned when an id_token's claim set is not a
	// JSON object or has no subject.
	ErrMalformedIdentity = errors.New("malformed identity")
)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
//
// It satisfies errors.Is(err, ErrAuthorizationDenied).
type AuthenErrorResponse struct {
	Code        string
	Description string
	Uri         string
}

// Error implements the error interface.
func (e *AuthenErrorResponse) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrAuthorizationDenied, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrAuthorizationDenied, e.Code, e.Description)
}

// Unwrap returns ErrAuthorizationDenied.
func (e *AuthenErrorResponse) Unwrap() error { return ErrAuthorizationDenied }
