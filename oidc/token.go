// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// IDToken is an oidc id_token.
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token.
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token.
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token.
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// AccessToken is an oauth access_token.
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token.
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token.
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token.
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// Token represents the tokens returned by a successful code exchange.
type Token struct {
	idToken     IDToken
	accessToken AccessToken
	expiry      time.Time
}

// NewToken creates a new Token.  The id_token is required, the oauth2 token
// may be nil.
func NewToken(i IDToken, t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if i == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrMissingIDToken)
	}
	tk := &Token{idToken: i}
	if t != nil {
		tk.accessToken = AccessToken(t.AccessToken)
		tk.expiry = t.Expiry
	}
	return tk, nil
}

// IDToken returns the id_token.
func (t *Token) IDToken() IDToken { return t.idToken }

// AccessToken returns the access_token, which may be empty.
func (t *Token) AccessToken() AccessToken { return t.accessToken }

// Expiry returns the access_token's expiry, which may be the zero time.
func (t *Token) Expiry() time.Time { return t.expiry }
