// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Well known claim names projected by Identity.
const (
	ClaimSubject  = "sub"
	ClaimName     = "name"
	ClaimEmail    = "email"
	ClaimPicture  = "picture"
	ClaimIssuedAt = "iat"
	ClaimExpiry   = "exp"
)

// Identity is one authenticated end user, as asserted by a verified id_token.
// It's immutable: every accessor returns a copy.
type Identity struct {
	subject   string
	claims    map[string]interface{}
	names     []string
	issuedAt  time.Time
	expiresAt time.Time
}

// ProjectClaims builds an Identity from the raw JSON payload of a verified
// id_token.  The "sub" claim is required; every other claim is preserved
// verbatim (numbers as json.Number) in the order it appears in the payload.
func ProjectClaims(raw []byte) (*Identity, error) {
	const op = "oidc.ProjectClaims"
	names, err := objectKeys(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: claims are not a JSON object: %s: %w", op, err, ErrMalformedIdentity)
	}
	claims := map[string]interface{}{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("%s: claims are not a JSON object: %s: %w", op, err, ErrMalformedIdentity)
	}
	id, err := newIdentity(claims, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// NewIdentity builds an Identity from an already decoded claim set.  Claim
// names are ordered lexically since a Go map has no order of its own.
func NewIdentity(claims map[string]interface{}) (*Identity, error) {
	const op = "oidc.NewIdentity"
	if claims == nil {
		return nil, fmt.Errorf("%s: claims are nil: %w", op, ErrMalformedIdentity)
	}
	names := make([]string, 0, len(claims))
	for k := range claims {
		names = append(names, k)
	}
	sort.Strings(names)
	cp := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		cp[k] = v
	}
	id, err := newIdentity(cp, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func newIdentity(claims map[string]interface{}, names []string) (*Identity, error) {
	raw, ok := claims[ClaimSubject]
	if !ok {
		return nil, fmt.Errorf("missing %q claim: %w", ClaimSubject, ErrMalformedIdentity)
	}
	sub, ok := raw.(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%q claim is not a non-empty string: %w", ClaimSubject, ErrMalformedIdentity)
	}
	return &Identity{
		subject:   sub,
		claims:    claims,
		names:     names,
		issuedAt:  numericDate(claims[ClaimIssuedAt]),
		expiresAt: numericDate(claims[ClaimExpiry]),
	}, nil
}

// objectKeys returns the top level keys of a JSON object in document order,
// without duplicates.
func objectKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object")
	}
	var keys []string
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return keys, nil
}

// numericDate converts a JWT NumericDate claim into a time; anything else
// yields the zero time.
func numericDate(v interface{}) time.Time {
	var secs float64
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}
		}
		secs = f
	case float64:
		secs = n
	case int64:
		secs = float64(n)
	case int:
		secs = float64(n)
	default:
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// Subject is the stable, IdP issued identifier of the user.
func (i *Identity) Subject() string { return i.subject }

// Name returns the "name" claim when it's a string.
func (i *Identity) Name() string { return i.stringClaim(ClaimName) }

// Email returns the "email" claim when it's a string.
func (i *Identity) Email() string { return i.stringClaim(ClaimEmail) }

// Picture returns the "picture" claim when it's a string.
func (i *Identity) Picture() string { return i.stringClaim(ClaimPicture) }

// IssuedAt is copied from the id_token's "iat"; zero when absent.
func (i *Identity) IssuedAt() time.Time { return i.issuedAt }

// ExpiresAt is copied from the id_token's "exp"; zero when absent.  It's
// informational only.
func (i *Identity) ExpiresAt() time.Time { return i.expiresAt }

// Claim returns a single claim value.
func (i *Identity) Claim(name string) (interface{}, bool) {
	v, ok := i.claims[name]
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// ClaimNames returns the claim names in order.
func (i *Identity) ClaimNames() []string {
	return append([]string(nil), i.names...)
}

// Claims returns a copy of the full claim set.
func (i *Identity) Claims() map[string]interface{} {
	out := make(map[string]interface{}, len(i.claims))
	for k, v := range i.claims {
		out[k] = deepCopy(v)
	}
	return out
}

func (i *Identity) stringClaim(name string) string {
	s, _ := i.claims[name].(string)
	return s
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, vv := range t {
			m[k] = deepCopy(vv)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for idx, vv := range t {
			s[idx] = deepCopy(vv)
		}
		return s
	default:
		return v
	}
}

// MarshalJSON encodes the identity's claims as a JSON object, keys in claim
// order.
func (i *Identity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, k := range i.names {
		if idx > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(i.claims[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an identity written by MarshalJSON, applying the same
// rules as ProjectClaims.
func (i *Identity) UnmarshalJSON(data []byte) error {
	id, err := ProjectClaims(data)
	if err != nil {
		return err
	}
	*i = *id
	return nil
}
