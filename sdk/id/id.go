// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultLen is the number of random bytes used by New when no length is
// given: 256 bits.
const DefaultLen = 32

// MinLen is the smallest number of random bytes New accepts (128 bits).
const MinLen = 16

// ErrTooShort is returned when a caller asks for fewer than MinLen bytes.
var ErrTooShort = errors.New("id length too short")

// New generates a url-safe random ID with an optional prefix.  The random
// part is DefaultLen bytes read from crypto/rand, base64url encoded without
// padding.
func New(optionalPrefix string) (string, error) {
	return NewWithLen(optionalPrefix, DefaultLen)
}

// NewWithLen is New with an explicit number of random bytes.
func NewWithLen(optionalPrefix string, n int) (string, error) {
	if n < MinLen {
		return "", fmt.Errorf("%d bytes requested, at least %d required: %w", n, MinLen, ErrTooShort)
	}
	b, err := uuid.GenerateRandomBytes(n)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
