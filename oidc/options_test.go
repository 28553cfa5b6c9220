// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestApplyOpts(t *testing.T) {
	t.Parallel()
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_WithNow(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	testNow := func() time.Time { return time.Unix(1000, 0) }

	cOpts := getConfigOpts(WithNow(testNow))
	assert.Equal(testNow(), cOpts.withNowFunc())

	rOpts := getReqOpts(WithNow(testNow))
	assert.Equal(testNow(), rOpts.withNowFunc())

	sOpts := getRequestStoreOpts(WithNow(nil))
	assert.Nil(sOpts.withNowFunc)
}

func Test_WithLogger(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	l := hclog.New(&hclog.LoggerOptions{Name: "test"})
	pOpts := getProviderOpts(WithLogger(l))
	assert.Equal(l, pOpts.withLogger)

	sOpts := getRequestStoreOpts(WithLogger(nil))
	assert.NotNil(sOpts.withLogger)
}
