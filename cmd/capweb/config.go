// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Configuration environment variables.
const (
	envIssuer          = "CAPWEB_ISSUER"
	envClientID        = "CAPWEB_CLIENT_ID"
	envClientSecret    = "CAPWEB_CLIENT_SECRET"
	envCallbackBaseURL = "CAPWEB_CALLBACK_BASE_URL"
	envAddr            = "CAPWEB_ADDR"
	envRedisURL        = "CAPWEB_REDIS_URL"
	envLogLevel        = "CAPWEB_LOG_LEVEL"
	envLogJSON         = "CAPWEB_LOG_JSON"
	envProviderCA      = "CAPWEB_PROVIDER_CA"
)

const defaultAddr = "localhost:8080"

var errMissingConfig = errors.New("missing configuration")

type config struct {
	issuer          string
	clientID        string
	clientSecret    string
	callbackBaseURL string
	addr            string
	redisURL        string
	logLevel        hclog.Level
	logJSON         bool

	// providerCA is a path to a pem encoded CA certificate.
	providerCA string
}

// envConfig reads the configuration from getenv.  Every problem is reported,
// not just the first.
func envConfig(getenv func(string) string) (*config, error) {
	const op = "envConfig"
	c := &config{
		issuer:          getenv(envIssuer),
		clientID:        getenv(envClientID),
		clientSecret:    getenv(envClientSecret),
		callbackBaseURL: strings.TrimSuffix(getenv(envCallbackBaseURL), "/"),
		addr:            getenv(envAddr),
		redisURL:        getenv(envRedisURL),
		logLevel:        hclog.Info,
		providerCA:      getenv(envProviderCA),
	}
	if c.addr == "" {
		c.addr = defaultAddr
	}

	var result *multierror.Error
	for _, req := range []struct{ name, value string }{
		{envIssuer, c.issuer},
		{envClientID, c.clientID},
		{envClientSecret, c.clientSecret},
		{envCallbackBaseURL, c.callbackBaseURL},
	} {
		if req.value == "" {
			result = multierror.Append(result, fmt.Errorf("%s is empty: %w", req.name, errMissingConfig))
		}
	}
	if c.callbackBaseURL != "" {
		u, err := url.Parse(c.callbackBaseURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s %q is not an absolute url", envCallbackBaseURL, c.callbackBaseURL))
		}
	}
	if v := getenv(envLogLevel); v != "" {
		c.logLevel = hclog.LevelFromString(v)
		if c.logLevel == hclog.NoLevel {
			result = multierror.Append(result, fmt.Errorf("%s %q is not a log level", envLogLevel, v))
		}
	}
	if v := getenv(envLogJSON); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s %q is not a boolean", envLogJSON, v))
		}
		c.logJSON = b
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// baseURL is the application's root, where the provider returns the browser
// after logout.
func (c *config) baseURL() string { return c.callbackBaseURL + "/" }

// redirectURL is the registered callback.
func (c *config) redirectURL(providerName string) string {
	return c.callbackBaseURL + "/login/oauth2/code/" + providerName
}

func (c *config) readProviderCA() (string, error) {
	if c.providerCA == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.providerCA)
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %w", envProviderCA, err)
	}
	return string(b), nil
}
