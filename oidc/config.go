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
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/capweb/oidc/internal/strutils"
	sdkHttp "github.com/hashicorp/capweb/sdk/http"
	"github.com/hashicorp/go-multierror"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

const (
	// DefaultExchangeTimeout bounds the back-channel call to the token
	// endpoint.
	DefaultExchangeTimeout = 10 * time.Second

	// DefaultRequestExpiry is how long a pending authorization Request stays
	// valid waiting for its callback.
	DefaultRequestExpiry = 10 * time.Minute
)

// Provider endpoint paths, relative to the issuer (which always ends with a
// trailing slash).
const (
	authorizePath = "authorize"
	tokenPath     = "oauth/token"
	logoutPath    = "v2/logout"
	jwksPath      = ".well-known/jwks.json"
)

// DefaultScopes are requested when a Config doesn't specify any.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email"}

// Config represents the configuration for an OIDC provider used by a
// relying party in a browser-facing authorization code flow.
type Config struct {
	// ClientID is the relying party ID.
	ClientID string

	// ClientSecret is the relying party secret.
	ClientSecret ClientSecret

	// Scopes is a list of oidc scopes to request of the provider. The
	// required "openid" scope is always first.
	Scopes []string

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.  It must end with a trailing
	// slash since provider endpoints are appended to it, and it must equal
	// the "iss" claim of issued id_tokens.
	Issuer string

	// SupportedSigningAlgs is a list of supported signing algorithms.
	SupportedSigningAlgs []Alg

	// RedirectURL is the registered callback URL the provider redirects the
	// browser to once the user has authenticated.
	RedirectURL string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// JWKSURL is where the provider publishes its signing keys.  Defaults to
	// {Issuer}.well-known/jwks.json
	JWKSURL string

	// ExchangeTimeout bounds the token endpoint request.
	ExchangeTimeout time.Duration

	// RequestExpiry is the lifetime of a pending authorization Request.
	RequestExpiry time.Duration

	// UsePKCE adds a S256 code challenge to authorization requests.
	UsePKCE bool

	// NowFunc is a time func that returns the current time.
	NowFunc func() time.Time
}

// NewConfig composes a new config for a provider.
//
// Supported options:
//   - WithScopes
//   - WithProviderCA
//   - WithSupportedSigningAlgs
//   - WithJWKSURL
//   - WithExchangeTimeout
//   - WithRequestExpiry
//   - WithPKCE
//   - WithNow
func NewConfig(issuer string, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:               issuer,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		RedirectURL:          redirectURL,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		Scopes:               opts.withScopes,
		ProviderCA:           opts.withProviderCA,
		JWKSURL:              opts.withJWKSURL,
		ExchangeTimeout:      opts.withExchangeTimeout,
		RequestExpiry:        opts.withRequestExpiry,
		UsePKCE:              opts.withPKCE,
		NowFunc:              opts.withNowFunc,
	}
	if c.JWKSURL == "" && strings.HasSuffix(issuer, "/") {
		c.JWKSURL = issuer + jwksPath
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  Among other validations, it verifies
// the issuer is not empty, but it doesn't verify the Issuer is reachable via
// an http request.  Every problem found is reported, not only the first.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client ID is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	if err := validateIssuer(c.Issuer); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if err := validateAbsoluteURL(c.RedirectURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL: %w", op, err))
	}
	if c.JWKSURL != "" {
		if err := validateAbsoluteURL(c.JWKSURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: JWKS URL: %w", op, err))
		}
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("%s: %q: %w", op, a, ErrUnsupportedAlg))
		}
	}
	if c.ExchangeTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: exchange timeout is negative: %w", op, ErrInvalidParameter))
	}
	if c.RequestExpiry < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: request expiry is negative: %w", op, ErrInvalidParameter))
	}
	if c.ProviderCA != "" {
		if _, err := c.HTTPClient(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
		}
	}
	return result.ErrorOrNil()
}

func validateIssuer(issuer string) error {
	if issuer == "" {
		return fmt.Errorf("issuer is empty: %w", ErrInvalidIssuer)
	}
	u, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("issuer %s is invalid: %s: %w", issuer, err, ErrInvalidIssuer)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("issuer %s scheme %q is not http or https: %w", issuer, u.Scheme, ErrInvalidIssuer)
	}
	if u.Host == "" {
		return fmt.Errorf("issuer %s has no host: %w", issuer, ErrInvalidIssuer)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("issuer %s must not have a query or fragment: %w", issuer, ErrInvalidIssuer)
	}
	if !strings.HasSuffix(issuer, "/") {
		return fmt.Errorf("issuer %s must end with a trailing slash: %w", issuer, ErrInvalidIssuer)
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url %s is invalid: %s: %w", raw, err, ErrInvalidParameter)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("url %s is not absolute: %w", raw, ErrInvalidParameter)
	}
	return nil
}

// AuthorizeEndpoint returns {issuer}authorize
func (c *Config) AuthorizeEndpoint() string { return c.Issuer + authorizePath }

// TokenEndpoint returns {issuer}oauth/token
func (c *Config) TokenEndpoint() string { return c.Issuer + tokenPath }

// LogoutEndpoint returns {issuer}v2/logout
func (c *Config) LogoutEndpoint() string { return c.Issuer + logoutPath }

// Now will return the current time which can be overridden by the NowFunc
func (c *Config) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now() // fallback to this default
}

func (c *Config) exchangeTimeout() time.Duration {
	if c.ExchangeTimeout > 0 {
		return c.ExchangeTimeout
	}
	return DefaultExchangeTimeout
}

func (c *Config) requestExpiry() time.Duration {
	if c.RequestExpiry > 0 {
		return c.RequestExpiry
	}
	return DefaultRequestExpiry
}

func (c *Config) signingAlgs() []string {
	algs := c.SupportedSigningAlgs
	if len(algs) == 0 {
		algs = DefaultSigningAlgs
	}
	out := make([]string, 0, len(algs))
	for _, a := range algs {
		out = append(out, string(a))
	}
	return out
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured.  The client's timeout is the config's exchange timeout.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := sdkHttp.NewClient(c.ProviderCA, c.exchangeTimeout())
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value successfully: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withScopes               []string
	withProviderCA           string
	withSupportedSigningAlgs []Alg
	withJWKSURL              string
	withExchangeTimeout      time.Duration
	withRequestExpiry        time.Duration
	withPKCE                 bool
	withNowFunc              func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withScopes:               append([]string{}, DefaultScopes...),
		withSupportedSigningAlgs: append([]Alg{}, DefaultSigningAlgs...),
		withExchangeTimeout:      DefaultExchangeTimeout,
		withRequestExpiry:        DefaultRequestExpiry,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes.  The "openid" scope is
// always requested first, whether or not it's listed.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			all := append([]string{oidc.ScopeOpenID}, scopes...)
			o.withScopes = strutils.RemoveDuplicatesStable(all, false)
		}
	}
}

// WithProviderCA provides an optional CA certs (PEM encoded) for the provider's
// config.  These certs will can be used when making http requests to the
// provider.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithSupportedSigningAlgs overrides the default list of id_token signing
// algorithms.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithJWKSURL overrides where the provider's signing keys are fetched from.
func WithJWKSURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withJWKSURL = u
		}
	}
}

// WithExchangeTimeout overrides DefaultExchangeTimeout.
func WithExchangeTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withExchangeTimeout = d
		}
	}
}

// WithRequestExpiry overrides DefaultRequestExpiry.
func WithRequestExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRequestExpiry = d
		}
	}
}

// WithPKCE enables PKCE (S256) for: Config and Request.
func WithPKCE() Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withPKCE = true
		case *reqOptions:
			v.withPKCE = true
		}
	}
}
