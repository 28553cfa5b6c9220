// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/capweb/oidc"
)

// SuccessResponseFunc is used by Callbacks to create a http response when the
// callback is successful.
//
// The function state parameter will contain the state that was returned as
// part of a successful oidc authentication response. The oidc.Authorization
// carries the verified Identity, the Token and the consumed Request (whose
// RedirectTarget() is where the user originally wanted to go). The function
// should use the http.ResponseWriter to send back whatever content (headers,
// cookies, redirects, etc) it wishes to the client that originated the oidc
// flow.
type SuccessResponseFunc func(state string, a *oidc.Authorization, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response, and the error raised while completing the flow.  Errors are
// classified with errors.Is against oidc.ErrAuthorizationDenied,
// oidc.ErrInvalidState, oidc.ErrTokenExchange, oidc.ErrInvalidToken and
// oidc.ErrMalformedIdentity; a provider's error response can be retrieved with
// errors.As into an *oidc.AuthenErrorResponse.
type ErrorResponseFunc func(state string, e error, w http.ResponseWriter, req *http.Request)
