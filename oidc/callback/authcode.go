// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/capweb/oidc"
)

// Completer completes an authorization code flow.  *oidc.Provider is the
// Completer used outside of tests.
type Completer interface {
	CompleteAuthorization(ctx context.Context, resp *oidc.AuthResponse) (*oidc.Authorization, error)
}

// ensure that oidc.Provider implements the Completer interface.
var _ Completer = (*oidc.Provider)(nil)

// AuthCode creates an oidc authorization code callback handler.  The
// provider's "state", "code", "error", "error_description" and "error_uri"
// parameters are handed to the Completer, which consumes the flow's pending
// request exactly once.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func AuthCode(c Completer, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: completer is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found.
		resp := &oidc.AuthResponse{
			State: req.FormValue("state"),
			Code:  req.FormValue("code"),
		}
		if e := req.FormValue("error"); e != "" {
			resp.Error = &oidc.AuthenErrorResponse{
				Code:        e,
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}
		}

		a, err := c.CompleteAuthorization(req.Context(), resp)
		if err != nil {
			eFn(resp.State, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		sFn(resp.State, a, w, req)
	}, nil
}
