// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/hashicorp/capweb/oidc"
	"github.com/stretchr/testify/require"
)

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(state string, a *oidc.Authorization, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful: " + a.Identity.Subject()))
}

// testErrorBody is what testFailFn writes.
type testErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(state string, e error, w http.ResponseWriter, req *http.Request) {
	var authErr *oidc.AuthenErrorResponse
	if errors.As(e, &authErr) {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(&testErrorBody{Error: authErr.Code, Description: authErr.Description})
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&testErrorBody{
		Error:       "internal-callback-error",
		Description: e.Error(),
	})
	_, _ = w.Write(j)
}

// testNewProvider creates a new Provider.  It uses the TestProvider (tp) to properly
// construct the provider's configuration. This is helpful internally, but
// intentionally not exported.
func testNewProvider(t *testing.T, redirectURL string, tp *oidc.TestProvider) *oidc.Provider {
	const op = "testNewProvider"
	t.Helper()
	require := require.New(t)
	require.NotEmptyf(redirectURL, "%s: redirect URL is empty", op)

	p, err := oidc.NewProvider(tp.ClientConfig(redirectURL), oidc.NewMemoryRequestStore())
	require.NoError(err)
	t.Cleanup(p.Done)
	return p
}
