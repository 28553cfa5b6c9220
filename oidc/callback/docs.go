// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides the callback (in the form of an
http.HandlerFunc) for handling the OIDC provider's response to an
authorization code flow authentication attempt.
*/
package callback
