// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// capweb logs users into a web application with an OIDC provider's
// authorization code flow, keeps them logged in with a server side session
// and logs them out of both the application and the provider.
//
// Packages:
//   - oidc: provider configuration, authorization requests, the code
//     exchange, id_token verification and the Identity projected from it
//   - oidc/callback: the http.HandlerFunc for the provider's redirect
//   - session: sessions and the in-memory session store
//   - redisstore: session and authorization request stores shared through
//     redis
//   - web: the authorization gate, federated logout, cookies, metrics and
//     the router tying them together
//
// cmd/capweb is a runnable server built from these packages.
package capweb
