// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package web puts the oidc authorization code flow in front of a browser
facing application.

The Gate lets public paths through untouched, lets requests carrying a live
session cookie through with the session's Identity in their context, and
sends everybody else to the identity provider.  The callback handler turns a
completed flow into a session and a cookie.  The LogoutCoordinator destroys the
local session and then sends the browser to the provider's logout endpoint so
both sessions end together.  NewRouter wires all of it on a chi router.
*/
package web
