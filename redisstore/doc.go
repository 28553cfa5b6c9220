// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package redisstore provides Redis backed implementations of session.Store
// and oidc.RequestStore, so that several replicas of the web application can
// share sessions and complete each other's authorization flows.
package redisstore
