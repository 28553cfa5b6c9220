// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package web

import (
	"errors"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Authorization results, used as the "result" label.
const (
	ResultSuccess           = "success"
	ResultDenied            = "denied"
	ResultInvalidState      = "invalid_state"
	ResultTokenExchange     = "token_exchange"
	ResultInvalidToken      = "invalid_token"
	ResultMalformedIdentity = "malformed_identity"
	ResultInternal          = "internal"
)

// Metrics tracks logins and logouts.  A nil *Metrics records nothing.
type Metrics struct {
	AuthorizationsStarted   prometheus.Counter
	AuthorizationsCompleted *prometheus.CounterVec
	CompletionDuration      prometheus.Histogram
	Logouts                 prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuthorizationsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "capweb_authorizations_started_total",
			Help: "Total number of browsers sent to the identity provider",
		}),
		AuthorizationsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "capweb_authorizations_completed_total",
			Help: "Total number of callbacks processed, by result",
		}, []string{"result"}),
		CompletionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "capweb_authorization_completion_seconds",
			Help:    "Duration of callback processing (token exchange and id_token verification)",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "capweb_logouts_total",
			Help: "Total number of federated logouts",
		}),
	}
}

// IncrementStarted records a browser sent to the identity provider.
func (m *Metrics) IncrementStarted() {
	if m == nil {
		return
	}
	m.AuthorizationsStarted.Inc()
}

// ObserveCompletion records a processed callback.  Call with time.Now() at
// the start of the callback.
func (m *Metrics) ObserveCompletion(result string, start time.Time) {
	if m == nil {
		return
	}
	m.AuthorizationsCompleted.WithLabelValues(result).Inc()
	m.CompletionDuration.Observe(time.Since(start).Seconds())
}

// IncrementLogouts records a federated logout.
func (m *Metrics) IncrementLogouts() {
	if m == nil {
		return
	}
	m.Logouts.Inc()
}

// ResultFor classifies a callback error.
func ResultFor(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, oidc.ErrAuthorizationDenied):
		return ResultDenied
	case errors.Is(err, oidc.ErrInvalidState):
		return ResultInvalidState
	case errors.Is(err, oidc.ErrTokenExchange):
		return ResultTokenExchange
	case errors.Is(err, oidc.ErrInvalidToken):
		return ResultInvalidToken
	case errors.Is(err, oidc.ErrMalformedIdentity):
		return ResultMalformedIdentity
	default:
		return ResultInternal
	}
}
