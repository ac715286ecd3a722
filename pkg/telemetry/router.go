/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcome constants for router metrics, distinct from
// StatusSuccess/StatusError because a deployment can also be skipped
// outright (in cooldown, or its circuit breaker is open).
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// RouterMetrics holds Prometheus metrics for the provider router:
// deployment selection, cooldowns, and circuit-breaker state.
type RouterMetrics struct {
	// CallsTotal is the total number of upstream provider calls routed,
	// by model, deployment, and outcome.
	CallsTotal *prometheus.CounterVec

	// CallDuration is the histogram of routed call durations.
	CallDuration *prometheus.HistogramVec

	// CooldownsTotal is the total number of times a deployment was put
	// into cooldown after a failure.
	CooldownsTotal *prometheus.CounterVec

	// BreakerState reports each deployment's circuit-breaker state as a
	// gauge (0=closed, 1=half-open, 2=open), mirroring gobreaker.State.
	BreakerState *prometheus.GaugeVec

	// NoAvailableDeploymentTotal counts requests that exhausted every
	// candidate deployment for a model.
	NoAvailableDeploymentTotal *prometheus.CounterVec
}

// RouterMetricsConfig configures the router metrics.
type RouterMetricsConfig struct {
	// Namespace labels every metric.
	Namespace string

	// CallDurationBuckets for the call-duration histogram. Defaults to
	// DefaultCallDurationBuckets.
	CallDurationBuckets []float64
}

// DefaultCallDurationBuckets are the default histogram buckets for a
// routed provider call, inclusive of retry/failover time spent inside Chat/Embed/Rerank.
var DefaultCallDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// NewRouterMetrics creates and registers Prometheus metrics for the
// provider router.
func NewRouterMetrics(cfg RouterMetricsConfig) *RouterMetrics {
	var constLabels prometheus.Labels
	if cfg.Namespace != "" {
		constLabels = prometheus.Labels{"namespace": cfg.Namespace}
	}

	buckets := cfg.CallDurationBuckets
	if buckets == nil {
		buckets = DefaultCallDurationBuckets
	}

	return &RouterMetrics{
		CallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "jamai_router_calls_total",
			Help:        "Total number of provider calls routed, by model, deployment, and outcome",
			ConstLabels: constLabels,
		}, []string{"model_id", "deployment_id", "outcome"}),

		CallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "jamai_router_call_duration_seconds",
			Help:        "Routed provider call duration in seconds",
			ConstLabels: constLabels,
			Buckets:     buckets,
		}, []string{"model_id", "deployment_id"}),

		CooldownsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "jamai_router_cooldowns_total",
			Help:        "Total number of times a deployment was put into cooldown after a failure",
			ConstLabels: constLabels,
		}, []string{"model_id", "deployment_id"}),

		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "jamai_router_breaker_state",
			Help:        "Circuit-breaker state per deployment (0=closed, 1=half-open, 2=open)",
			ConstLabels: constLabels,
		}, []string{"deployment_id"}),

		NoAvailableDeploymentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "jamai_router_no_available_deployment_total",
			Help:        "Total number of requests that exhausted every candidate deployment for a model",
			ConstLabels: constLabels,
		}, []string{"model_id"}),
	}
}

// RecordCall records metrics for one routed provider call.
func (m *RouterMetrics) RecordCall(modelID, deploymentID, outcome string, durationSeconds float64) {
	m.CallsTotal.WithLabelValues(modelID, deploymentID, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.CallDuration.WithLabelValues(modelID, deploymentID).Observe(durationSeconds)
	}
}

// RecordCooldown records a deployment entering cooldown.
func (m *RouterMetrics) RecordCooldown(modelID, deploymentID string) {
	m.CooldownsTotal.WithLabelValues(modelID, deploymentID).Inc()
}

// SetBreakerState records a deployment's current circuit-breaker state.
func (m *RouterMetrics) SetBreakerState(deploymentID string, state float64) {
	m.BreakerState.WithLabelValues(deploymentID).Set(state)
}

// RecordNoAvailableDeployment records a request that found no usable
// deployment for a model.
func (m *RouterMetrics) RecordNoAvailableDeployment(modelID string) {
	m.NoAvailableDeploymentTotal.WithLabelValues(modelID).Inc()
}

// RouterMetricsRecorder is the interface for recording router metrics,
// allowing a no-op implementation when metrics are disabled.
type RouterMetricsRecorder interface {
	RecordCall(modelID, deploymentID, outcome string, durationSeconds float64)
	RecordCooldown(modelID, deploymentID string)
	SetBreakerState(deploymentID string, state float64)
	RecordNoAvailableDeployment(modelID string)
}

// NoOpRouterMetrics is a no-op implementation for when metrics are disabled.
type NoOpRouterMetrics struct{}

func (n *NoOpRouterMetrics) RecordCall(_, _, _ string, _ float64) {}
func (n *NoOpRouterMetrics) RecordCooldown(_, _ string)           {}
func (n *NoOpRouterMetrics) SetBreakerState(_ string, _ float64)  {}
func (n *NoOpRouterMetrics) RecordNoAvailableDeployment(_ string) {}

var (
	_ RouterMetricsRecorder = (*RouterMetrics)(nil)
	_ RouterMetricsRecorder = (*NoOpRouterMetrics)(nil)
)
