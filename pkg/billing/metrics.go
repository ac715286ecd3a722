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

package billing

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the Prometheus counters, registered the promauto way,
// plus the OpenTelemetry counters for usage accounting: llm_token_usage,
// embedding_token_usage, reranker_search_usage, bandwidth_usage, spent.
type Metrics struct {
	eventsTotal *prometheus.CounterVec
	costTotal   *prometheus.CounterVec

	llmTokenUsage       metric.Float64Counter
	embeddingTokenUsage metric.Float64Counter
	rerankerSearchUsage metric.Float64Counter
	bandwidthUsage      metric.Float64Counter
	spent               metric.Float64Counter
}

// NewMetrics creates and registers billing metrics against the default
// Prometheus registry and the global OTel MeterProvider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("jamai.billing")

	llmTokenUsage, err := meter.Float64Counter("llm_token_usage")
	if err != nil {
		return nil, err
	}
	embeddingTokenUsage, err := meter.Float64Counter("embedding_token_usage")
	if err != nil {
		return nil, err
	}
	rerankerSearchUsage, err := meter.Float64Counter("reranker_search_usage")
	if err != nil {
		return nil, err
	}
	bandwidthUsage, err := meter.Float64Counter("bandwidth_usage")
	if err != nil {
		return nil, err
	}
	spent, err := meter.Float64Counter("spent")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamai_billing_events_total",
			Help: "Total number of billing usage events recorded, by product",
		}, []string{"product"}),
		costTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamai_billing_cost_total",
			Help: "Total computed cost, by product",
		}, []string{"product"}),
		llmTokenUsage:       llmTokenUsage,
		embeddingTokenUsage: embeddingTokenUsage,
		rerankerSearchUsage: rerankerSearchUsage,
		bandwidthUsage:      bandwidthUsage,
		spent:               spent,
	}, nil
}

// Observe records every event in the Manager against both the Prometheus
// counters and the OTel counters, attributed by org/project/model.
func (m *Metrics) Observe(ctx context.Context, events []Event) {
	for _, evt := range events {
		m.eventsTotal.WithLabelValues(string(evt.Product)).Add(evt.Quantity)
		m.costTotal.WithLabelValues(string(evt.Product)).Add(evt.Cost)

		attrs := metric.WithAttributes(
			attribute.String("org_id", evt.OrgID),
			attribute.String("project_id", evt.ProjectID),
			attribute.String("model_id", evt.ModelID),
		)
		switch evt.Product {
		case ProductLLMTokens:
			m.llmTokenUsage.Add(ctx, evt.Quantity, attrs)
		case ProductEmbeddingTokens:
			m.embeddingTokenUsage.Add(ctx, evt.Quantity, attrs)
		case ProductRerankerSearch:
			m.rerankerSearchUsage.Add(ctx, evt.Quantity, attrs)
		case ProductBandwidth:
			m.bandwidthUsage.Add(ctx, evt.Quantity, attrs)
		}
		if evt.Cost > 0 {
			m.spent.Add(ctx, evt.Cost, attrs)
		}
	}
}
