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

// Package tracing provides OpenTelemetry tracing for the row executor,
// the provider router, and the RAG retrieval path.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer used for row-generation spans.
	TracerName = "jamai-runtime"
)

// GenAI semantic convention attribute keys.
// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/
const (
	AttrGenAISystem            = "gen_ai.system"
	AttrGenAIOperationName     = "gen_ai.operation.name"
	AttrGenAIRequestModel      = "gen_ai.request.model"
	AttrGenAIResponseModel     = "gen_ai.response.model"
	AttrGenAIResponseFinish    = "gen_ai.response.finish_reasons"
	AttrGenAIUsageInputTokens  = "gen_ai.usage.input_tokens"
	AttrGenAIUsageOutputTokens = "gen_ai.usage.output_tokens"
	AttrGenAIUsageCost         = "gen_ai.usage.cost"
	AttrGenAIPromptLength      = "gen_ai.prompt.length"
	AttrGenAIResponseLength    = "gen_ai.response.length"
)

// Config holds tracing configuration.
type Config struct {
	// Enabled enables tracing.
	Enabled bool

	// Endpoint is the OTLP collector endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces.
	ServiceName string

	// ServiceVersion is the service version.
	ServiceVersion string

	// Environment is the deployment environment (e.g., "production", "staging").
	Environment string

	// SampleRate is the sampling rate (up to 1.0). Zero selects the
	// default 1.0 (all traces); a negative rate samples nothing.
	SampleRate float64

	// Insecure disables TLS for the OTLP connection.
	Insecure bool
}

// Provider wraps the OpenTelemetry TracerProvider.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider creates a new tracing provider with the given configuration.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "jamai-runtime"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	client := otlptracegrpc.NewClient(opts...)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	// Standalone resource, not merged with resource.Default(): mixing
	// schema URLs across otel package versions raises "conflicting
	// Schema URL" errors.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(TracerName),
	}, nil
}

// NewTestProvider creates a Provider from a pre-configured TracerProvider.
// This is intended for tests that supply an in-memory exporter.
func NewTestProvider(tp *sdktrace.TracerProvider) *Provider {
	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(TracerName),
	}
}

// Tracer returns the tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// TracerProvider returns the underlying TracerProvider for SDK integration.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p.tp != nil {
		return p.tp
	}
	return otel.GetTracerProvider()
}

// Shutdown shuts down the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp != nil {
		return p.tp.Shutdown(ctx)
	}
	return nil
}

// StartRowSpan starts a span covering one row's full DAG walk.
func (p *Provider) StartRowSpan(ctx context.Context, tableID, rowID string) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, "gentable.row",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("jamai.table.id", tableID),
			attribute.String("jamai.row.id", rowID),
		),
	)
	return ctx, span
}

// StartColumnSpan starts a span for one generated column's execution
// within a row.
func (p *Provider) StartColumnSpan(ctx context.Context, columnID, genType string) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("gentable.column.%s", genType),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("jamai.column.id", columnID),
			attribute.String("jamai.column.gen_type", genType),
		),
	)
	return ctx, span
}

// StartLLMSpan starts a new span for an LLM call following GenAI semantic conventions.
func (p *Provider) StartLLMSpan(ctx context.Context, model string, system string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("chat %s", model)
	ctx, span := p.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrGenAISystem, system),
			attribute.String(AttrGenAIOperationName, "chat"),
			attribute.String(AttrGenAIRequestModel, model),
		),
	)
	return ctx, span
}

// StartEmbedSpan starts a new span for an embedding call.
func (p *Provider) StartEmbedSpan(ctx context.Context, model string, system string) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("embeddings %s", model),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrGenAISystem, system),
			attribute.String(AttrGenAIOperationName, "embeddings"),
			attribute.String(AttrGenAIRequestModel, model),
		),
	)
	return ctx, span
}

// StartRetrievalSpan starts a new span for a RAG chunk-retrieval call
// against a knowledge table.
func (p *Provider) StartRetrievalSpan(ctx context.Context, knowledgeTableID string, topK int) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, "rag.retrieve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("jamai.knowledge_table.id", knowledgeTableID),
			attribute.Int("jamai.rag.top_k", topK),
		),
	)
	return ctx, span
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful.
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "success")
}

// AddLLMMetrics adds GenAI usage metrics to a span.
func AddLLMMetrics(span trace.Span, inputTokens, outputTokens int, costUSD float64) {
	span.SetAttributes(
		attribute.Int(AttrGenAIUsageInputTokens, inputTokens),
		attribute.Int(AttrGenAIUsageOutputTokens, outputTokens),
		attribute.Float64(AttrGenAIUsageCost, costUSD),
	)
}

// AddResponseModel sets the response model on a span (may differ from request model).
func AddResponseModel(span trace.Span, model string) {
	span.SetAttributes(
		attribute.String(AttrGenAIResponseModel, model),
	)
}

// AddFinishReason sets the finish reason on a span.
func AddFinishReason(span trace.Span, reason string) {
	span.SetAttributes(
		attribute.StringSlice(AttrGenAIResponseFinish, []string{reason}),
	)
}

// AddRetrievalResult adds chunk-retrieval result info to a span.
func AddRetrievalResult(span trace.Span, chunkCount int, durationMs int) {
	span.SetAttributes(
		attribute.Int("jamai.rag.chunks_returned", chunkCount),
		attribute.Int("jamai.rag.duration_ms", durationMs),
	)
}

// AddRowMetrics adds row-completion metrics to a span.
func AddRowMetrics(span trace.Span, columnsRun int, columnsFailed int) {
	span.SetAttributes(
		attribute.Int("jamai.row.columns_run", columnsRun),
		attribute.Int("jamai.row.columns_failed", columnsFailed),
	)
}
