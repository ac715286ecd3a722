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

package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newTestProvider creates a Provider backed by an in-memory span exporter so
// that tests can inspect the attributes that are actually recorded on spans.
func newTestProvider(t *testing.T) (*Provider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(TracerName),
	}, exporter
}

func findAttr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, a := range span.Attributes {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
	if provider.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error on shutdown: %v", err)
	}
}

func TestProvider_StartRowSpan(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartRowSpan(context.Background(), "tbl-1", "row-1")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	if s.Name != "gentable.row" {
		t.Errorf("expected span name 'gentable.row', got %q", s.Name)
	}
	if s.SpanKind != trace.SpanKindServer {
		t.Errorf("expected SpanKindServer, got %v", s.SpanKind)
	}

	val, ok := findAttr(s, "jamai.row.id")
	if !ok {
		t.Fatal("missing attribute 'jamai.row.id'")
	}
	if val.AsString() != "row-1" {
		t.Errorf("expected jamai.row.id='row-1', got %q", val.AsString())
	}
}

func TestProvider_StartColumnSpan(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartColumnSpan(context.Background(), "col-1", "llm")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	if s.Name != "gentable.column.llm" {
		t.Errorf("expected span name 'gentable.column.llm', got %q", s.Name)
	}
	if s.SpanKind != trace.SpanKindInternal {
		t.Errorf("expected SpanKindInternal, got %v", s.SpanKind)
	}
}

func TestProvider_StartLLMSpan(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartLLMSpan(context.Background(), "gpt-4o", "openai")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	if s.Name != "chat gpt-4o" {
		t.Errorf("expected span name 'chat gpt-4o', got %q", s.Name)
	}
	if s.SpanKind != trace.SpanKindClient {
		t.Errorf("expected SpanKindClient, got %v", s.SpanKind)
	}

	val, ok := findAttr(s, AttrGenAIRequestModel)
	if !ok {
		t.Fatal("missing attribute gen_ai.request.model")
	}
	if val.AsString() != "gpt-4o" {
		t.Errorf("expected gen_ai.request.model='gpt-4o', got %q", val.AsString())
	}
}

func TestProvider_StartEmbedSpan(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartEmbedSpan(context.Background(), "text-embedding-3-small", "openai")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "embeddings text-embedding-3-small" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
}

func TestProvider_StartRetrievalSpan(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartRetrievalSpan(context.Background(), "kt-1", 5)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	if s.Name != "rag.retrieve" {
		t.Errorf("expected span name 'rag.retrieve', got %q", s.Name)
	}

	val, ok := findAttr(s, "jamai.rag.top_k")
	if !ok {
		t.Fatal("missing attribute jamai.rag.top_k")
	}
	if val.AsInt64() != 5 {
		t.Errorf("expected jamai.rag.top_k=5, got %d", val.AsInt64())
	}
}

func TestRecordError(t *testing.T) {
	provider, _ := NewProvider(context.Background(), Config{Enabled: false})
	_, span := provider.StartRowSpan(context.Background(), "tbl", "row")
	defer span.End()

	RecordError(span, nil)
	RecordError(span, errors.New("test error"))
}

func TestSetSuccess(t *testing.T) {
	provider, _ := NewProvider(context.Background(), Config{Enabled: false})
	_, span := provider.StartRowSpan(context.Background(), "tbl", "row")
	defer span.End()

	SetSuccess(span)
}

func TestAddLLMMetrics(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartLLMSpan(context.Background(), "test-model", "openai")
	AddLLMMetrics(span, 100, 200, 0.05)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]

	inputVal, ok := findAttr(s, AttrGenAIUsageInputTokens)
	if !ok || inputVal.AsInt64() != 100 {
		t.Errorf("expected gen_ai.usage.input_tokens=100, got %v ok=%v", inputVal, ok)
	}

	outputVal, ok := findAttr(s, AttrGenAIUsageOutputTokens)
	if !ok || outputVal.AsInt64() != 200 {
		t.Errorf("expected gen_ai.usage.output_tokens=200, got %v ok=%v", outputVal, ok)
	}

	costVal, ok := findAttr(s, AttrGenAIUsageCost)
	if !ok || costVal.AsFloat64() != 0.05 {
		t.Errorf("expected gen_ai.usage.cost=0.05, got %v ok=%v", costVal, ok)
	}
}

func TestAddRetrievalResult(t *testing.T) {
	provider, exporter := newTestProvider(t)

	t.Run("success", func(t *testing.T) {
		exporter.Reset()
		_, span := provider.StartRetrievalSpan(context.Background(), "kt-1", 5)
		AddRetrievalResult(span, 3, 150)
		span.End()

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		s := spans[0]
		val, ok := findAttr(s, "jamai.rag.chunks_returned")
		if !ok || val.AsInt64() != 3 {
			t.Errorf("expected jamai.rag.chunks_returned=3, got %v ok=%v", val, ok)
		}
	})
}

func TestAddRowMetrics(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartRowSpan(context.Background(), "tbl", "row")
	AddRowMetrics(span, 4, 1)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]

	runVal, ok := findAttr(s, "jamai.row.columns_run")
	if !ok || runVal.AsInt64() != 4 {
		t.Errorf("expected jamai.row.columns_run=4, got %v ok=%v", runVal, ok)
	}
	failVal, ok := findAttr(s, "jamai.row.columns_failed")
	if !ok || failVal.AsInt64() != 1 {
		t.Errorf("expected jamai.row.columns_failed=1, got %v ok=%v", failVal, ok)
	}
}

func TestProvider_TracerProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.TracerProvider() == nil {
		t.Fatal("expected non-nil TracerProvider")
	}
}

func TestProvider_TracerProvider_NilTP(t *testing.T) {
	p := &Provider{tracer: nil}
	if p.TracerProvider() == nil {
		t.Fatal("expected non-nil TracerProvider from global fallback")
	}
}

func TestProvider_TracerProvider_WithTP(t *testing.T) {
	sdkTP := sdktrace.NewTracerProvider()
	defer func() { _ = sdkTP.Shutdown(context.Background()) }()

	p := &Provider{tp: sdkTP, tracer: sdkTP.Tracer(TracerName)}
	if p.TracerProvider() != sdkTP {
		t.Fatal("expected TracerProvider to return the configured provider")
	}
}

func TestProvider_Shutdown_WithTP(t *testing.T) {
	sdkTP := sdktrace.NewTracerProvider()
	p := &Provider{tp: sdkTP, tracer: sdkTP.Tracer(TracerName)}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewProvider_Enabled(t *testing.T) {
	cfg := Config{
		Enabled:        true,
		Endpoint:       "127.0.0.1:0",
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		SampleRate:     1.0,
		Insecure:       true,
	}

	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	if provider.tp == nil {
		t.Fatal("expected non-nil TracerProvider when enabled")
	}
}

func TestNewProvider_Enabled_Defaults(t *testing.T) {
	cfg := Config{
		Enabled:    true,
		Endpoint:   "127.0.0.1:0",
		SampleRate: 0,
		Insecure:   true,
	}

	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	if provider.tp == nil {
		t.Fatal("expected non-nil TracerProvider")
	}
}

func TestNewProvider_Enabled_NeverSample(t *testing.T) {
	cfg := Config{Enabled: true, Endpoint: "127.0.0.1:0", SampleRate: -1, Insecure: true}

	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	if provider.tp == nil {
		t.Fatal("expected non-nil TracerProvider")
	}
}

func TestNewProvider_Enabled_RatioSample(t *testing.T) {
	cfg := Config{Enabled: true, Endpoint: "127.0.0.1:0", SampleRate: 0.5, Insecure: true}

	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	if provider.tp == nil {
		t.Fatal("expected non-nil TracerProvider")
	}
}

func TestConfig_SampleRates(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
	}{
		{"always sample", 1.0},
		{"never sample", 0.0},
		{"ratio sample", 0.5},
		{"high ratio", 0.99},
		{"low ratio", 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Enabled: false, SampleRate: tt.sampleRate}

			provider, err := NewProvider(context.Background(), cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider == nil {
				t.Fatal("expected non-nil provider")
			}
		})
	}
}

func TestAddFinishReason(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := provider.StartLLMSpan(context.Background(), "test-model", "openai")
	AddFinishReason(span, "stop")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	val, ok := findAttr(spans[0], AttrGenAIResponseFinish)
	if !ok {
		t.Fatal("missing attribute gen_ai.response.finish_reasons")
	}
	reasons := val.AsStringSlice()
	if len(reasons) != 1 || reasons[0] != "stop" {
		t.Errorf("unexpected finish reasons %v", reasons)
	}
}
