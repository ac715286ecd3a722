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
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMeterProvider(t *testing.T) {
	registry := prometheus.NewRegistry()

	mp, err := NewMeterProvider(MeterConfig{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Registerer:     registry,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mp == nil {
		t.Fatal("expected non-nil MeterProvider")
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()

	meter := mp.Meter("jamai.test")
	counter, err := meter.Float64Counter("test_counter")
	if err != nil {
		t.Fatalf("unexpected error creating counter: %v", err)
	}
	counter.Add(context.Background(), 1)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family after recording a counter")
	}
}

func TestNewMeterProvider_DefaultsServiceName(t *testing.T) {
	registry := prometheus.NewRegistry()

	mp, err := NewMeterProvider(MeterConfig{Registerer: registry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()
}
