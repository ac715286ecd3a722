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

// Package telemetry bootstraps the OTel MeterProvider and holds the
// Prometheus recorders for the row executor and the provider router.
// pkg/billing's otel.Meter("jamai.billing") counters, and any other
// package that calls otel.Meter, only emit through the Prometheus
// /metrics endpoint once this bootstrap has run.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MeterConfig configures the global MeterProvider.
type MeterConfig struct {
	// ServiceName is the service name attached to the MeterProvider's resource.
	ServiceName string

	// ServiceVersion is the service version attached to the resource.
	ServiceVersion string

	// Registerer is the Prometheus registry the OTel metrics bridge
	// publishes into. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// NewMeterProvider builds an OTel SDK MeterProvider backed by the
// go.opentelemetry.io/otel/exporters/prometheus bridge, so that counters
// created via otel.Meter(...) surface on the same /metrics endpoint as
// the promauto-registered recorders below, and registers it globally.
func NewMeterProvider(cfg MeterConfig) (*metric.MeterProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "jamai-server"
	}

	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating prometheus exporter: %w", err)
	}

	// Standalone resource, not merged with resource.Default(): see
	// pkg/tracing's NewProvider for why that merge is avoided.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}
