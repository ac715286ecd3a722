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

// Command jamaiserver wires every JamAI collaborator (model registry,
// router, RAG retriever, row executor, billing pipeline) into one
// process and keeps it alive. It does not expose an HTTP or gRPC API:
// that surface is out of scope for this module, so the only listener
// this binary opens is the health/metrics server every JamAI process
// carries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EmbeddedLLM/JamAIBase-sub002/internal/config"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/authctx"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/runner"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/logging"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/router"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/telemetry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/tracing"
)

func main() {
	log, sync, err := logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer sync()

	cfg, err := config.Load()
	if err != nil {
		log.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	log.Info("starting jamaiserver",
		"isCloud", cfg.IsCloud, "isOSS", cfg.IsOSS,
		"healthPort", cfg.HealthPort, "rowWorkerPoolSize", cfg.RowWorkerPoolSize)

	tracingProvider, err := bootstrapTracing(cfg, log)
	if err != nil {
		log.Error(err, "failed to initialize tracing")
		// Continue without tracing: it's optional, like every other
		// ambient collaborator here.
	}
	if tracingProvider != nil {
		defer func() { _ = tracingProvider.Shutdown(context.Background()) }()
	}

	if _, err := telemetry.NewMeterProvider(telemetry.MeterConfig{ServiceName: "jamai-server"}); err != nil {
		log.Error(err, "failed to initialize meter provider")
		os.Exit(1)
	}
	executorMetrics := telemetry.NewExecutorMetrics(telemetry.ExecutorMetricsConfig{})
	routerMetrics := telemetry.NewRouterMetrics(telemetry.RouterMetricsConfig{})
	executorMetrics.Initialize()

	authenticator, err := authctx.NewAuthenticator([]byte(cfg.ServiceKey), "jamai-server")
	if err != nil {
		log.Error(err, "failed to initialize authenticator")
		os.Exit(1)
	}
	_ = authenticator // held by the (not-yet-built) API surface this process doesn't expose.

	stack, err := buildStack(cfg, log, routerMetrics)
	if err != nil {
		log.Error(err, "failed to build storage/domain stack")
		os.Exit(1)
	}
	defer stack.Close()

	log.Info("domain stack constructed",
		"tableService", stack.tableService != nil,
		"executorPool", stack.pool != nil)

	// The quota-reset sweep needs a distributed lock so a horizontally
	// scaled deployment doesn't double-reset every org's quota; without
	// Redis there's no lock to elect a flusher with, so the sweep is
	// skipped rather than run unsafely.
	if stack.flusherLock != nil {
		quotaScheduler, err := billing.NewQuotaResetScheduler(stack.balances, stack.flusherLock, "", buildSlogLogger())
		if err != nil {
			log.Error(err, "failed to initialize quota reset scheduler")
			os.Exit(1)
		}
		quotaScheduler.Start()
		defer quotaScheduler.Stop()
	} else {
		log.Info("quota reset scheduler disabled: no Redis configured")
	}

	httpServer := newHealthServer(cfg.HealthPort)
	go func() {
		log.Info("health server starting", "port", cfg.HealthPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "health server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error(err, "failed to shutdown health server")
	}
	log.Info("shutdown complete")
}

func bootstrapTracing(cfg config.Options, log logr.Logger) (*tracing.Provider, error) {
	if !cfg.Tracing.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	provider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:        true,
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    "jamai-server",
		ServiceVersion: "1.0.0",
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, err
	}
	log.Info("tracing initialized", "endpoint", cfg.Tracing.Endpoint, "sampleRate", cfg.Tracing.SampleRate)
	return provider, nil
}

func newHealthServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// buildSlogLogger gives the quota-reset scheduler the *slog.Logger it
// wants, for the one collaborator in this process that doesn't take a
// logr.Logger. logging.NewZapLogger is re-derived here rather than
// threading the original *zap.Logger through main's locals, since its
// construction is idempotent and side-effect-free.
func buildSlogLogger() *slog.Logger {
	z, err := logging.NewZapLogger()
	if err != nil {
		return slog.Default()
	}
	return logging.SlogFromZap(z)
}

// modelExistsAdapter adapts modelregistry.Registry to
// gentable/service.ModelExists.
type modelExistsAdapter struct {
	registry modelregistry.Registry
}

func (a modelExistsAdapter) Exists(ctx context.Context, orgID, modelID string) bool {
	_, err := a.registry.Get(ctx, orgID, modelID)
	return err == nil
}

// chatCallerAdapter satisfies runner.ChatCaller with a *router.Router,
// recording router-level Prometheus metrics around each call.
type chatCallerAdapter struct {
	router  *router.Router
	metrics *telemetry.RouterMetrics
}

func (a chatCallerAdapter) Chat(ctx context.Context, orgID, modelID string, req providers.ChatRequest, onChunk providers.StreamHandler) (providers.ChatResponse, error) {
	start := time.Now()
	resp, err := a.router.Chat(ctx, orgID, modelID, req, onChunk)
	a.record(modelID, start, err)
	return resp, err
}

func (a chatCallerAdapter) Embed(ctx context.Context, orgID, modelID string, req providers.EmbeddingRequest) (providers.EmbeddingResponse, error) {
	start := time.Now()
	resp, err := a.router.Embed(ctx, orgID, modelID, req)
	a.record(modelID, start, err)
	return resp, err
}

func (a chatCallerAdapter) Rerank(ctx context.Context, orgID, modelID string, req providers.RerankRequest) (providers.RerankResponse, error) {
	start := time.Now()
	resp, err := a.router.Rerank(ctx, orgID, modelID, req)
	a.record(modelID, start, err)
	return resp, err
}

func (a chatCallerAdapter) record(modelID string, start time.Time, err error) {
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	a.metrics.RecordCall(modelID, "", outcome, time.Since(start).Seconds())
}

var _ runner.ChatCaller = chatCallerAdapter{}
