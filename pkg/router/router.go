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

// Package router implements C3: picking a live Deployment for a model,
// retrying across alternatives on transient provider failure, and cooling
// down deployments that just failed.
package router

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

// AdapterResolver returns the provider Adapter to use for a given
// Deployment, with credentials already attached (an org's external_keys
// entry, or the platform's own key for ellm-owned models).
type AdapterResolver interface {
	Resolve(ctx context.Context, dep modelregistry.Deployment) (providers.Adapter, error)
}

// Clock is injected so tests can control time deterministically.
type Clock func() time.Time

type orgIDContextKey struct{}

// withOrgID attaches orgID to ctx so an AdapterResolver can look up the
// calling org's external_keys without threading it through the
// AdapterResolver interface itself.
func withOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDContextKey{}, orgID)
}

// OrgIDFromContext retrieves the org ID a Router call attached to ctx,
// for AdapterResolver implementations that need it to resolve
// credentials.
func OrgIDFromContext(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(orgIDContextKey{}).(string)
	return orgID, ok
}

// Router picks deployments for a resolved model and executes provider
// calls against them, retrying across alternatives under a cooldown and
// exponential backoff policy.
type Router struct {
	registry    modelregistry.Registry
	resolver    AdapterResolver
	balances    billing.BalanceStore
	now         Clock
	backoffBase time.Duration

	mu       sync.Mutex
	rng      *rand.Rand
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// New constructs a Router. backoffBase is the base of the exponential
// cooldown duration (backoff_base · 2^attempt, jitter ±20%). balances
// may be nil, in which case the pre-flight quota gate is skipped entirely
// (no balance collaborator to gate against).
func New(registry modelregistry.Registry, resolver AdapterResolver, balances billing.BalanceStore, backoffBase time.Duration) *Router {
	return &Router{
		registry:    registry,
		resolver:    resolver,
		balances:    balances,
		now:         time.Now,
		backoffBase: backoffBase,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		breakers:    make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// checkQuota runs the pre-flight quota gate for orgID against model's
// provider, failing with InsufficientCredits before any deployment is
// contacted. A nil balances collaborator (no billing storage configured)
// skips the gate entirely.
func (r *Router) checkQuota(ctx context.Context, orgID string, model modelregistry.ModelConfig) error {
	if r.balances == nil {
		return nil
	}
	balance, err := r.balances.GetOrgBalance(ctx, orgID)
	if err != nil {
		return fmt.Errorf("router: load org balance for %q: %w", orgID, err)
	}
	return billing.RequireQuota(balance, model.Provider())
}

func (r *Router) breakerFor(deploymentID string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[deploymentID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        deploymentID,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	r.breakers[deploymentID] = cb
	return cb
}

// backoffFor computes the cooldown duration for the given retry attempt
// (0-indexed), applying up to ±20% jitter.
func (r *Router) backoffFor(attempt int) time.Duration {
	base := r.backoffBase * time.Duration(1<<uint(attempt))
	r.mu.Lock()
	jitter := 1 + (r.rng.Float64()*0.4 - 0.2)
	r.mu.Unlock()
	return time.Duration(float64(base) * jitter)
}

// pickWeighted performs weighted random sampling over candidates, per
// spec: weight zero is never picked unless it's the only candidate left.
func (r *Router) pickWeighted(candidates []modelregistry.Deployment) modelregistry.Deployment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total float64
	for _, d := range candidates {
		total += d.Weight
	}
	if total <= 0 {
		return candidates[r.rng.Intn(len(candidates))]
	}
	pick := r.rng.Float64() * total
	for _, d := range candidates {
		if d.Weight <= 0 {
			continue
		}
		if pick < d.Weight {
			return d
		}
		pick -= d.Weight
	}
	return candidates[len(candidates)-1]
}

func removeDeployment(candidates []modelregistry.Deployment, id string) []modelregistry.Deployment {
	out := candidates[:0:0]
	for _, d := range candidates {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

func isRetryable(kind jamerrors.Kind) bool {
	return kind == jamerrors.ProviderUnavailable || kind == jamerrors.ProviderRateLimit
}

// Chat resolves modelID for orgID, then attempts deployments in weighted
// random order, retrying on transient failure until either one succeeds,
// the model's timeout budget elapses, or candidates are exhausted.
func (r *Router) Chat(ctx context.Context, orgID, modelID string, req providers.ChatRequest, onChunk providers.StreamHandler) (providers.ChatResponse, error) {
	ctx = withOrgID(ctx, orgID)
	model, err := r.registry.Get(ctx, orgID, modelID)
	if err != nil {
		return providers.ChatResponse{}, err
	}
	if err := r.checkQuota(ctx, orgID, model); err != nil {
		return providers.ChatResponse{}, err
	}
	deps, err := r.registry.Deployments(ctx, modelID)
	if err != nil {
		return providers.ChatResponse{}, err
	}

	now := r.now()
	candidates := make([]modelregistry.Deployment, 0, len(deps))
	for _, d := range deps {
		if d.Available(now) {
			candidates = append(candidates, d)
		}
	}

	deadline := now.Add(model.Timeout)
	attempt := 0
	emittedAny := false

	for {
		if len(candidates) == 0 {
			return providers.ChatResponse{}, jamerrors.New(jamerrors.NoAvailableDeployment, "no available deployment for model %q", modelID)
		}
		if model.Timeout > 0 && r.now().After(deadline) {
			return providers.ChatResponse{}, jamerrors.New(jamerrors.NoAvailableDeployment, "timeout budget exhausted for model %q", modelID)
		}

		dep := r.pickWeighted(candidates)
		candidates = removeDeployment(candidates, dep.ID)

		adapter, err := r.resolver.Resolve(ctx, dep)
		if err != nil {
			return providers.ChatResponse{}, fmt.Errorf("router: resolve adapter for deployment %q: %w", dep.ID, err)
		}
		chatAdapter, err := providers.AsChatAdapter(adapter)
		if err != nil {
			return providers.ChatResponse{}, err
		}

		reqCopy := req
		reqCopy.RoutingID = dep.RoutingID

		wrapped := func(ctx context.Context, c providers.ChatChunk) error {
			if c.ContentDelta != "" || len(c.ToolCallsDelta) > 0 {
				emittedAny = true
			}
			if onChunk == nil {
				return nil
			}
			return onChunk(ctx, c)
		}

		cb := r.breakerFor(dep.ID)
		result, callErr := cb.Execute(func() (any, error) {
			return chatAdapter.Chat(ctx, dep.APIBase, reqCopy, wrapped)
		})
		if callErr == nil {
			return result.(providers.ChatResponse), nil
		}

		kind := jamerrors.KindOf(callErr)
		if !isRetryable(kind) {
			return providers.ChatResponse{}, callErr
		}

		until := r.now().Add(r.backoffFor(attempt))
		_ = r.registry.Cooldown(ctx, modelID, dep.ID, until)
		attempt++

		if emittedAny {
			if onChunk != nil {
				_ = onChunk(ctx, providers.ChatChunk{ContentDelta: "[ERROR] " + callErr.Error(), FinishReason: providers.FinishStop})
			}
			return providers.ChatResponse{}, callErr
		}
		// no chunk emitted yet: safe to retry against the next candidate.
	}
}

// Embed resolves modelID and attempts deployments the same way Chat does,
// without the streaming partial-emission distinction.
func (r *Router) Embed(ctx context.Context, orgID, modelID string, req providers.EmbeddingRequest) (providers.EmbeddingResponse, error) {
	ctx = withOrgID(ctx, orgID)
	model, err := r.registry.Get(ctx, orgID, modelID)
	if err != nil {
		return providers.EmbeddingResponse{}, err
	}
	if err := r.checkQuota(ctx, orgID, model); err != nil {
		return providers.EmbeddingResponse{}, err
	}
	deps, err := r.registry.Deployments(ctx, modelID)
	if err != nil {
		return providers.EmbeddingResponse{}, err
	}

	now := r.now()
	candidates := make([]modelregistry.Deployment, 0, len(deps))
	for _, d := range deps {
		if d.Available(now) {
			candidates = append(candidates, d)
		}
	}
	deadline := now.Add(model.Timeout)
	attempt := 0

	for {
		if len(candidates) == 0 {
			return providers.EmbeddingResponse{}, jamerrors.New(jamerrors.NoAvailableDeployment, "no available deployment for model %q", modelID)
		}
		if model.Timeout > 0 && r.now().After(deadline) {
			return providers.EmbeddingResponse{}, jamerrors.New(jamerrors.NoAvailableDeployment, "timeout budget exhausted for model %q", modelID)
		}

		dep := r.pickWeighted(candidates)
		candidates = removeDeployment(candidates, dep.ID)

		adapter, err := r.resolver.Resolve(ctx, dep)
		if err != nil {
			return providers.EmbeddingResponse{}, fmt.Errorf("router: resolve adapter for deployment %q: %w", dep.ID, err)
		}
		embedAdapter, err := providers.AsEmbedAdapter(adapter)
		if err != nil {
			return providers.EmbeddingResponse{}, err
		}

		reqCopy := req
		reqCopy.RoutingID = dep.RoutingID

		cb := r.breakerFor(dep.ID)
		result, callErr := cb.Execute(func() (any, error) {
			return embedAdapter.Embed(ctx, dep.APIBase, reqCopy)
		})
		if callErr == nil {
			return result.(providers.EmbeddingResponse), nil
		}

		kind := jamerrors.KindOf(callErr)
		if !isRetryable(kind) {
			return providers.EmbeddingResponse{}, callErr
		}
		until := r.now().Add(r.backoffFor(attempt))
		_ = r.registry.Cooldown(ctx, modelID, dep.ID, until)
		attempt++
	}
}

// Rerank resolves modelID and attempts deployments the same way Embed does.
func (r *Router) Rerank(ctx context.Context, orgID, modelID string, req providers.RerankRequest) (providers.RerankResponse, error) {
	ctx = withOrgID(ctx, orgID)
	model, err := r.registry.Get(ctx, orgID, modelID)
	if err != nil {
		return providers.RerankResponse{}, err
	}
	if err := r.checkQuota(ctx, orgID, model); err != nil {
		return providers.RerankResponse{}, err
	}
	deps, err := r.registry.Deployments(ctx, modelID)
	if err != nil {
		return providers.RerankResponse{}, err
	}

	now := r.now()
	candidates := make([]modelregistry.Deployment, 0, len(deps))
	for _, d := range deps {
		if d.Available(now) {
			candidates = append(candidates, d)
		}
	}
	deadline := now.Add(model.Timeout)
	attempt := 0

	for {
		if len(candidates) == 0 {
			return providers.RerankResponse{}, jamerrors.New(jamerrors.NoAvailableDeployment, "no available deployment for model %q", modelID)
		}
		if model.Timeout > 0 && r.now().After(deadline) {
			return providers.RerankResponse{}, jamerrors.New(jamerrors.NoAvailableDeployment, "timeout budget exhausted for model %q", modelID)
		}

		dep := r.pickWeighted(candidates)
		candidates = removeDeployment(candidates, dep.ID)

		adapter, err := r.resolver.Resolve(ctx, dep)
		if err != nil {
			return providers.RerankResponse{}, fmt.Errorf("router: resolve adapter for deployment %q: %w", dep.ID, err)
		}
		rerankAdapter, err := providers.AsRerankAdapter(adapter)
		if err != nil {
			return providers.RerankResponse{}, err
		}

		reqCopy := req
		reqCopy.RoutingID = dep.RoutingID

		cb := r.breakerFor(dep.ID)
		result, callErr := cb.Execute(func() (any, error) {
			return rerankAdapter.Rerank(ctx, dep.APIBase, reqCopy)
		})
		if callErr == nil {
			return result.(providers.RerankResponse), nil
		}

		kind := jamerrors.KindOf(callErr)
		if !isRetryable(kind) {
			return providers.RerankResponse{}, callErr
		}
		until := r.now().Add(r.backoffFor(attempt))
		_ = r.registry.Cooldown(ctx, modelID, dep.ID, until)
		attempt++
	}
}
