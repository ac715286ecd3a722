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

// Package modelregistry implements C1: the authoritative store of
// ModelConfig and Deployment records, and resolution of an abstract
// model_id into the set of deployments a request may use.
package modelregistry

import (
	"strings"
	"time"
)

// ModelType is the kind of inference a ModelConfig performs.
type ModelType string

// Model types.
const (
	ModelTypeLLM        ModelType = "llm"
	ModelTypeEmbed      ModelType = "embed"
	ModelTypeRerank     ModelType = "rerank"
	ModelTypeCompletion ModelType = "completion"
)

// Capability is a feature a model exposes.
type Capability string

// Capabilities.
const (
	CapChat      Capability = "chat"
	CapTool      Capability = "tool"
	CapImage     Capability = "image"
	CapAudio     Capability = "audio"
	CapEmbed     Capability = "embed"
	CapRerank    Capability = "rerank"
	CapReasoning Capability = "reasoning"
)

// ModelConfig is the vendor-agnostic description of a model JamAI can route
// to. Its ID always has the form "{provider}/{name}".
type ModelConfig struct {
	ID           string
	Type         ModelType
	OwnedBy      string
	Capabilities map[Capability]struct{}

	ContextLength int
	Languages     []string

	EmbeddingSize       int // 0 if not applicable
	EmbeddingDimensions int // 0 if not applicable (Matryoshka override ceiling)

	LLMInputCostPerMToken   float64
	LLMOutputCostPerMToken  float64
	EmbeddingCostPerMToken  float64
	RerankingCostPerKSearch float64

	AllowedOrgs []string
	BlockedOrgs []string

	Timeout  time.Duration
	Priority int
}

// Provider returns the provider segment of ID ("openai/gpt-4.1" -> "openai").
func (m ModelConfig) Provider() string {
	if idx := strings.IndexByte(m.ID, '/'); idx >= 0 {
		return m.ID[:idx]
	}
	return m.ID
}

// HasCapability reports whether m exposes cap.
func (m ModelConfig) HasCapability(cap Capability) bool {
	_, ok := m.Capabilities[cap]
	return ok
}

// HasAllCapabilities reports whether m exposes every capability in caps.
func (m ModelConfig) HasAllCapabilities(caps ...Capability) bool {
	for _, c := range caps {
		if !m.HasCapability(c) {
			return false
		}
	}
	return true
}

// Validate enforces the ModelConfig invariants:
//   - ID has the form "provider/rest"
//   - an embed model exposes at least one of EmbeddingSize/EmbeddingDimensions
//   - a model whose OwnedBy == "ellm" must have an ID starting with "ellm/"
func (m ModelConfig) Validate() error {
	if !strings.Contains(m.ID, "/") || strings.HasPrefix(m.ID, "/") || strings.HasSuffix(m.ID, "/") {
		return errInvalidModelID(m.ID)
	}
	if m.Type == ModelTypeEmbed && m.EmbeddingSize == 0 && m.EmbeddingDimensions == 0 {
		return errEmbedMissingDimensions(m.ID)
	}
	if m.OwnedBy == "ellm" && !strings.HasPrefix(m.ID, "ellm/") {
		return errEllmIDMismatch(m.ID)
	}
	return nil
}

// Deployment binds a ModelConfig to a concrete provider endpoint.
type Deployment struct {
	ID            string
	ModelID       string
	Name          string
	Provider      string // vendor kind: "openai", "anthropic", "bedrock", "vllm", ...
	RoutingID     string // provider-native model name
	APIBase       string
	Region        string // AWS region; only meaningful when Provider == "bedrock"
	Weight        float64
	CooldownUntil time.Time
	CreatedAt     time.Time
}

// Available reports whether the deployment is past its cooldown at t.
func (d Deployment) Available(t time.Time) bool {
	return !d.CooldownUntil.After(t)
}
