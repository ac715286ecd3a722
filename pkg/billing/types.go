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

// Package billing implements C4: per-request usage accumulation, the
// pre-flight quota gate, cost computation, and the buffered pipeline that
// pushes usage events to the analytics sink after the HTTP response has
// already been written.
package billing

import "time"

// ProductType names one billable dimension of usage.
type ProductType string

// Product types.
const (
	ProductLLMTokens       ProductType = "llm_tokens"
	ProductEmbeddingTokens ProductType = "embedding_tokens"
	ProductRerankerSearch  ProductType = "reranker_searches"
	ProductBandwidth       ProductType = "bandwidth"
	ProductStorage         ProductType = "storage"
)

// Event is one billable occurrence, destined for the analytics sink.
// ID is a UUIDv7 so repeated flush attempts of the same event upsert
// idempotently instead of double-counting.
type Event struct {
	ID         string
	OrgID      string
	ProjectID  string
	TableID    string
	ModelID    string
	Product    ProductType
	Quantity   float64
	Cost       float64
	RecordedAt time.Time
}

// OrgBalance is the subset of an org's billing state the Manager needs to
// evaluate the pre-flight quota gate and compute cost.
type OrgBalance struct {
	IsOSS        bool
	Credit       float64
	CreditGrant  float64
	EllmQuota    float64
	EllmUsage    float64
	ExternalKeys map[string]string // provider -> user-supplied API key
}

// hasExternalKey reports whether the org supplied its own key for provider.
func (b OrgBalance) hasExternalKey(provider string) bool {
	_, ok := b.ExternalKeys[provider]
	return ok
}
