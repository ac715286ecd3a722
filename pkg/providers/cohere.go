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

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultCohereBase = "https://api.cohere.com/v2"

// CohereAdapter implements EmbedAdapter and RerankAdapter for Cohere's v2
// API. Cohere is only routed for embed/rerank in this registry, so
// ChatAdapter is deliberately not implemented.
type CohereAdapter struct {
	apiKey     string
	httpClient *http.Client
}

// NewCohereAdapter constructs a CohereAdapter.
func NewCohereAdapter(apiKey string, httpClient *http.Client) *CohereAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CohereAdapter{apiKey: apiKey, httpClient: httpClient}
}

// Kind implements Adapter.
func (c *CohereAdapter) Kind() Kind { return KindCohere }

func (c *CohereAdapter) do(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("providers/cohere: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("providers/cohere: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, MapHTTPError(resp.StatusCode, string(raw))
	}
	return raw, nil
}

type coEmbedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type coEmbedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
	Meta struct {
		BilledUnits struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Embed implements EmbedAdapter.
func (c *CohereAdapter) Embed(ctx context.Context, apiBase string, req EmbeddingRequest) (EmbeddingResponse, error) {
	if apiBase == "" {
		apiBase = defaultCohereBase
	}
	raw, err := c.do(ctx, apiBase+"/embed", coEmbedRequest{
		Model:          req.RoutingID,
		Texts:          req.Input,
		InputType:      "search_document",
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return EmbeddingResponse{}, err
	}

	var parsed coEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/cohere: decode response: %w", err)
	}

	out := EmbeddingResponse{Usage: Usage{PromptTokens: parsed.Meta.BilledUnits.InputTokens}}
	for i, v := range parsed.Embeddings.Float {
		out.Data = append(out.Data, Embedding{Index: i, Vector: v})
	}
	return out, nil
}

type coRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type coRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Meta struct {
		BilledUnits struct {
			SearchUnits int `json:"search_units"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Rerank implements RerankAdapter.
func (c *CohereAdapter) Rerank(ctx context.Context, apiBase string, req RerankRequest) (RerankResponse, error) {
	if apiBase == "" {
		apiBase = defaultCohereBase
	}
	raw, err := c.do(ctx, apiBase+"/rerank", coRerankRequest{
		Model:     req.RoutingID,
		Query:     req.Query,
		Documents: req.Documents,
		TopN:      req.TopN,
	})
	if err != nil {
		return RerankResponse{}, err
	}

	var parsed coRerankResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return RerankResponse{}, fmt.Errorf("providers/cohere: decode response: %w", err)
	}

	out := RerankResponse{Usage: Usage{Searches: parsed.Meta.BilledUnits.SearchUnits}}
	for _, r := range parsed.Results {
		out.Results = append(out.Results, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	return out, nil
}

var _ EmbedAdapter = (*CohereAdapter)(nil)
var _ RerankAdapter = (*CohereAdapter)(nil)
