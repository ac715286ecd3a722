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

// compatAdapter adapts any OpenAI-wire-compatible endpoint (Azure OpenAI,
// vLLM, Ollama, Infinity, or a fully custom deployment) by reusing
// OpenAIAdapter's request/response shapes but substituting the auth
// header and base URL, treating "auto"/local providers as variations on
// one underlying shape rather than bespoke clients.
type compatAdapter struct {
	kind       Kind
	apiKey     string
	authHeader string // "Authorization" or a vendor-specific header name
	authScheme string // "Bearer " or "" for raw headers like Azure's api-key
	httpClient *http.Client
}

func newCompatAdapter(kind Kind, apiKey, authHeader, authScheme string, httpClient *http.Client) *compatAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &compatAdapter{kind: kind, apiKey: apiKey, authHeader: authHeader, authScheme: authScheme, httpClient: httpClient}
}

func (c *compatAdapter) Kind() Kind { return c.kind }

// NewAzureAdapter builds an adapter for Azure OpenAI deployments, which
// authenticate with an "api-key" header instead of "Authorization: Bearer".
func NewAzureAdapter(apiKey string, httpClient *http.Client) *compatAdapter {
	return newCompatAdapter(KindAzure, apiKey, "api-key", "", httpClient)
}

// NewVLLMAdapter builds an adapter for a self-hosted vLLM OpenAI-compatible
// server. vLLM accepts an empty API key when launched without --api-key.
func NewVLLMAdapter(apiKey string, httpClient *http.Client) *compatAdapter {
	return newCompatAdapter(KindVLLM, apiKey, "Authorization", "Bearer ", httpClient)
}

// NewOllamaAdapter builds an adapter for a local Ollama server's OpenAI
// compatibility endpoint (/v1/chat/completions, /v1/embeddings).
func NewOllamaAdapter(httpClient *http.Client) *compatAdapter {
	return newCompatAdapter(KindOllama, "ollama", "Authorization", "Bearer ", httpClient)
}

// NewInfinityAdapter builds an adapter for an Infinity embedding/rerank
// server's OpenAI-compatible endpoints.
func NewInfinityAdapter(apiKey string, httpClient *http.Client) *compatAdapter {
	return newCompatAdapter(KindInfinity, apiKey, "Authorization", "Bearer ", httpClient)
}

// NewCustomAdapter builds an adapter for an arbitrary OpenAI-compatible
// deployment, selected by ModelConfig.type == "custom" / api_base override.
func NewCustomAdapter(apiKey string, httpClient *http.Client) *compatAdapter {
	return newCompatAdapter(KindCustom, apiKey, "Authorization", "Bearer ", httpClient)
}

func (c *compatAdapter) setAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	req.Header.Set(c.authHeader, c.authScheme+c.apiKey)
}

var (
	_ ChatAdapter  = (*compatAdapter)(nil)
	_ EmbedAdapter = (*compatAdapter)(nil)
)

// Chat reuses OpenAIAdapter's SSE consumption loop with this adapter's
// auth header swapped in.
func (c *compatAdapter) Chat(ctx context.Context, apiBase string, req ChatRequest, onChunk StreamHandler) (ChatResponse, error) {
	body, err := json.Marshal(oaChatRequest{
		Model:       req.RoutingID,
		Messages:    toOAMessages(req.Messages),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Stream:      true,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/%s: marshal request: %w", c.kind, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/%s: build request: %w", c.kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return ChatResponse{}, MapHTTPError(resp.StatusCode, string(raw))
	}

	return consumeOpenAISSE(ctx, resp.Body, onChunk)
}

// Embed reuses OpenAIAdapter's embedding request/response shape.
func (c *compatAdapter) Embed(ctx context.Context, apiBase string, req EmbeddingRequest) (EmbeddingResponse, error) {
	encoding := string(req.EncodingFormat)
	if encoding == "" {
		encoding = string(EncodingFloat)
	}
	body, err := json.Marshal(oaEmbedRequest{
		Model:          req.RoutingID,
		Input:          req.Input,
		Dimensions:     req.Dimensions,
		EncodingFormat: encoding,
	})
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/%s: marshal request: %w", c.kind, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/%s: build request: %w", c.kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return EmbeddingResponse{}, MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return EmbeddingResponse{}, MapHTTPError(resp.StatusCode, string(raw))
	}

	var parsed oaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/%s: decode response: %w", c.kind, err)
	}

	out := EmbeddingResponse{Usage: Usage{PromptTokens: parsed.Usage.PromptTokens, TotalTokens: parsed.Usage.TotalTokens}}
	for _, d := range parsed.Data {
		e := Embedding{Index: d.Index}
		switch v := d.Embedding.(type) {
		case string:
			e.Base64 = v
		case []any:
			e.Vector = make([]float32, len(v))
			for i, f := range v {
				if fv, ok := f.(float64); ok {
					e.Vector[i] = float32(fv)
				}
			}
		}
		out.Data = append(out.Data, e)
	}
	return out, nil
}
