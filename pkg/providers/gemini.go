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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAdapter implements ChatAdapter and EmbedAdapter for Google's
// Generative Language API. Auth rides on a query-string API key rather than
// a header, and each streamed SSE event carries a whole
// GenerateContentResponse object rather than an OpenAI-style delta, so
// this gets its own request/response handling.
type GeminiAdapter struct {
	apiKey     string
	httpClient *http.Client
}

// NewGeminiAdapter constructs a GeminiAdapter.
func NewGeminiAdapter(apiKey string, httpClient *http.Client) *GeminiAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiAdapter{apiKey: apiKey, httpClient: httpClient}
}

// Kind implements Adapter.
func (g *GeminiAdapter) Kind() Kind { return KindGemini }

type gePart struct {
	Text string `json:"text,omitempty"`
}

type geContent struct {
	Role  string   `json:"role"`
	Parts []gePart `json:"parts"`
}

type geGenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geRequest struct {
	SystemInstruction *geContent         `json:"systemInstruction,omitempty"`
	Contents          []geContent        `json:"contents"`
	GenerationConfig  geGenerationConfig `json:"generationConfig,omitempty"`
}

type geCandidate struct {
	Content      geContent `json:"content"`
	FinishReason string    `json:"finishReason"`
}

type geUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geResponse struct {
	Candidates    []geCandidate   `json:"candidates"`
	UsageMetadata geUsageMetadata `json:"usageMetadata"`
}

func toGeminiRole(r Role) string {
	if r == RoleAssistant {
		return "model"
	}
	return "user"
}

func splitGeminiSystem(msgs []Message) (system *geContent, rest []geContent) {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = &geContent{Parts: []gePart{{Text: m.Text()}}}
			continue
		}
		rest = append(rest, geContent{Role: toGeminiRole(m.Role), Parts: []gePart{{Text: m.Text()}}})
	}
	return system, rest
}

func mapGeminiFinishReason(raw string) FinishReason {
	switch raw {
	case "MAX_TOKENS":
		return FinishLength
	case "STOP", "":
		return FinishStop
	default:
		return FinishStop
	}
}

// Chat implements ChatAdapter. It calls Gemini's streamGenerateContent
// endpoint with alt=sse and scans the "data: " lines of the response.
func (g *GeminiAdapter) Chat(ctx context.Context, apiBase string, req ChatRequest, onChunk StreamHandler) (ChatResponse, error) {
	if apiBase == "" {
		apiBase = defaultGeminiBase
	}
	system, contents := splitGeminiSystem(req.Messages)
	body, err := json.Marshal(geRequest{
		SystemInstruction: system,
		Contents:          contents,
		GenerationConfig: geGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		},
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", apiBase, req.RoutingID, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return ChatResponse{}, MapHTTPError(resp.StatusCode, string(raw))
	}

	return consumeGeminiSSE(ctx, resp.Body, onChunk)
}

func consumeGeminiSSE(ctx context.Context, body io.Reader, onChunk StreamHandler) (ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	finish := FinishStop
	var usage Usage

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var chunk geResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, c := range chunk.Candidates {
			for _, p := range c.Content.Parts {
				if p.Text == "" {
					continue
				}
				sb.WriteString(p.Text)
				if onChunk != nil {
					if err := onChunk(ctx, ChatChunk{Role: RoleAssistant, ContentDelta: p.Text}); err != nil {
						return ChatResponse{}, err
					}
				}
			}
			if c.FinishReason != "" {
				finish = mapGeminiFinishReason(c.FinishReason)
			}
		}
		if chunk.UsageMetadata.TotalTokenCount > 0 {
			usage = Usage{
				PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
				CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ChatResponse{}, MapTransportError(err)
	}

	if onChunk != nil {
		if err := onChunk(ctx, ChatChunk{FinishReason: finish, Usage: &usage}); err != nil {
			return ChatResponse{}, err
		}
	}

	return ChatResponse{
		Message:      Message{Role: RoleAssistant, Content: []ContentPart{{Type: ContentText, Text: sb.String()}}},
		FinishReason: finish,
		Usage:        usage,
	}, nil
}

type geEmbedRequest struct {
	Model                string   `json:"model"`
	Content              geContent `json:"content"`
	OutputDimensionality int      `json:"outputDimensionality,omitempty"`
}

type geBatchEmbedRequest struct {
	Requests []geEmbedRequest `json:"requests"`
}

type geEmbedding struct {
	Values []float32 `json:"values"`
}

type geBatchEmbedResponse struct {
	Embeddings []geEmbedding `json:"embeddings"`
}

// Embed implements EmbedAdapter via Gemini's batchEmbedContents endpoint.
func (g *GeminiAdapter) Embed(ctx context.Context, apiBase string, req EmbeddingRequest) (EmbeddingResponse, error) {
	if apiBase == "" {
		apiBase = defaultGeminiBase
	}
	modelPath := "models/" + req.RoutingID
	reqs := make([]geEmbedRequest, len(req.Input))
	for i, text := range req.Input {
		reqs[i] = geEmbedRequest{
			Model:                modelPath,
			Content:              geContent{Parts: []gePart{{Text: text}}},
			OutputDimensionality: req.Dimensions,
		}
	}
	body, err := json.Marshal(geBatchEmbedRequest{Requests: reqs})
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", apiBase, modelPath, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return EmbeddingResponse{}, MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return EmbeddingResponse{}, MapHTTPError(resp.StatusCode, string(raw))
	}

	var parsed geBatchEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/gemini: decode response: %w", err)
	}

	out := EmbeddingResponse{}
	for i, e := range parsed.Embeddings {
		out.Data = append(out.Data, Embedding{Index: i, Vector: e.Values})
	}
	return out, nil
}

var _ ChatAdapter = (*GeminiAdapter)(nil)
var _ EmbedAdapter = (*GeminiAdapter)(nil)
