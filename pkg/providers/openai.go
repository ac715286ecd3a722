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

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIAdapter implements ChatAdapter and EmbedAdapter for OpenAI's wire
// format: a bufio.Scanner over an SSE body, "data: "/"[DONE]" framing,
// and typed request/response structs.
type OpenAIAdapter struct {
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIAdapter constructs an OpenAIAdapter.
func NewOpenAIAdapter(apiKey string, httpClient *http.Client) *OpenAIAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIAdapter{apiKey: apiKey, httpClient: httpClient}
}

// Kind implements Adapter.
func (a *OpenAIAdapter) Kind() Kind { return KindOpenAI }

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaChatRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Temperature float64     `json:"temperature,omitempty"`
	TopP        float64     `json:"top_p,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Stop        []string    `json:"stop,omitempty"`
	Stream      bool        `json:"stream"`
}

type oaDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type oaChunk struct {
	Choices []struct {
		Delta        oaDelta `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *oaUsage `json:"usage,omitempty"`
}

type oaUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func toOAMessages(msgs []Message) []oaMessage {
	out := make([]oaMessage, len(msgs))
	for i, m := range msgs {
		out[i] = oaMessage{Role: string(m.Role), Content: m.Text()}
	}
	return out
}

func mapFinishReason(raw string) FinishReason {
	switch raw {
	case "length":
		return FinishLength
	case "tool_calls":
		return FinishToolCalls
	case "content_filter":
		return FinishStop
	default:
		return FinishStop
	}
}

// Chat implements ChatAdapter.
func (a *OpenAIAdapter) Chat(ctx context.Context, apiBase string, req ChatRequest, onChunk StreamHandler) (ChatResponse, error) {
	if apiBase == "" {
		apiBase = defaultOpenAIBase
	}
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
		return ChatResponse{}, fmt.Errorf("providers/openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
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

func consumeOpenAISSE(ctx context.Context, body io.Reader, onChunk StreamHandler) (ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	var finish FinishReason = FinishStop
	var usage Usage

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk oaChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				sb.WriteString(choice.Delta.Content)
				if onChunk != nil {
					if err := onChunk(ctx, ChatChunk{Role: RoleAssistant, ContentDelta: choice.Delta.Content}); err != nil {
						return ChatResponse{}, err
					}
				}
			}
			if choice.FinishReason != nil {
				finish = mapFinishReason(*choice.FinishReason)
			}
		}
		if chunk.Usage != nil {
			usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
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

type oaEmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type oaEmbedResponse struct {
	Data []struct {
		Index     int    `json:"index"`
		Embedding any    `json:"embedding"`
	} `json:"data"`
	Usage oaUsage `json:"usage"`
}

// Embed implements EmbedAdapter.
func (a *OpenAIAdapter) Embed(ctx context.Context, apiBase string, req EmbeddingRequest) (EmbeddingResponse, error) {
	if apiBase == "" {
		apiBase = defaultOpenAIBase
	}
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
		return EmbeddingResponse{}, fmt.Errorf("providers/openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("providers/openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
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
		return EmbeddingResponse{}, fmt.Errorf("providers/openai: decode response: %w", err)
	}

	out := EmbeddingResponse{
		Usage: Usage{PromptTokens: parsed.Usage.PromptTokens, TotalTokens: parsed.Usage.TotalTokens},
	}
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

var _ ChatAdapter = (*OpenAIAdapter)(nil)
var _ EmbedAdapter = (*OpenAIAdapter)(nil)
