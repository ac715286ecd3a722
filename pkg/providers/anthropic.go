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

const (
	defaultAnthropicBase  = "https://api.anthropic.com/v1"
	anthropicVersionValue = "2023-06-01"
)

// AnthropicAdapter implements ChatAdapter for Anthropic's Messages API.
// Anthropic's streaming format (message_start/content_block_delta/
// message_delta/message_stop events, each preceded by an "event:" line) is
// distinct enough from OpenAI's that it gets its own adapter rather than
// riding on compatAdapter.
type AnthropicAdapter struct {
	apiKey     string
	httpClient *http.Client
}

// NewAnthropicAdapter constructs an AnthropicAdapter.
func NewAnthropicAdapter(apiKey string, httpClient *http.Client) *AnthropicAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AnthropicAdapter{apiKey: apiKey, httpClient: httpClient}
}

// Kind implements Adapter.
func (a *AnthropicAdapter) Kind() Kind { return KindAnthropic }

type anMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anRequest struct {
	Model       string      `json:"model"`
	System      string      `json:"system,omitempty"`
	Messages    []anMessage `json:"messages"`
	Temperature float64     `json:"temperature,omitempty"`
	TopP        float64     `json:"top_p,omitempty"`
	MaxTokens   int         `json:"max_tokens"`
	Stop        []string    `json:"stop_sequences,omitempty"`
	Stream      bool        `json:"stream"`
}

type anStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// splitSystem pulls any RoleSystem messages out to Anthropic's top-level
// "system" field, since Anthropic doesn't accept a system role inline.
func splitSystem(msgs []Message) (system string, rest []anMessage) {
	var sb strings.Builder
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(m.Text())
			continue
		}
		rest = append(rest, anMessage{Role: string(m.Role), Content: m.Text()})
	}
	return sb.String(), rest
}

func mapAnthropicStopReason(raw string) FinishReason {
	switch raw {
	case "max_tokens":
		return FinishLength
	case "tool_use":
		return FinishToolCalls
	default:
		return FinishStop
	}
}

// Chat implements ChatAdapter.
func (a *AnthropicAdapter) Chat(ctx context.Context, apiBase string, req ChatRequest, onChunk StreamHandler) (ChatResponse, error) {
	if apiBase == "" {
		apiBase = defaultAnthropicBase
	}
	system, msgs := splitSystem(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body, err := json.Marshal(anRequest{
		Model:       req.RoutingID,
		System:      system,
		Messages:    msgs,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   maxTokens,
		Stop:        req.Stop,
		Stream:      true,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/messages", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersionValue)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return ChatResponse{}, MapHTTPError(resp.StatusCode, string(raw))
	}

	return consumeAnthropicSSE(ctx, resp.Body, onChunk)
}

func consumeAnthropicSSE(ctx context.Context, body io.Reader, onChunk StreamHandler) (ChatResponse, error) {
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

		var evt anStreamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}

		switch evt.Type {
		case "content_block_delta":
			if evt.Delta.Text != "" {
				sb.WriteString(evt.Delta.Text)
				if onChunk != nil {
					if err := onChunk(ctx, ChatChunk{Role: RoleAssistant, ContentDelta: evt.Delta.Text}); err != nil {
						return ChatResponse{}, err
					}
				}
			}
		case "message_delta":
			if evt.Delta.StopReason != "" {
				finish = mapAnthropicStopReason(evt.Delta.StopReason)
			}
			if evt.Usage.OutputTokens > 0 {
				usage.CompletionTokens = evt.Usage.OutputTokens
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		case "message_start":
			usage.PromptTokens = evt.Message.Usage.InputTokens
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

var _ ChatAdapter = (*AnthropicAdapter)(nil)
