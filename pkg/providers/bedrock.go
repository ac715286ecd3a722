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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
)

// BedrockAdapter implements ChatAdapter and EmbedAdapter for AWS Bedrock's
// InvokeModel runtime, targeting Anthropic-family models hosted on
// Bedrock. Requests are SigV4-signed rather than bearer-token authenticated,
// which is why this adapter carries its own aws-sdk-go-v2 credential chain
// instead of a flat apiKey like the other vendors.
type BedrockAdapter struct {
	region     string
	creds      awssdk.CredentialsProvider
	httpClient *http.Client
}

// NewBedrockAdapter constructs a BedrockAdapter, resolving credentials from
// the standard AWS chain (env vars, shared config, instance role) for the
// given region.
func NewBedrockAdapter(ctx context.Context, region string, httpClient *http.Client) (*BedrockAdapter, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("providers/bedrock: load aws config: %w", err)
	}
	return &BedrockAdapter{region: region, creds: cfg.Credentials, httpClient: httpClient}, nil
}

// Kind implements Adapter.
func (b *BedrockAdapter) Kind() Kind { return KindBedrock }

func (b *BedrockAdapter) endpoint(routingID, action string) string {
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/%s", b.region, routingID, action)
}

func (b *BedrockAdapter) signAndDo(ctx context.Context, url string, body []byte, contentType string) (*http.Response, error) {
	creds, err := b.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("providers/bedrock: retrieve credentials: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("providers/bedrock: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentType)

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, httpReq, payloadHash, "bedrock", b.region, time.Now()); err != nil {
		return nil, fmt.Errorf("providers/bedrock: sign request: %w", err)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapTransportError(err)
	}
	return resp, nil
}

// brMessage mirrors Anthropic's Messages-API shape, which is what Bedrock
// expects for anthropic.* model IDs via the bedrock-2023-05-31 schema.
type brMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type brInvokeRequest struct {
	AnthropicVersion string      `json:"anthropic_version"`
	System           string      `json:"system,omitempty"`
	Messages         []brMessage `json:"messages"`
	Temperature      float64     `json:"temperature,omitempty"`
	TopP             float64     `json:"top_p,omitempty"`
	MaxTokens        int         `json:"max_tokens"`
	StopSequences    []string    `json:"stop_sequences,omitempty"`
}

// Chat implements ChatAdapter via invoke-with-response-stream, which returns
// a sequence of newline-delimited JSON events much like Anthropic's own
// streaming format since Bedrock passes the Anthropic payload through.
func (b *BedrockAdapter) Chat(ctx context.Context, apiBase string, req ChatRequest, onChunk StreamHandler) (ChatResponse, error) {
	system, rest := splitSystem(req.Messages)
	msgs := make([]brMessage, len(rest))
	for i, m := range rest {
		msgs[i] = brMessage{Role: m.Role, Content: m.Content}
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body, err := json.Marshal(brInvokeRequest{
		AnthropicVersion: anthropicVersionValue,
		System:           system,
		Messages:         msgs,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxTokens:        maxTokens,
		StopSequences:    req.Stop,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("providers/bedrock: marshal request: %w", err)
	}

	url := b.endpoint(req.RoutingID, "invoke-with-response-stream")
	resp, err := b.signAndDo(ctx, url, body, "application/json")
	if err != nil {
		return ChatResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return ChatResponse{}, MapHTTPError(resp.StatusCode, string(raw))
	}

	return consumeBedrockEventStream(ctx, resp.Body, onChunk)
}

// consumeBedrockEventStream decodes Bedrock's chunked response body, which
// wraps each Anthropic streaming event as a base64-free JSON line (the AWS
// event-stream framing is unwrapped by the runtime's HTTP/2 transport for
// this content type, leaving one JSON object per line).
func consumeBedrockEventStream(ctx context.Context, body io.Reader, onChunk StreamHandler) (ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	finish := FinishStop
	var usage Usage

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt anStreamEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
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

type brEmbedRequest struct {
	InputText string `json:"inputText"`
}

type brEmbedResponse struct {
	Embedding     []float32 `json:"embedding"`
	InputTextTokenCount int `json:"inputTextTokenCount"`
}

// Embed implements EmbedAdapter against Amazon Titan embedding models,
// which only accept one input string per invocation.
func (b *BedrockAdapter) Embed(ctx context.Context, apiBase string, req EmbeddingRequest) (EmbeddingResponse, error) {
	out := EmbeddingResponse{}
	for i, text := range req.Input {
		body, err := json.Marshal(brEmbedRequest{InputText: text})
		if err != nil {
			return EmbeddingResponse{}, fmt.Errorf("providers/bedrock: marshal request: %w", err)
		}
		url := b.endpoint(req.RoutingID, "invoke")
		resp, err := b.signAndDo(ctx, url, body, "application/json")
		if err != nil {
			return EmbeddingResponse{}, err
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return EmbeddingResponse{}, MapHTTPError(resp.StatusCode, string(raw))
		}
		var parsed brEmbedResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return EmbeddingResponse{}, fmt.Errorf("providers/bedrock: decode response: %w", err)
		}
		out.Data = append(out.Data, Embedding{Index: i, Vector: parsed.Embedding})
		out.Usage.PromptTokens += parsed.InputTextTokenCount
	}
	out.Usage.TotalTokens = out.Usage.PromptTokens
	return out, nil
}

var _ ChatAdapter = (*BedrockAdapter)(nil)
var _ EmbedAdapter = (*BedrockAdapter)(nil)
