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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicAdapter_Chat_AggregatesDeltasAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersionValue, r.Header.Get("anthropic-version"))
		_, _ = w.Write([]byte("data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":10}}}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":4}}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"message_stop\"}\n\n"))
	}))
	defer srv.Close()

	adapter := NewAnthropicAdapter("sk-ant-test", srv.Client())
	resp, err := adapter.Chat(context.Background(), srv.URL, ChatRequest{
		RoutingID: "claude-opus-4",
		Messages: []Message{
			{Role: RoleSystem, Content: []ContentPart{{Type: ContentText, Text: "be terse"}}},
			{Role: RoleUser, Content: []ContentPart{{Type: ContentText, Text: "hi"}}},
		},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Message.Text())
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestSplitSystem_PullsSystemMessagesOut(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: []ContentPart{{Type: ContentText, Text: "a"}}},
		{Role: RoleSystem, Content: []ContentPart{{Type: ContentText, Text: "b"}}},
		{Role: RoleUser, Content: []ContentPart{{Type: ContentText, Text: "q"}}},
	})
	assert.Equal(t, "a\nb", system)
	require.Len(t, rest, 1)
	assert.Equal(t, "user", rest[0].Role)
}
