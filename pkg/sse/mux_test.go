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

package sse

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/executor"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

func TestMux_Run_FramesEventsAndTerminatesWithDone(t *testing.T) {
	var buf bytes.Buffer
	in := make(chan executor.Event, 4)
	in <- executor.Event{RowID: "r1", ColumnID: "out_01", Kind: executor.EventReferences, References: []string{"a"}}
	in <- executor.Event{RowID: "r1", ColumnID: "out_01", Kind: executor.EventChunk, Text: "Hel"}
	in <- executor.Event{RowID: "r1", ColumnID: "out_01", Kind: executor.EventChunk, Text: "lo"}
	in <- executor.Event{RowID: "r1", ColumnID: "out_01", Kind: executor.EventUsage, Usage: providers.Usage{TotalTokens: 3}}
	close(in)

	err := New(&buf).Run(context.Background(), in)
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 5, strings.Count(out, "data: ")) // 4 events + [DONE]
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.Contains(t, out, `"object":"gen_table.references"`)
	assert.Contains(t, out, `"content":"Hel"`)
	assert.Contains(t, out, `"total_tokens":3`)
}

func TestMux_Run_CancellationStopsWithoutDoneFrame(t *testing.T) {
	var buf bytes.Buffer
	in := make(chan executor.Event)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(&buf).Run(ctx, in)
	require.Error(t, err)
	assert.NotContains(t, buf.String(), "[DONE]")
}
