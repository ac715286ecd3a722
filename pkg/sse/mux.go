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

// Package sse implements C10: fanning the Row Executor's unordered
// (row_id, column_id, chunk) event stream out as framed
// "data: {json}\n\n" Server-Sent Events, terminated by "data: [DONE]\n\n".
// The framing is the mirror image of pkg/providers' SSE *parsing* loop
// (consumeOpenAISSE): same "data: " prefix, same blank-line terminator.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/executor"
)

// CellCompletionChunk is the wire shape for a references or content/usage
// event belonging to one (row_id, output_column_name) stream.
type CellCompletionChunk struct {
	Object     string           `json:"object"`
	RowID      string           `json:"row_id"`
	ColumnName string           `json:"output_column_name"`
	Content    string           `json:"content,omitempty"`
	References any              `json:"references,omitempty"`
	Usage      *UsagePayload    `json:"usage,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// UsagePayload is the usage block attached to a column's closing chunk.
type UsagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

const (
	objectChunk      = "gen_table.completion.chunk"
	objectReferences = "gen_table.references"
	doneFrame        = "data: [DONE]\n\n"
)

// Mux drains a channel of executor.Event and writes framed SSE to w. It
// stops (without writing [DONE] early) when ctx is cancelled, leaving
// that to the caller once every row executor it's multiplexing has
// actually finished — a disconnecting client cancels ctx, which in turn
// is the shared cancellation signal every row executor also observes.
type Mux struct {
	w io.Writer
}

// New wraps w, the underlying HTTP response writer (or any io.Writer in
// tests).
func New(w io.Writer) *Mux {
	return &Mux{w: w}
}

// Run consumes events until in is closed or ctx is cancelled, writing one
// SSE frame per event, and finally the terminal [DONE] frame if events
// drained naturally (in closed) rather than via cancellation.
func (m *Mux) Run(ctx context.Context, in <-chan executor.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return m.writeDone()
			}
			if err := m.writeEvent(ev); err != nil {
				return err
			}
		}
	}
}

func (m *Mux) writeEvent(ev executor.Event) error {
	chunk := CellCompletionChunk{
		Object:     objectChunk,
		RowID:      ev.RowID,
		ColumnName: ev.ColumnID,
	}
	switch ev.Kind {
	case executor.EventReferences:
		chunk.Object = objectReferences
		chunk.References = ev.References
	case executor.EventChunk:
		chunk.Content = ev.Text
	case executor.EventUsage:
		if ev.Error != nil {
			chunk.Content = fmt.Sprintf("[ERROR] %s", ev.Error.Error())
		}
		chunk.Usage = &UsagePayload{
			PromptTokens:     ev.Usage.PromptTokens,
			CompletionTokens: ev.Usage.CompletionTokens,
			TotalTokens:      ev.Usage.TotalTokens,
		}
	}

	payload, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(m.w, "data: %s\n\n", payload)
	return err
}

func (m *Mux) writeDone() error {
	_, err := io.WriteString(m.w, doneFrame)
	return err
}
