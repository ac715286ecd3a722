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

// Package executor walks a table's column DAG for one row, running each
// layer's columns concurrently and fanning the results out as an ordered
// event stream: a producer of {row_id, column_id, kind, payload}
// messages fanned in through a bounded channel.
package executor

import (
	"context"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

// RowState is a row's position in the PENDING → RUNNING → DONE|FAILED
// state machine.
type RowState string

const (
	RowPending RowState = "pending"
	RowRunning RowState = "running"
	RowDone    RowState = "done"
	RowFailed  RowState = "failed"
)

// EventKind distinguishes the three message kinds the executor emits
// per column.
type EventKind string

const (
	EventReferences EventKind = "references"
	EventChunk      EventKind = "chunk"
	EventUsage      EventKind = "usage"
)

// Event is one message in the unordered (row_id, column_id, chunk)
// stream the SSE multiplexer consumes. Within a single column's events,
// References (if any) precedes every Chunk, and the final event is
// always Usage.
type Event struct {
	RowID    string
	ColumnID string
	Kind     EventKind
	Text     string
	Error    error
	References any
	Usage    providers.Usage
}

// RegenStrategy selects which generated columns a regenerate call
// re-executes, relative to output_column_id.
type RegenStrategy string

const (
	RegenAll      RegenStrategy = "run_all"
	RegenBefore   RegenStrategy = "run_before"
	RegenSelected RegenStrategy = "run_selected"
	RegenAfter    RegenStrategy = "run_after"
)

// RunRequest carries everything a runner needs to produce one cell's
// value, independent of the caller's storage or DAG representation.
type RunRequest struct {
	OrgID     string
	TableID   string
	RowID     string
	ColumnID  string
	Cells     map[string]any // interpolation inputs: upstream cell values by column ID
}

// LLMRunner executes one LLM-generated column, streaming chunks and a
// references event (if RAG was used) through emit before returning the
// final text and usage.
type LLMRunner interface {
	RunLLM(ctx context.Context, req RunRequest, emit func(Event)) (text string, usage providers.Usage, err error)
}

// EmbedRunner executes one embedding-generated column.
type EmbedRunner interface {
	RunEmbed(ctx context.Context, req RunRequest) (vector []float32, usage providers.Usage, err error)
}

// CodeRunner executes one code-generated column. The result is already
// coerced to the target dtype (string, or a file URI for image output).
type CodeRunner interface {
	RunCode(ctx context.Context, req RunRequest) (result any, err error)
}
