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

// Package types holds the Generative Table data model shared by the
// planner, executor, and table service: tables, column schemas, the
// gen_config tagged union, and rows.
package types

import "time"

// TableType distinguishes the three Generative Table subtypes, which
// differ in injected columns and semantics.
type TableType string

const (
	TableAction    TableType = "action"
	TableKnowledge TableType = "knowledge"
	TableChat      TableType = "chat"
)

// DType is a column's value type.
type DType string

const (
	DTypeInt      DType = "int"
	DTypeFloat    DType = "float"
	DTypeBool     DType = "bool"
	DTypeStr      DType = "str"
	DTypeImage    DType = "image"
	DTypeAudio    DType = "audio"
	DTypeDocument DType = "document"
	DTypeDateTime DType = "date-time"
	DTypeJSON     DType = "json"
)

// IsMultimodal reports whether values of this dtype are file-backed
// (image/audio/document), making them eligible for content-part splitting
// in the template interpolator.
func (d DType) IsMultimodal() bool {
	return d == DTypeImage || d == DTypeAudio || d == DTypeDocument
}

// Reserved column IDs injected by the system on every table, plus the
// additional ones injected per table type. A user-supplied column ID may
// not equal ColID or ColUpdatedAt (case-insensitive); the per-type names
// are added by the system.
const (
	ColID          = "ID"
	ColUpdatedAt   = "Updated at"
	ColTitle       = "Title"
	ColText        = "Text"
	ColFileID      = "File ID"
	ColPage        = "Page"
	ColTitleEmbed  = "Title Embed"
	ColTextEmbed   = "Text Embed"
	ColUser        = "User"
	ColAI          = "AI"
)

// InjectedColumns returns the reserved column IDs a table of kind t
// carries in addition to ID/Updated at.
func InjectedColumns(t TableType) []string {
	switch t {
	case TableKnowledge:
		return []string{ColTitle, ColText, ColFileID, ColPage, ColTitleEmbed, ColTextEmbed}
	case TableChat:
		return []string{ColUser, ColAI}
	default:
		return nil
	}
}

// GenConfigKind tags the discriminated gen_config union.
type GenConfigKind string

const (
	GenConfigNone  GenConfigKind = ""
	GenConfigLLM   GenConfigKind = "llm"
	GenConfigEmbed GenConfigKind = "embed"
	GenConfigCode  GenConfigKind = "code"
)

// GenConfig is the tagged union {LLMGenConfig | EmbedGenConfig | CodeGenConfig | null}.
// Exactly one of LLM/Embed/Code is populated, matching Kind.
type GenConfig struct {
	Kind  GenConfigKind  `json:"kind"`
	LLM   *LLMGenConfig  `json:"llm,omitempty"`
	Embed *EmbedGenConfig `json:"embed,omitempty"`
	Code  *CodeGenConfig `json:"code,omitempty"`
}

// IsGenerated reports whether the column is computed rather than
// user-supplied input.
func (g *GenConfig) IsGenerated() bool {
	return g != nil && g.Kind != GenConfigNone
}

// LLMGenConfig configures an LLM-generated column.
type LLMGenConfig struct {
	Model         string         `json:"model"`
	SystemPrompt  string         `json:"system_prompt"`
	Prompt        string         `json:"prompt"`
	Temperature   float64        `json:"temperature"`
	TopP          float64        `json:"top_p"`
	MaxTokens     int            `json:"max_tokens"`
	Stop          []string       `json:"stop,omitempty"`
	Tools         []string       `json:"tools,omitempty"`
	MultiTurn     bool           `json:"multi_turn,omitempty"`
	RAGParams     *RAGParams     `json:"rag_params,omitempty"`
}

// RAGParams mirrors pkg/rag.Params at the schema level; the table
// service translates between the two at execution time.
type RAGParams struct {
	TableID             string `json:"table_id"`
	SearchQuery         string `json:"search_query,omitempty"`
	K                   int    `json:"k"`
	RerankingModel      string `json:"reranking_model,omitempty"`
	ConcatRerankerInput bool   `json:"concat_reranker_input,omitempty"`
	InlineCitations     bool   `json:"inline_citations,omitempty"`
}

// EmbedGenConfig configures an embedding-generated column.
type EmbedGenConfig struct {
	EmbeddingModel string `json:"embedding_model"`
	SourceColumn   string `json:"source_column"`
}

// CodeGenConfig configures a code-execution-generated column. The
// source column holds code whose execution result becomes this
// column's value; dtype determines how the result is coerced.
type CodeGenConfig struct {
	SourceColumn string `json:"source_column"`
}

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	ID        string     `json:"id"`
	DType     DType      `json:"dtype"`
	GenConfig *GenConfig `json:"gen_config,omitempty"`
}

// IsInfo reports whether the column is a system-managed info column
// (never a valid template/DAG reference).
func (c ColumnSchema) IsInfo() bool {
	return c.ID == ColID || c.ID == ColUpdatedAt
}

// IsVector reports whether the column holds an embedding vector (never
// a valid template/DAG reference, excluded from default prompts).
func (c ColumnSchema) IsVector() bool {
	return c.ID == ColTitleEmbed || c.ID == ColTextEmbed
}

// Table is a Generative Table's schema.
type Table struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Type      TableType      `json:"type"`
	ParentID  string         `json:"parent_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Columns   []ColumnSchema `json:"cols"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	NumRows   int            `json:"num_rows,omitempty"`
}

// Column looks up a column by ID, returning ok=false if absent.
func (t *Table) Column(id string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// IndexOf returns the column's position in table order, or -1 if absent.
func (t *Table) IndexOf(id string) int {
	for i, c := range t.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Cell is one row's value for a non-info column. Original preserves a
// user-entered prompt that was interpolated away; References holds the
// RAG chunks consulted to produce Value, when applicable.
type Cell struct {
	Value      any    `json:"value"`
	Original   string `json:"original,omitempty"`
	References any    `json:"references,omitempty"`
}

// Row is one Generative Table row: reserved ID/UpdatedAt fields plus a
// Cells map keyed by column ID.
type Row struct {
	ID        string           `json:"ID"`
	UpdatedAt time.Time        `json:"Updated at"`
	Cells     map[string]Cell `json:"-"`
}
