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

// Package runner wires the row executor's LLMRunner, EmbedRunner, and
// CodeRunner interfaces to the rest of the column-generation stack:
// pkg/router for provider calls, pkg/rag for retrieval, and pkg/template
// for prompt interpolation. executor.RunRequest carries only the column
// IDs and upstream cell values it needs to stay storage-agnostic, so a
// Runner looks up gen_config and column dtypes through the narrow
// TableLookup interface below rather than the table service's
// project-scoped store.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/executor"
	gtypes "github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/modelregistry"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/rag"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/router"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/template"
)

// TableLookup resolves a table's schema by org and table ID. Unlike
// gentable/service.TableStore, it is not project-scoped: a runner only
// ever sees the org and table IDs executor.RunRequest carries.
type TableLookup interface {
	Table(ctx context.Context, orgID, tableID string) (*gtypes.Table, error)
}

// ChatCaller is the subset of *router.Router a Runner depends on.
type ChatCaller interface {
	Chat(ctx context.Context, orgID, modelID string, req providers.ChatRequest, onChunk providers.StreamHandler) (providers.ChatResponse, error)
	Embed(ctx context.Context, orgID, modelID string, req providers.EmbeddingRequest) (providers.EmbeddingResponse, error)
	Rerank(ctx context.Context, orgID, modelID string, req providers.RerankRequest) (providers.RerankResponse, error)
}

var _ ChatCaller = (*router.Router)(nil)

// Runner implements executor.LLMRunner, executor.EmbedRunner, and
// executor.CodeRunner on top of a Router and an optional Retriever.
type Runner struct {
	router    ChatCaller
	retriever *rag.Retriever
	tables    TableLookup

	registry modelregistry.Registry
	balances billing.BalanceStore
	queue    *billing.Queue
}

// New constructs a Runner. retriever may be nil; a gen_config with
// rag_params set then surfaces a run error instead of silently skipping
// retrieval. registry, balances, and queue are the billing collaborators a
// run needs to record usage against; any of them may be nil, in which
// case RunLLM/RunEmbed skip billing entirely rather than failing the run.
func New(rtr ChatCaller, retriever *rag.Retriever, tables TableLookup, registry modelregistry.Registry, balances billing.BalanceStore, queue *billing.Queue) *Runner {
	return &Runner{router: rtr, retriever: retriever, tables: tables, registry: registry, balances: balances, queue: queue}
}

// recordUsage looks up model's ModelConfig and, if a billing stack is
// configured, records usage against a fresh per-request Manager and
// commits it immediately, once per column call, rather than batching
// across the row. Lookup or commit failures do not undo the provider
// call: RunLLM attaches the error to its closing usage event, and
// RunEmbed discards it.
func (rn *Runner) recordUsage(ctx context.Context, req executor.RunRequest, table *gtypes.Table, modelID string, record func(*billing.Manager, modelregistry.ModelConfig)) error {
	if rn.registry == nil || rn.balances == nil || rn.queue == nil {
		return nil
	}
	model, err := rn.registry.Get(ctx, req.OrgID, modelID)
	if err != nil {
		return fmt.Errorf("runner: load model %q for billing: %w", modelID, err)
	}
	mgr := billing.New(req.OrgID, table.ProjectID, table.ID)
	record(mgr, model)
	return mgr.Commit(ctx, rn.queue, rn.balances)
}

var (
	_ executor.LLMRunner   = (*Runner)(nil)
	_ executor.EmbedRunner = (*Runner)(nil)
	_ executor.CodeRunner  = (*Runner)(nil)
)

// column looks up req.ColumnID's schema and its gen_config, failing if
// either the table, the column, or a gen_config of the expected kind is
// missing.
func (rn *Runner) column(ctx context.Context, req executor.RunRequest, kind gtypes.GenConfigKind) (*gtypes.Table, gtypes.ColumnSchema, error) {
	table, err := rn.tables.Table(ctx, req.OrgID, req.TableID)
	if err != nil {
		return nil, gtypes.ColumnSchema{}, fmt.Errorf("runner: load table %q: %w", req.TableID, err)
	}
	col, ok := table.Column(req.ColumnID)
	if !ok {
		return nil, gtypes.ColumnSchema{}, fmt.Errorf("runner: column %q not found on table %q", req.ColumnID, req.TableID)
	}
	if col.GenConfig == nil || col.GenConfig.Kind != kind {
		return nil, gtypes.ColumnSchema{}, fmt.Errorf("runner: column %q has no %s gen_config", req.ColumnID, kind)
	}
	return table, col, nil
}

// cellsFor builds the template.Cell map an interpolation needs from a
// run request's upstream values, tagging each by its owning column's
// dtype so multimodal references split into distinct content parts.
func cellsFor(table *gtypes.Table, cells map[string]any) map[string]template.Cell {
	out := make(map[string]template.Cell, len(cells))
	for _, col := range table.Columns {
		v, ok := cells[col.ID]
		if !ok || v == nil {
			out[col.ID] = template.Cell{DType: templateDType(col.DType), Null: true}
			continue
		}
		text, _ := v.(string)
		c := template.Cell{DType: templateDType(col.DType), Text: text}
		if col.DType.IsMultimodal() {
			c.URI = text
		}
		out[col.ID] = c
	}
	return out
}

func templateDType(d gtypes.DType) template.DType {
	switch d {
	case gtypes.DTypeImage:
		return template.DTypeImage
	case gtypes.DTypeAudio:
		return template.DTypeAudio
	case gtypes.DTypeDocument:
		return template.DTypeDocument
	default:
		return template.DTypeStr
	}
}

// inputRefs lists every column preceding target in the table's own
// column order, for DefaultUserPrompt synthesis.
func inputRefs(table *gtypes.Table, target string) []template.ColumnRef {
	refs := make([]template.ColumnRef, 0, len(table.Columns))
	for _, col := range table.Columns {
		if col.ID == target {
			break
		}
		refs = append(refs, template.ColumnRef{ID: col.ID, IsInfo: col.IsInfo(), IsVector: col.IsVector()})
	}
	return refs
}

// rowText concatenates every str-typed input cell, for query
// synthesis and non-explicit RAG search queries.
func rowText(table *gtypes.Table, cells map[string]any) string {
	var sb strings.Builder
	for _, col := range table.Columns {
		if col.IsInfo() || col.IsVector() || col.DType.IsMultimodal() {
			continue
		}
		if v, ok := cells[col.ID]; ok {
			if s, ok := v.(string); ok && s != "" {
				sb.WriteString(s)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// RunLLM implements executor.LLMRunner.
func (rn *Runner) RunLLM(ctx context.Context, req executor.RunRequest, emit func(executor.Event)) (string, providers.Usage, error) {
	table, col, err := rn.column(ctx, req, gtypes.GenConfigLLM)
	if err != nil {
		return "", providers.Usage{}, err
	}
	cfg := col.GenConfig.LLM

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = template.DefaultSystemPrompt(table.ID, table.Type == gtypes.TableChat)
	}
	userPrompt := cfg.Prompt
	if userPrompt == "" {
		userPrompt = template.DefaultUserPrompt(inputRefs(table, req.ColumnID), req.ColumnID)
	}

	cells := cellsFor(table, req.Cells)
	messages := []providers.Message{
		{Role: providers.RoleSystem, Content: template.Interpolate(systemPrompt, cells)},
	}

	if cfg.RAGParams != nil {
		if rn.retriever == nil {
			return "", providers.Usage{}, fmt.Errorf("runner: column %q requires RAG but no retriever is configured", req.ColumnID)
		}
		params := rag.Params{
			TableID:             cfg.RAGParams.TableID,
			SearchQuery:         cfg.RAGParams.SearchQuery,
			K:                   cfg.RAGParams.K,
			RerankingModel:      cfg.RAGParams.RerankingModel,
			ConcatRerankerInput: cfg.RAGParams.ConcatRerankerInput,
			InlineCitations:     cfg.RAGParams.InlineCitations,
		}
		refs, citation := rn.retriever.Retrieve(ctx, req.OrgID, params, rowText(table, req.Cells))
		if citation != "" {
			messages = append(messages, providers.Message{
				Role:    providers.RoleSystem,
				Content: []providers.ContentPart{{Type: providers.ContentText, Text: citation}},
			})
		}
		emit(executor.Event{RowID: req.RowID, ColumnID: req.ColumnID, Kind: executor.EventReferences, References: refs})
	}

	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: template.Interpolate(userPrompt, cells)})

	chatReq := providers.ChatRequest{
		Messages:    messages,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Stop:        cfg.Stop,
		Stream:      true,
	}

	var text strings.Builder
	onChunk := func(ctx context.Context, chunk providers.ChatChunk) error {
		if chunk.ContentDelta != "" {
			text.WriteString(chunk.ContentDelta)
			emit(executor.Event{RowID: req.RowID, ColumnID: req.ColumnID, Kind: executor.EventChunk, Text: chunk.ContentDelta})
		}
		return nil
	}

	resp, err := rn.router.Chat(ctx, req.OrgID, cfg.Model, chatReq, onChunk)
	if err != nil {
		return "", providers.Usage{}, fmt.Errorf("runner: chat column %q: %w", req.ColumnID, err)
	}

	if err := rn.recordUsage(ctx, req, table, cfg.Model, func(mgr *billing.Manager, model modelregistry.ModelConfig) {
		mgr.RecordLLM(model, resp.Usage, model.OwnedBy == "ellm")
	}); err != nil {
		emit(executor.Event{RowID: req.RowID, ColumnID: req.ColumnID, Kind: executor.EventUsage, Error: err})
	}

	result := resp.Message.Text()
	if result == "" {
		result = text.String()
	}
	emit(executor.Event{RowID: req.RowID, ColumnID: req.ColumnID, Kind: executor.EventUsage, Usage: resp.Usage})
	return result, resp.Usage, nil
}

// RunEmbed implements executor.EmbedRunner.
func (rn *Runner) RunEmbed(ctx context.Context, req executor.RunRequest) ([]float32, providers.Usage, error) {
	table, col, err := rn.column(ctx, req, gtypes.GenConfigEmbed)
	if err != nil {
		return nil, providers.Usage{}, err
	}
	cfg := col.GenConfig.Embed

	source, _ := req.Cells[cfg.SourceColumn].(string)
	resp, err := rn.router.Embed(ctx, req.OrgID, cfg.EmbeddingModel, providers.EmbeddingRequest{
		Input:          []string{source},
		EncodingFormat: providers.EncodingFloat,
	})
	if err != nil {
		return nil, providers.Usage{}, fmt.Errorf("runner: embed column %q: %w", req.ColumnID, err)
	}
	if len(resp.Data) == 0 {
		return nil, providers.Usage{}, fmt.Errorf("runner: embed column %q: empty response", req.ColumnID)
	}

	_ = rn.recordUsage(ctx, req, table, cfg.EmbeddingModel, func(mgr *billing.Manager, model modelregistry.ModelConfig) {
		mgr.RecordEmbedding(model, resp.Usage, model.OwnedBy == "ellm")
	})

	return resp.Data[0].Vector, resp.Usage, nil
}

// RunCode implements executor.CodeRunner. No code-sandbox library is
// wired anywhere in this stack, so RunCode does not interpret the source
// column as executable code: it coerces the source cell's existing value
// to the target column's dtype unchanged. A deployment that needs actual
// code execution replaces this Runner's CodeRunner with one backed by a
// sandboxed interpreter.
func (rn *Runner) RunCode(ctx context.Context, req executor.RunRequest) (any, error) {
	_, col, err := rn.column(ctx, req, gtypes.GenConfigCode)
	if err != nil {
		return nil, err
	}
	cfg := col.GenConfig.Code

	value, ok := req.Cells[cfg.SourceColumn]
	if !ok {
		return nil, fmt.Errorf("runner: code column %q: source column %q not in row", req.ColumnID, cfg.SourceColumn)
	}
	return value, nil
}
