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

package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/planner"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

var columnIDPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.?!@#$%^&*_()\- ]*[A-Za-z0-9.?!()\-])?$`)

// Service implements the C9 schema and gen-config operations.
type Service struct {
	tables TableStore
	rows   RowStore
	models ModelExists
}

// New constructs a Service.
func New(tables TableStore, rows RowStore, models ModelExists) *Service {
	return &Service{tables: tables, rows: rows, models: models}
}

// ValidateColumnID checks the column-naming invariant: pattern-matched,
// length-capped, and not a reserved info column name.
func ValidateColumnID(id string) error {
	if len(id) == 0 || len(id) > 100 {
		return jamerrors.New(jamerrors.BadInput, "column id %q must be 1-100 characters", id)
	}
	if !columnIDPattern.MatchString(id) {
		return jamerrors.New(jamerrors.BadInput, "column id %q does not match the allowed pattern", id)
	}
	lower := strings.ToLower(id)
	if lower == strings.ToLower(types.ColID) || lower == strings.ToLower(types.ColUpdatedAt) {
		return jamerrors.New(jamerrors.BadInput, "column id %q is reserved", id)
	}
	return nil
}

// CreateTable validates name/column rules, injects the reserved columns
// for table.Type, validates the resulting DAG, and persists the table.
func (s *Service) CreateTable(ctx context.Context, table *types.Table) error {
	if err := ValidateColumnID(table.ID); err != nil {
		return err
	}
	for _, c := range table.Columns {
		if err := ValidateColumnID(c.ID); err != nil {
			return err
		}
	}

	injected := injectReservedColumns(table)
	table.Columns = injected

	if table.Type == types.TableChat {
		forceMultiTurn(table)
	}

	if _, err := planner.Build(table.Columns); err != nil {
		return err
	}

	now := time.Now()
	table.CreatedAt = now
	table.UpdatedAt = now
	table.Version = 1
	return s.tables.PutTable(ctx, table)
}

// injectReservedColumns prepends ID/Updated at and appends the
// table-type-specific reserved columns (Title/Text/... for Knowledge,
// User/AI for Chat) to the user-provided column list.
func injectReservedColumns(table *types.Table) []types.ColumnSchema {
	cols := []types.ColumnSchema{
		{ID: types.ColID, DType: types.DTypeStr},
		{ID: types.ColUpdatedAt, DType: types.DTypeDateTime},
	}
	cols = append(cols, table.Columns...)
	for _, id := range types.InjectedColumns(table.Type) {
		if _, ok := findColumn(cols, id); !ok {
			cols = append(cols, defaultInjectedColumn(id))
		}
	}
	return cols
}

func defaultInjectedColumn(id string) types.ColumnSchema {
	switch id {
	case types.ColTitleEmbed, types.ColTextEmbed:
		return types.ColumnSchema{ID: id, DType: types.DTypeFloat}
	case types.ColPage:
		return types.ColumnSchema{ID: id, DType: types.DTypeInt}
	case types.ColAI:
		return types.ColumnSchema{ID: id, DType: types.DTypeStr, GenConfig: &types.GenConfig{
			Kind: types.GenConfigLLM,
			LLM:  &types.LLMGenConfig{MultiTurn: true},
		}}
	default:
		return types.ColumnSchema{ID: id, DType: types.DTypeStr}
	}
}

// forceMultiTurn enforces the invariant that a Chat table's AI column
// always carries multi_turn=true, even if the caller supplied it false.
func forceMultiTurn(table *types.Table) {
	for i, c := range table.Columns {
		if c.ID == types.ColAI && c.GenConfig != nil && c.GenConfig.Kind == types.GenConfigLLM && c.GenConfig.LLM != nil {
			table.Columns[i].GenConfig.LLM.MultiTurn = true
		}
	}
}

func findColumn(cols []types.ColumnSchema, id string) (types.ColumnSchema, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return types.ColumnSchema{}, false
}

// RenameColumn renames oldID to newID, rewriting every gen_config
// reference to oldID, and re-validates the DAG.
func (s *Service) RenameColumn(ctx context.Context, projectID, tableID, oldID, newID string) error {
	if err := ValidateColumnID(newID); err != nil {
		return err
	}
	table, err := s.tables.GetTable(ctx, projectID, tableID)
	if err != nil {
		return err
	}
	if _, ok := table.Column(newID); ok {
		return jamerrors.New(jamerrors.ResourceExists, "column %q already exists", newID)
	}
	idx := table.IndexOf(oldID)
	if idx < 0 {
		return jamerrors.New(jamerrors.ResourceNotFound, "column %q not found", oldID)
	}

	table.Columns[idx].ID = newID
	rewriteReferences(table.Columns, oldID, newID)

	if _, err := planner.Build(table.Columns); err != nil {
		return err
	}
	table.Version++
	table.UpdatedAt = time.Now()
	return s.tables.PutTable(ctx, table)
}

func rewriteReferences(cols []types.ColumnSchema, oldID, newID string) {
	replace := func(text string) string {
		return strings.ReplaceAll(text, "${"+oldID+"}", "${"+newID+"}")
	}
	for i := range cols {
		cfg := cols[i].GenConfig
		if cfg == nil {
			continue
		}
		switch cfg.Kind {
		case types.GenConfigLLM:
			if cfg.LLM != nil {
				cfg.LLM.SystemPrompt = replace(cfg.LLM.SystemPrompt)
				cfg.LLM.Prompt = replace(cfg.LLM.Prompt)
			}
		case types.GenConfigEmbed:
			if cfg.Embed != nil && cfg.Embed.SourceColumn == oldID {
				cfg.Embed.SourceColumn = newID
			}
		case types.GenConfigCode:
			if cfg.Code != nil && cfg.Code.SourceColumn == oldID {
				cfg.Code.SourceColumn = newID
			}
		}
	}
}

// ReorderColumns persists a new column order. newOrder must be a
// permutation of the table's existing non-info columns, and no
// gen_config reference may end up after its dependency.
func (s *Service) ReorderColumns(ctx context.Context, projectID, tableID string, newOrder []string) error {
	table, err := s.tables.GetTable(ctx, projectID, tableID)
	if err != nil {
		return err
	}

	info := make([]types.ColumnSchema, 0, 2)
	byID := make(map[string]types.ColumnSchema, len(table.Columns))
	for _, c := range table.Columns {
		if c.IsInfo() {
			info = append(info, c)
			continue
		}
		byID[c.ID] = c
	}
	if len(newOrder) != len(byID) {
		return jamerrors.New(jamerrors.BadInput, "new column order is not a permutation of existing columns")
	}
	reordered := make([]types.ColumnSchema, 0, len(table.Columns))
	reordered = append(reordered, info...)
	seen := make(map[string]bool, len(newOrder))
	for _, id := range newOrder {
		c, ok := byID[id]
		if !ok || seen[id] {
			return jamerrors.New(jamerrors.BadInput, "new column order is not a permutation of existing columns")
		}
		seen[id] = true
		reordered = append(reordered, c)
	}

	if _, err := planner.Build(reordered); err != nil {
		return err
	}
	table.Columns = reordered
	table.Version++
	table.UpdatedAt = time.Now()
	return s.tables.PutTable(ctx, table)
}

// DropColumns removes the named columns, failing if any remaining
// gen_config still references one of them.
func (s *Service) DropColumns(ctx context.Context, projectID, tableID string, colIDs []string) error {
	table, err := s.tables.GetTable(ctx, projectID, tableID)
	if err != nil {
		return err
	}
	drop := make(map[string]bool, len(colIDs))
	for _, id := range colIDs {
		if table.IndexOf(id) < 0 {
			return jamerrors.New(jamerrors.ResourceNotFound, "column %q not found", id)
		}
		drop[id] = true
	}

	remaining := make([]types.ColumnSchema, 0, len(table.Columns))
	for _, c := range table.Columns {
		if !drop[c.ID] {
			remaining = append(remaining, c)
		}
	}

	plan, err := planner.Build(remaining)
	if err != nil {
		return err
	}
	for id := range drop {
		for col, refs := range plan.References {
			for _, r := range refs {
				if r == id {
					return jamerrors.New(jamerrors.BadInput, "column %q still references dropped column %q", col, id)
				}
			}
		}
	}

	table.Columns = remaining
	table.Version++
	table.UpdatedAt = time.Now()
	return s.tables.PutTable(ctx, table)
}

// UpdateGenConfig atomically swaps one column's gen_config, validating
// every referenced column exists and precedes it, every referenced
// model exists, and (for Chat's AI column) that multi_turn stays true.
func (s *Service) UpdateGenConfig(ctx context.Context, orgID, projectID, tableID, colID string, cfg *types.GenConfig) error {
	table, err := s.tables.GetTable(ctx, projectID, tableID)
	if err != nil {
		return err
	}
	idx := table.IndexOf(colID)
	if idx < 0 {
		return jamerrors.New(jamerrors.ResourceNotFound, "column %q not found", colID)
	}

	if table.Type == types.TableChat && colID == types.ColAI {
		if cfg.Kind != types.GenConfigLLM || cfg.LLM == nil {
			return jamerrors.New(jamerrors.BadInput, "Chat table's AI column requires an LLM gen_config")
		}
		cfg.LLM.MultiTurn = true
	}

	if err := s.validateModelRefs(ctx, orgID, cfg); err != nil {
		return err
	}

	candidate := make([]types.ColumnSchema, len(table.Columns))
	copy(candidate, table.Columns)
	candidate[idx].GenConfig = cfg
	if _, err := planner.Build(candidate); err != nil {
		return err
	}

	table.Columns = candidate
	table.Version++
	table.UpdatedAt = time.Now()
	return s.tables.PutTable(ctx, table)
}

func (s *Service) validateModelRefs(ctx context.Context, orgID string, cfg *types.GenConfig) error {
	if s.models == nil || cfg == nil {
		return nil
	}
	var modelID string
	switch cfg.Kind {
	case types.GenConfigLLM:
		if cfg.LLM != nil {
			modelID = cfg.LLM.Model
		}
	case types.GenConfigEmbed:
		if cfg.Embed != nil {
			modelID = cfg.Embed.EmbeddingModel
		}
	}
	if modelID != "" && !s.models.Exists(ctx, orgID, modelID) {
		return jamerrors.New(jamerrors.ResourceNotFound, "model %q not found", modelID)
	}
	return nil
}
