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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

type fakeTableStore struct {
	tables map[string]*types.Table
}

func newFakeTableStore() *fakeTableStore {
	return &fakeTableStore{tables: map[string]*types.Table{}}
}

func (f *fakeTableStore) key(projectID, tableID string) string { return projectID + "/" + tableID }

func (f *fakeTableStore) GetTable(ctx context.Context, projectID, tableID string) (*types.Table, error) {
	t, ok := f.tables[f.key(projectID, tableID)]
	if !ok {
		return nil, jamerrors.New(jamerrors.ResourceNotFound, "table %q not found", tableID)
	}
	cp := *t
	cp.Columns = append([]types.ColumnSchema(nil), t.Columns...)
	return &cp, nil
}

func (f *fakeTableStore) PutTable(ctx context.Context, table *types.Table) error {
	cp := *table
	cp.Columns = append([]types.ColumnSchema(nil), table.Columns...)
	f.tables[f.key(table.ProjectID, table.ID)] = &cp
	return nil
}

func (f *fakeTableStore) DeleteTable(ctx context.Context, projectID, tableID string) error {
	delete(f.tables, f.key(projectID, tableID))
	return nil
}

type fakeRowStore struct{}

func (fakeRowStore) ListRows(ctx context.Context, tableID string) ([]*types.Row, error) { return nil, nil }
func (fakeRowStore) PutRows(ctx context.Context, tableID string, rows []*types.Row) error {
	return nil
}
func (fakeRowStore) DeleteRows(ctx context.Context, tableID string, rowIDs []string) error {
	return nil
}

type fakeModelExists struct {
	known map[string]bool
}

func (f fakeModelExists) Exists(ctx context.Context, orgID, modelID string) bool {
	return f.known[modelID]
}

func newTestService() (*Service, *fakeTableStore) {
	store := newFakeTableStore()
	models := fakeModelExists{known: map[string]bool{"gpt-4o": true, "text-embedding-3": true}}
	return New(store, fakeRowStore{}, models), store
}

func TestValidateColumnID_AcceptsOrdinaryNames(t *testing.T) {
	assert.NoError(t, ValidateColumnID("summary"))
	assert.NoError(t, ValidateColumnID("Column 1"))
	assert.NoError(t, ValidateColumnID("out_01"))
}

func TestValidateColumnID_RejectsReservedNames(t *testing.T) {
	assert.Error(t, ValidateColumnID("ID"))
	assert.Error(t, ValidateColumnID("id"))
	assert.Error(t, ValidateColumnID("Updated at"))
	assert.Error(t, ValidateColumnID("UPDATED AT"))
}

func TestValidateColumnID_RejectsBadPatternAndLength(t *testing.T) {
	assert.Error(t, ValidateColumnID(""))
	assert.Error(t, ValidateColumnID(" leadingspace"))
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateColumnID(string(long)))
}

func TestCreateTable_InjectsActionTableReservedColumns(t *testing.T) {
	svc, _ := newTestService()
	table := &types.Table{ID: "orders", ProjectID: "proj1", Type: types.TableAction}
	require.NoError(t, svc.CreateTable(context.Background(), table))

	_, ok := table.Column(types.ColID)
	assert.True(t, ok)
	_, ok = table.Column(types.ColUpdatedAt)
	assert.True(t, ok)
}

func TestCreateTable_InjectsKnowledgeTableColumns(t *testing.T) {
	svc, _ := newTestService()
	table := &types.Table{ID: "docs", ProjectID: "proj1", Type: types.TableKnowledge}
	require.NoError(t, svc.CreateTable(context.Background(), table))

	for _, id := range []string{types.ColTitle, types.ColText, types.ColFileID, types.ColPage, types.ColTitleEmbed, types.ColTextEmbed} {
		_, ok := table.Column(id)
		assert.True(t, ok, "expected injected column %q", id)
	}
}

func TestCreateTable_ChatTableForcesMultiTurnOnAI(t *testing.T) {
	svc, _ := newTestService()
	table := &types.Table{ID: "chat1", ProjectID: "proj1", Type: types.TableChat}
	require.NoError(t, svc.CreateTable(context.Background(), table))

	ai, ok := table.Column(types.ColAI)
	require.True(t, ok)
	require.NotNil(t, ai.GenConfig)
	require.NotNil(t, ai.GenConfig.LLM)
	assert.True(t, ai.GenConfig.LLM.MultiTurn)
}

func TestCreateTable_RejectsInvalidColumnID(t *testing.T) {
	svc, _ := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns:   []types.ColumnSchema{{ID: "ID", DType: types.DTypeStr}},
	}
	err := svc.CreateTable(context.Background(), table)
	require.Error(t, err)
	assert.Equal(t, jamerrors.BadInput, jamerrors.KindOf(err))
}

func TestRenameColumn_RewritesTemplateReferences(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: "input", DType: types.DTypeStr},
			{ID: "output", DType: types.DTypeStr, GenConfig: &types.GenConfig{
				Kind: types.GenConfigLLM,
				LLM:  &types.LLMGenConfig{Model: "gpt-4o", Prompt: "Summarize ${input}"},
			}},
		},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	require.NoError(t, svc.RenameColumn(context.Background(), "proj1", "t1", "input", "source_text"))

	updated, err := store.GetTable(context.Background(), "proj1", "t1")
	require.NoError(t, err)
	out, ok := updated.Column("output")
	require.True(t, ok)
	assert.Equal(t, "Summarize ${source_text}", out.GenConfig.LLM.Prompt)
	_, stillThere := updated.Column("input")
	assert.False(t, stillThere)
}

func TestRenameColumn_RejectsCollisionWithExistingColumn(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: "a", DType: types.DTypeStr},
			{ID: "b", DType: types.DTypeStr},
		},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	err := svc.RenameColumn(context.Background(), "proj1", "t1", "a", "b")
	require.Error(t, err)
	assert.Equal(t, jamerrors.ResourceExists, jamerrors.KindOf(err))
}

func TestReorderColumns_RejectsMovingAReferenceBeforeItsDependency(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: "input", DType: types.DTypeStr},
			{ID: "output", DType: types.DTypeStr, GenConfig: &types.GenConfig{
				Kind: types.GenConfigLLM,
				LLM:  &types.LLMGenConfig{Model: "gpt-4o", Prompt: "Summarize ${input}"},
			}},
		},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	err := svc.ReorderColumns(context.Background(), "proj1", "t1", []string{"output", "input"})
	require.Error(t, err)
}

func TestReorderColumns_AcceptsAValidPermutation(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: "a", DType: types.DTypeStr},
			{ID: "b", DType: types.DTypeStr},
		},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	require.NoError(t, svc.ReorderColumns(context.Background(), "proj1", "t1", []string{"b", "a"}))
	updated, err := store.GetTable(context.Background(), "proj1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Columns[2].ID)
	assert.Equal(t, "a", updated.Columns[3].ID)
}

func TestDropColumns_RejectsDroppingAReferencedColumn(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: "input", DType: types.DTypeStr},
			{ID: "output", DType: types.DTypeStr, GenConfig: &types.GenConfig{
				Kind: types.GenConfigLLM,
				LLM:  &types.LLMGenConfig{Model: "gpt-4o", Prompt: "Summarize ${input}"},
			}},
		},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	err := svc.DropColumns(context.Background(), "proj1", "t1", []string{"input"})
	require.Error(t, err)
}

func TestDropColumns_SucceedsWhenNoRemainingReference(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: "scratch", DType: types.DTypeStr},
			{ID: "keep", DType: types.DTypeStr},
		},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	require.NoError(t, svc.DropColumns(context.Background(), "proj1", "t1", []string{"scratch"}))
	updated, err := store.GetTable(context.Background(), "proj1", "t1")
	require.NoError(t, err)
	_, ok := updated.Column("scratch")
	assert.False(t, ok)
}

func TestUpdateGenConfig_RejectsUnknownModel(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{
		ID:        "t1",
		ProjectID: "proj1",
		Type:      types.TableAction,
		Columns:   []types.ColumnSchema{{ID: "output", DType: types.DTypeStr}},
	}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	err := svc.UpdateGenConfig(context.Background(), "org1", "proj1", "t1", "output", &types.GenConfig{
		Kind: types.GenConfigLLM,
		LLM:  &types.LLMGenConfig{Model: "no-such-model", Prompt: "hi"},
	})
	require.Error(t, err)
	assert.Equal(t, jamerrors.ResourceNotFound, jamerrors.KindOf(err))
}

func TestUpdateGenConfig_ChatAIColumnRequiresMultiTurnLLM(t *testing.T) {
	svc, store := newTestService()
	table := &types.Table{ID: "chat1", ProjectID: "proj1", Type: types.TableChat}
	require.NoError(t, svc.CreateTable(context.Background(), table))
	require.NoError(t, store.PutTable(context.Background(), table))

	err := svc.UpdateGenConfig(context.Background(), "org1", "proj1", "chat1", types.ColAI, &types.GenConfig{
		Kind: types.GenConfigLLM,
		LLM:  &types.LLMGenConfig{Model: "gpt-4o", MultiTurn: false},
	})
	require.NoError(t, err)

	updated, err := store.GetTable(context.Background(), "proj1", "chat1")
	require.NoError(t, err)
	ai, ok := updated.Column(types.ColAI)
	require.True(t, ok)
	assert.True(t, ai.GenConfig.LLM.MultiTurn)
}
