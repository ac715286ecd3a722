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

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

func TestTableStore_PutThenGetReturnsAnIndependentCopy(t *testing.T) {
	store := NewTableStore()
	table := &types.Table{ID: "t1", ProjectID: "p1", Columns: []types.ColumnSchema{{ID: "a"}}}
	require.NoError(t, store.PutTable(context.Background(), table))

	got, err := store.GetTable(context.Background(), "p1", "t1")
	require.NoError(t, err)
	got.Columns[0].ID = "mutated"

	got2, err := store.GetTable(context.Background(), "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "a", got2.Columns[0].ID)
}

func TestTableStore_GetMissingTableReturnsResourceNotFound(t *testing.T) {
	store := NewTableStore()
	_, err := store.GetTable(context.Background(), "p1", "nope")
	require.Error(t, err)
	assert.Equal(t, jamerrors.ResourceNotFound, jamerrors.KindOf(err))
}

func TestRowStore_PutListDeleteRoundTrip(t *testing.T) {
	store := NewRowStore()
	require.NoError(t, store.PutRows(context.Background(), "t1", []*types.Row{{ID: "r1"}, {ID: "r2"}}))

	rows, err := store.ListRows(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, store.DeleteRows(context.Background(), "t1", []string{"r1"}))
	rows, err = store.ListRows(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r2", rows[0].ID)
}
