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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
)

func TestExportImportTableParquet_RoundTripsRowValues(t *testing.T) {
	table := &types.Table{
		ID:   "t1",
		Type: types.TableAction,
		Columns: []types.ColumnSchema{
			{ID: types.ColID, DType: types.DTypeStr},
			{ID: types.ColUpdatedAt, DType: types.DTypeDateTime},
			{ID: "name", DType: types.DTypeStr},
		},
	}
	rows := []*types.Row{
		{ID: "r1", UpdatedAt: time.Unix(100, 0), Cells: map[string]types.Cell{"name": {Value: "Alice"}}},
		{ID: "r2", UpdatedAt: time.Unix(200, 0), Cells: map[string]types.Cell{"name": {Value: "Bob"}}},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportTableParquet(&buf, table, rows))

	got, err := ImportTableParquet(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, "Alice", got[0].Cells["name"].Value)
	assert.Equal(t, "r2", got[1].ID)
	assert.Equal(t, "Bob", got[1].Cells["name"].Value)
}

func TestExportProjectParquet_CombinesMultipleTables(t *testing.T) {
	t1 := &types.Table{ID: "t1", Type: types.TableAction, Columns: []types.ColumnSchema{{ID: "x", DType: types.DTypeStr}}}
	t2 := &types.Table{ID: "t2", Type: types.TableAction, Columns: []types.ColumnSchema{{ID: "y", DType: types.DTypeStr}}}
	rowsByTable := map[string][]*types.Row{
		"t1": {{ID: "r1", Cells: map[string]types.Cell{"x": {Value: "a"}}}},
		"t2": {{ID: "r2", Cells: map[string]types.Cell{"y": {Value: "b"}}}},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportProjectParquet(&buf, "proj1", []*types.Table{t1, t2}, rowsByTable))

	got, err := ImportTableParquet(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, got, 2)
}
