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
	"encoding/json"
	"errors"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// tableRow is the Parquet row schema for one Generative Table row.
// Columns are dynamic per table, so only the reserved fields get their
// own Parquet column; the rest travel as a JSON blob.
type tableRow struct {
	TableID   string `parquet:"table_id"`
	ID        string `parquet:"id"`
	UpdatedAt int64  `parquet:"updated_at"`
	CellsJSON string `parquet:"cells_json"`
}

func rowToParquetRow(tableID string, r *types.Row) (tableRow, error) {
	cells := make(map[string]any, len(r.Cells))
	for id, c := range r.Cells {
		cells[id] = c.Value
	}
	blob, err := json.Marshal(cells)
	if err != nil {
		return tableRow{}, jamerrors.Wrap(jamerrors.Unexpected, err, "marshal row %q cells", r.ID)
	}
	return tableRow{
		TableID:   tableID,
		ID:        r.ID,
		UpdatedAt: r.UpdatedAt.UnixNano(),
		CellsJSON: string(blob),
	}, nil
}

func parquetRowToRow(pr tableRow) (*types.Row, error) {
	var cells map[string]any
	if pr.CellsJSON != "" && pr.CellsJSON != "null" {
		if err := json.Unmarshal([]byte(pr.CellsJSON), &cells); err != nil {
			return nil, jamerrors.Wrap(jamerrors.Unexpected, err, "unmarshal row %q cells", pr.ID)
		}
	}
	row := &types.Row{ID: pr.ID, Cells: make(map[string]types.Cell, len(cells))}
	for id, v := range cells {
		row.Cells[id] = types.Cell{Value: v}
	}
	return row, nil
}

// TableMeta is the schema-level metadata embedded in a single-table
// Parquet export under the "table_meta" key.
type TableMeta struct {
	TableID string               `json:"table_id"`
	Type    types.TableType      `json:"type"`
	Columns []types.ColumnSchema `json:"cols"`
}

// ExportTableParquet serializes one table's rows to Parquet, Snappy
// compressed, with the table's schema embedded as "table_meta".
func ExportTableParquet(w io.Writer, table *types.Table, rows []*types.Row) error {
	metaJSON, err := json.Marshal(TableMeta{TableID: table.ID, Type: table.Type, Columns: table.Columns})
	if err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "marshal table_meta")
	}

	prows := make([]tableRow, len(rows))
	for i, r := range rows {
		pr, err := rowToParquetRow(table.ID, r)
		if err != nil {
			return err
		}
		prows[i] = pr
	}

	pw := parquet.NewGenericWriter[tableRow](w,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata("table_meta", string(metaJSON)),
	)
	if _, err := pw.Write(prows); err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "write parquet rows")
	}
	if err := pw.Close(); err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "close parquet writer")
	}
	return nil
}

// ProjectMeta is the schema-level metadata embedded in a project-wide
// Parquet export under the "project_meta" and "table_metas" keys.
type ProjectMeta struct {
	ProjectID string      `json:"project_id"`
	Tables    []TableMeta `json:"tables"`
}

// ExportProjectParquet serializes every table's rows into one Parquet
// file, with "project_meta" describing the project and "table_metas"
// carrying a JSON array of TableMeta, one per table, each naming its
// table_id.
func ExportProjectParquet(w io.Writer, projectID string, tables []*types.Table, rowsByTable map[string][]*types.Row) error {
	metas := make([]TableMeta, len(tables))
	for i, t := range tables {
		metas[i] = TableMeta{TableID: t.ID, Type: t.Type, Columns: t.Columns}
	}
	projectMetaJSON, err := json.Marshal(ProjectMeta{ProjectID: projectID, Tables: metas})
	if err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "marshal project_meta")
	}
	tableMetasJSON, err := json.Marshal(metas)
	if err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "marshal table_metas")
	}

	var prows []tableRow
	for _, t := range tables {
		for _, r := range rowsByTable[t.ID] {
			pr, err := rowToParquetRow(t.ID, r)
			if err != nil {
				return err
			}
			prows = append(prows, pr)
		}
	}

	pw := parquet.NewGenericWriter[tableRow](w,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata("project_meta", string(projectMetaJSON)),
		parquet.KeyValueMetadata("table_metas", string(tableMetasJSON)),
	)
	if _, err := pw.Write(prows); err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "write parquet rows")
	}
	if err := pw.Close(); err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "close parquet writer")
	}
	return nil
}

// ImportTableParquet reads back a single-table Parquet export produced
// by ExportTableParquet.
func ImportTableParquet(data []byte) ([]*types.Row, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, jamerrors.Wrap(jamerrors.BadInput, err, "open parquet file")
	}

	pr := parquet.NewGenericReader[tableRow](f)
	prows := make([]tableRow, pr.NumRows())
	n, err := pr.Read(prows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, jamerrors.Wrap(jamerrors.BadInput, err, "read parquet rows")
	}
	_ = pr.Close()

	rows := make([]*types.Row, 0, n)
	for _, p := range prows[:n] {
		row, err := parquetRowToRow(p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
