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
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// ExportCSV writes table's rows as CSV (or TSV when sep is '\t') with a
// header row of column IDs in table order, excluding vector columns.
func ExportCSV(w io.Writer, table *types.Table, rows []*types.Row, sep rune) error {
	cw := csv.NewWriter(w)
	if sep != 0 {
		cw.Comma = sep
	}

	cols := exportableColumns(table)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.ID
	}
	if err := cw.Write(header); err != nil {
		return jamerrors.Wrap(jamerrors.Unexpected, err, "write csv header")
	}

	for _, r := range rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = cellToCSVField(r, c)
		}
		if err := cw.Write(record); err != nil {
			return jamerrors.Wrap(jamerrors.Unexpected, err, "write csv row %q", r.ID)
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportableColumns(table *types.Table) []types.ColumnSchema {
	out := make([]types.ColumnSchema, 0, len(table.Columns))
	for _, c := range table.Columns {
		if c.IsVector() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func cellToCSVField(r *types.Row, col types.ColumnSchema) string {
	switch col.ID {
	case types.ColID:
		return r.ID
	case types.ColUpdatedAt:
		return r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	c, ok := r.Cells[col.ID]
	if !ok || c.Value == nil {
		return ""
	}
	switch v := c.Value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ImportCSV reads a CSV/TSV reader (respecting sep) and produces rows
// whose cell values are coerced to each column's dtype. Missing
// generated-column values are left nil so the caller can regenerate
// them; unknown header columns are rejected.
func ImportCSV(r io.Reader, table *types.Table, sep rune) ([]*types.Row, error) {
	cr := csv.NewReader(r)
	if sep != 0 {
		cr.Comma = sep
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, jamerrors.Wrap(jamerrors.BadInput, err, "read csv header")
	}
	cols := make([]types.ColumnSchema, len(header))
	for i, name := range header {
		col, ok := table.Column(name)
		if !ok {
			return nil, jamerrors.New(jamerrors.BadInput, "unknown column %q in csv header", name)
		}
		cols[i] = col
	}

	var rows []*types.Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, jamerrors.Wrap(jamerrors.BadInput, err, "read csv row")
		}
		row, err := recordToRow(record, cols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func recordToRow(record []string, cols []types.ColumnSchema) (*types.Row, error) {
	row := &types.Row{Cells: make(map[string]types.Cell, len(cols))}
	for i, col := range cols {
		if i >= len(record) {
			continue
		}
		field := record[i]
		switch col.ID {
		case types.ColID:
			row.ID = field
			continue
		case types.ColUpdatedAt:
			continue
		}
		if field == "" {
			row.Cells[col.ID] = types.Cell{Value: nil}
			continue
		}
		v, err := coerceField(field, col.DType)
		if err != nil {
			return nil, jamerrors.Wrap(jamerrors.BadInput, err, "column %q", col.ID)
		}
		row.Cells[col.ID] = types.Cell{Value: v}
	}
	return row, nil
}

// coerceField converts one CSV field into dtype's Go representation.
func coerceField(field string, dtype types.DType) (any, error) {
	switch dtype {
	case types.DTypeBool:
		switch strings.ToLower(field) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, jamerrors.New(jamerrors.BadInput, "invalid bool value %q", field)
	case types.DTypeInt:
		if i, err := strconv.ParseInt(field, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(field, 64); err == nil {
			return int64(f), nil
		}
		return nil, jamerrors.New(jamerrors.BadInput, "invalid int value %q", field)
	case types.DTypeFloat:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, jamerrors.New(jamerrors.BadInput, "invalid float value %q", field)
		}
		return f, nil
	default:
		return field, nil
	}
}
