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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// GetTable implements service.TableStore.
func (p *Provider) GetTable(ctx context.Context, projectID, tableID string) (*types.Table, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT definition FROM gen_tables WHERE project_id = $1 AND table_id = $2`,
		projectID, tableID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jamerrors.New(jamerrors.ResourceNotFound, "table %q not found", tableID)
		}
		return nil, fmt.Errorf("postgres: get table: %w", err)
	}

	var table types.Table
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal table definition: %w", err)
	}
	return &table, nil
}

// GetTableByID looks up a table by table ID alone, without the owning
// project ID, for collaborators (e.g. pkg/gentable/runner) that only
// ever see an org and table ID at row-execution time.
func (p *Provider) GetTableByID(ctx context.Context, tableID string) (*types.Table, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT definition FROM gen_tables WHERE table_id = $1`,
		tableID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jamerrors.New(jamerrors.ResourceNotFound, "table %q not found", tableID)
		}
		return nil, fmt.Errorf("postgres: get table by id: %w", err)
	}

	var table types.Table
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal table definition: %w", err)
	}
	return &table, nil
}

// PutTable implements service.TableStore, upserting the full table
// definition as one JSONB document.
func (p *Provider) PutTable(ctx context.Context, table *types.Table) error {
	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("postgres: marshal table definition: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO gen_tables (project_id, table_id, definition, version, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, table_id)
		DO UPDATE SET definition = $3, version = $4, updated_at = $5`,
		table.ProjectID, table.ID, raw, table.Version, table.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put table: %w", err)
	}
	return nil
}

// DeleteTable implements service.TableStore.
func (p *Provider) DeleteTable(ctx context.Context, projectID, tableID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM gen_tables WHERE project_id = $1 AND table_id = $2`,
		projectID, tableID,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete table: %w", err)
	}
	return nil
}

// ListRows implements service.RowStore.
func (p *Provider) ListRows(ctx context.Context, tableID string) ([]*types.Row, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT row_id, cells, updated_at FROM gen_table_rows WHERE table_id = $1`,
		tableID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rows: %w", err)
	}
	defer rows.Close()

	var out []*types.Row
	for rows.Next() {
		var id string
		var raw []byte
		r := &types.Row{}
		if err := rows.Scan(&id, &raw, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.ID = id
		var cells map[string]any
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal row cells: %w", err)
		}
		r.Cells = make(map[string]types.Cell, len(cells))
		for k, v := range cells {
			r.Cells[k] = types.Cell{Value: v}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	return out, nil
}

// PutRows implements service.RowStore, upserting each row's cells as a
// JSONB document within one transaction.
func (p *Provider) PutRows(ctx context.Context, tableID string, rowsIn []*types.Row) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range rowsIn {
		cells := make(map[string]any, len(r.Cells))
		for k, c := range r.Cells {
			cells[k] = c.Value
		}
		raw, err := json.Marshal(cells)
		if err != nil {
			return fmt.Errorf("postgres: marshal row cells: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO gen_table_rows (table_id, row_id, cells, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (table_id, row_id)
			DO UPDATE SET cells = $3, updated_at = $4`,
			tableID, r.ID, raw, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: put row %q: %w", r.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// DeleteRows implements service.RowStore.
func (p *Provider) DeleteRows(ctx context.Context, tableID string, rowIDs []string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM gen_table_rows WHERE table_id = $1 AND row_id = ANY($2)`,
		tableID, rowIDs,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete rows: %w", err)
	}
	return nil
}
