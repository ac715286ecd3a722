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

package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/planner"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// Executor walks one row through its table's column DAG, running each
// layer's generated columns concurrently and emitting events to a
// shared out channel that a consumer (e.g. the SSE mux) fans in.
type Executor struct {
	pool  *Pool
	llm   LLMRunner
	embed EmbedRunner
	code  CodeRunner
	out   chan<- Event
}

// New constructs an Executor. out is owned by the caller; ExecuteRow
// never closes it.
func New(pool *Pool, llm LLMRunner, embed EmbedRunner, code CodeRunner, out chan<- Event) *Executor {
	return &Executor{pool: pool, llm: llm, embed: embed, code: code, out: out}
}

// ExecuteRow runs row through every layer of plan, restricted to the
// columns strategy selects relative to targetColumn, and returns the
// row's terminal state. A per-column provider failure does not fail the
// row: the cell's value becomes a literal "[ERROR] ..." string and
// downstream columns see it as ordinary text. The row only reaches
// RowFailed when ctx is cancelled or the regen selection itself is
// invalid.
func (e *Executor) ExecuteRow(ctx context.Context, orgID string, table *types.Table, plan planner.Plan, row *types.Row, strategy RegenStrategy, targetColumn string) (RowState, error) {
	toRun, err := columnsToRun(table, plan, strategy, targetColumn)
	if err != nil {
		return RowFailed, err
	}

	var mu sync.Mutex
	for _, layerCols := range plan.Layers {
		var wg sync.WaitGroup
		for _, colID := range layerCols {
			if !toRun[colID] {
				continue
			}
			colID := colID
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.runColumn(ctx, orgID, table, row, colID, &mu)
			}()
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			return RowFailed, ctx.Err()
		default:
		}
	}
	return RowDone, nil
}

func (e *Executor) runColumn(ctx context.Context, orgID string, table *types.Table, row *types.Row, colID string, mu *sync.Mutex) {
	col, ok := table.Column(colID)
	if !ok || col.GenConfig == nil {
		return
	}

	if err := e.pool.Acquire(ctx); err != nil {
		e.setCell(mu, row, colID, types.Cell{Value: errToCellValue(err)})
		return
	}
	defer e.pool.Release()

	req := RunRequest{
		OrgID:    orgID,
		TableID:  table.ID,
		RowID:    row.ID,
		ColumnID: colID,
		Cells:    e.snapshotCells(mu, row),
	}

	switch col.GenConfig.Kind {
	case types.GenConfigLLM:
		text, usage, err := e.llm.RunLLM(ctx, req, func(ev Event) {
			ev.RowID = row.ID
			ev.ColumnID = colID
			e.out <- ev
		})
		if err != nil {
			e.setCell(mu, row, colID, types.Cell{Value: errToCellValue(err)})
			e.out <- Event{RowID: row.ID, ColumnID: colID, Kind: EventUsage, Error: err}
			return
		}
		e.setCell(mu, row, colID, types.Cell{Value: text})
		e.out <- Event{RowID: row.ID, ColumnID: colID, Kind: EventUsage, Usage: usage}

	case types.GenConfigEmbed:
		vec, usage, err := e.embed.RunEmbed(ctx, req)
		if err != nil {
			e.setCell(mu, row, colID, types.Cell{Value: errToCellValue(err)})
			return
		}
		e.setCell(mu, row, colID, types.Cell{Value: vec})
		e.out <- Event{RowID: row.ID, ColumnID: colID, Kind: EventUsage, Usage: usage}

	case types.GenConfigCode:
		result, err := e.code.RunCode(ctx, req)
		if err != nil {
			e.setCell(mu, row, colID, types.Cell{Value: errToCellValue(err)})
			return
		}
		e.setCell(mu, row, colID, types.Cell{Value: result})
	}
}

func (e *Executor) setCell(mu *sync.Mutex, row *types.Row, colID string, cell types.Cell) {
	mu.Lock()
	defer mu.Unlock()
	if row.Cells == nil {
		row.Cells = make(map[string]types.Cell)
	}
	row.Cells[colID] = cell
}

func (e *Executor) snapshotCells(mu *sync.Mutex, row *types.Row) map[string]any {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]any, len(row.Cells))
	for k, c := range row.Cells {
		out[k] = c.Value
	}
	return out
}

// errToCellValue renders a provider/runtime error as the literal string
// a cell and its downstream interpolators see. Context overflow gets a
// fixed phrasing; every other kind uses the general
// "[ERROR] {kind}: {message}" form.
func errToCellValue(err error) string {
	if jamerrors.Is(err, jamerrors.ContextOverflow) {
		return "[ERROR] context length exceeded"
	}
	return fmt.Sprintf("[ERROR] %s: %s", jamerrors.KindOf(err), err.Error())
}

// columnsToRun resolves strategy + targetColumn against plan into the
// set of generated columns ExecuteRow should (re)run.
func columnsToRun(table *types.Table, plan planner.Plan, strategy RegenStrategy, target string) (map[string]bool, error) {
	if strategy == RegenBefore || strategy == RegenSelected || strategy == RegenAfter {
		if target == "" {
			return nil, jamerrors.New(jamerrors.ResourceNotFound, "output_column_id is required for regen_strategy %q", strategy)
		}
		if _, ok := plan.LayerOf[target]; !ok {
			return nil, jamerrors.New(jamerrors.ResourceNotFound, "unknown output column %q", target)
		}
	}

	targetLayer := plan.LayerOf[target]
	toRun := make(map[string]bool)
	for _, c := range table.Columns {
		if !c.GenConfig.IsGenerated() {
			continue
		}
		switch strategy {
		case RegenBefore:
			if plan.LayerOf[c.ID] < targetLayer {
				toRun[c.ID] = true
			}
		case RegenSelected:
			if c.ID == target {
				toRun[c.ID] = true
			}
		case RegenAfter:
			if c.ID == target || plan.LayerOf[c.ID] > targetLayer {
				toRun[c.ID] = true
			}
		default: // RegenAll, "" (fresh row add)
			toRun[c.ID] = true
		}
	}
	return toRun, nil
}
