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
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/planner"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

type fakeLLM struct {
	mu    sync.Mutex
	runFn func(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error)
	calls []string
}

func (f *fakeLLM) RunLLM(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.ColumnID)
	f.mu.Unlock()
	return f.runFn(ctx, req, emit)
}

// arithmeticLLM evaluates "in_01+in_02" style prompts where the column's
// "formula" is keyed by column ID, operating on upstream cell values
// coerced to float64. This stands in for a real prompt/response round
// trip in tests that only care about DAG wiring, not provider behavior.
type arithmeticLLM struct {
	formulas map[string]func(cells map[string]any) string
}

func (a *arithmeticLLM) RunLLM(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
	f, ok := a.formulas[req.ColumnID]
	if !ok {
		return "", providers.Usage{}, fmt.Errorf("no formula for %s", req.ColumnID)
	}
	emit(Event{Kind: EventChunk, Text: f(req.Cells)})
	return f(req.Cells), providers.Usage{TotalTokens: 1}, nil
}

func floatOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		n, _ := strconv.ParseFloat(t, 64)
		return n
	default:
		return 0
	}
}

func buildArithmeticTable() (*types.Table, planner.Plan) {
	llmCol := func(id, prompt string) types.ColumnSchema {
		return types.ColumnSchema{ID: id, DType: types.DTypeStr, GenConfig: &types.GenConfig{
			Kind: types.GenConfigLLM,
			LLM:  &types.LLMGenConfig{Prompt: prompt},
		}}
	}
	cols := []types.ColumnSchema{
		{ID: "in_01", DType: types.DTypeFloat},
		{ID: "in_02", DType: types.DTypeFloat},
		llmCol("out_01", "${in_01}+${in_02}"),
		llmCol("out_02", "${in_02}-${in_01}"),
		llmCol("out_03", "${out_01}*${out_02}"),
		llmCol("out_04", "${out_02}*${out_03}"),
		llmCol("out_05", "${out_04}/3"),
	}
	table := &types.Table{ID: "t1", Columns: cols}
	plan, err := planner.Build(cols)
	if err != nil {
		panic(err)
	}
	return table, plan
}

func arithmeticFormulas() map[string]func(map[string]any) string {
	return map[string]func(map[string]any) string{
		"out_01": func(c map[string]any) string { return fmt.Sprintf("%g", floatOf(c["in_01"])+floatOf(c["in_02"])) },
		"out_02": func(c map[string]any) string { return fmt.Sprintf("%g", floatOf(c["in_02"])-floatOf(c["in_01"])) },
		"out_03": func(c map[string]any) string { return fmt.Sprintf("%g", floatOf(c["out_01"])*floatOf(c["out_02"])) },
		"out_04": func(c map[string]any) string { return fmt.Sprintf("%g", floatOf(c["out_02"])*floatOf(c["out_03"])) },
		"out_05": func(c map[string]any) string { return fmt.Sprintf("%.2f", floatOf(c["out_04"])/3) },
	}
}

func TestExecuteRow_RegenRunAfterLeavesColumnsBeforeTargetUntouched(t *testing.T) {
	table, plan := buildArithmeticTable()
	row := &types.Row{ID: "r1", Cells: map[string]types.Cell{
		"in_01":  {Value: 9.0},
		"in_02":  {Value: 8.0},
		"out_01": {Value: "10"}, // from the original {in_01:8, in_02:2} run, untouched by run_after
	}}

	llm := &arithmeticLLM{formulas: arithmeticFormulas()}
	out := make(chan Event, 64)
	exec := New(NewPool(4), llm, nil, nil, out)

	state, err := exec.ExecuteRow(context.Background(), "org1", table, plan, row, RegenAfter, "out_02")
	require.NoError(t, err)
	assert.Equal(t, RowDone, state)

	assert.Equal(t, "10", row.Cells["out_01"].Value) // unchanged
	assert.Equal(t, "-1", row.Cells["out_02"].Value)
	assert.Equal(t, "-10", row.Cells["out_03"].Value)
	assert.Equal(t, "10", row.Cells["out_04"].Value)
	assert.Equal(t, "3.33", row.Cells["out_05"].Value)
}

func TestExecuteRow_RegenSelectedRunsOnlyTarget(t *testing.T) {
	table, plan := buildArithmeticTable()
	row := &types.Row{ID: "r1", Cells: map[string]types.Cell{"in_01": {Value: 1.0}, "in_02": {Value: 2.0}}}

	llm := &fakeLLM{runFn: func(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
		return "ran:" + req.ColumnID, providers.Usage{}, nil
	}}
	out := make(chan Event, 64)
	exec := New(NewPool(4), llm, nil, nil, out)

	_, err := exec.ExecuteRow(context.Background(), "org1", table, plan, row, RegenSelected, "out_03")
	require.NoError(t, err)

	assert.Equal(t, []string{"out_03"}, llm.calls)
}

func TestExecuteRow_UnknownOutputColumnFailsWithResourceNotFound(t *testing.T) {
	table, plan := buildArithmeticTable()
	row := &types.Row{ID: "r1"}
	llm := &fakeLLM{runFn: func(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
		return "", providers.Usage{}, nil
	}}
	out := make(chan Event, 64)
	exec := New(NewPool(4), llm, nil, nil, out)

	state, err := exec.ExecuteRow(context.Background(), "org1", table, plan, row, RegenSelected, "does_not_exist")
	require.Error(t, err)
	assert.Equal(t, RowFailed, state)
	assert.Equal(t, jamerrors.ResourceNotFound, jamerrors.KindOf(err))
}

func TestExecuteRow_ColumnFailureBecomesLiteralErrorCellAndDoesNotAbortRow(t *testing.T) {
	table, plan := buildArithmeticTable()
	row := &types.Row{ID: "r1", Cells: map[string]types.Cell{"in_01": {Value: 1.0}, "in_02": {Value: 2.0}}}

	llm := &fakeLLM{runFn: func(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
		if req.ColumnID == "out_01" {
			return "", providers.Usage{}, jamerrors.New(jamerrors.ProviderUnavailable, "upstream down")
		}
		return "ok:" + req.ColumnID, providers.Usage{}, nil
	}}
	out := make(chan Event, 64)
	exec := New(NewPool(4), llm, nil, nil, out)

	state, err := exec.ExecuteRow(context.Background(), "org1", table, plan, row, RegenAll, "")
	require.NoError(t, err)
	assert.Equal(t, RowDone, state)

	assert.Contains(t, row.Cells["out_01"].Value, "[ERROR]")
	assert.Equal(t, "ok:out_05", row.Cells["out_05"].Value) // downstream columns still ran
}

func TestExecuteRow_ContextOverflowUsesFixedMessage(t *testing.T) {
	table, plan := buildArithmeticTable()
	row := &types.Row{ID: "r1", Cells: map[string]types.Cell{"in_01": {Value: 1.0}, "in_02": {Value: 2.0}}}

	llm := &fakeLLM{runFn: func(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
		if req.ColumnID == "out_01" {
			return "", providers.Usage{}, jamerrors.New(jamerrors.ContextOverflow, "too long")
		}
		return "ok", providers.Usage{}, nil
	}}
	out := make(chan Event, 64)
	exec := New(NewPool(4), llm, nil, nil, out)

	_, err := exec.ExecuteRow(context.Background(), "org1", table, plan, row, RegenAll, "")
	require.NoError(t, err)
	assert.Equal(t, "[ERROR] context length exceeded", row.Cells["out_01"].Value)
}

func TestExecuteRow_IndependentColumnsRunConcurrently(t *testing.T) {
	cols := []types.ColumnSchema{
		{ID: "in_01", DType: types.DTypeStr},
		{ID: "c1", DType: types.DTypeStr, GenConfig: &types.GenConfig{Kind: types.GenConfigLLM, LLM: &types.LLMGenConfig{Prompt: "${in_01}"}}},
		{ID: "c2", DType: types.DTypeStr, GenConfig: &types.GenConfig{Kind: types.GenConfigLLM, LLM: &types.LLMGenConfig{Prompt: "${in_01}"}}},
		{ID: "c3", DType: types.DTypeStr, GenConfig: &types.GenConfig{Kind: types.GenConfigLLM, LLM: &types.LLMGenConfig{Prompt: "${in_01}"}}},
	}
	table := &types.Table{ID: "t2", Columns: cols}
	plan, err := planner.Build(cols)
	require.NoError(t, err)

	llm := &fakeLLM{runFn: func(ctx context.Context, req RunRequest, emit func(Event)) (string, providers.Usage, error) {
		time.Sleep(50 * time.Millisecond)
		return "done", providers.Usage{}, nil
	}}
	row := &types.Row{ID: "r1", Cells: map[string]types.Cell{"in_01": {Value: "x"}}}
	out := make(chan Event, 64)
	exec := New(NewPool(4), llm, nil, nil, out)

	start := time.Now()
	_, err = exec.ExecuteRow(context.Background(), "org1", table, plan, row, RegenAll, "")
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 120*time.Millisecond, "three independent columns should run concurrently, not sequentially")
}
