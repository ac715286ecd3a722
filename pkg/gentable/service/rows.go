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
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/filter"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// maxListLimit is the hard cap on rows returned by one ListRows call.
const maxListLimit = 100

// ListParams controls row listing: pagination, ordering, filtering, and
// a free-text search that layers on top of `where`.
type ListParams struct {
	Offset         int
	Limit          int
	OrderBy        string
	OrderAscending bool
	Where          string
	SearchQuery    string
	Columns        []string
	FloatDecimals  int
	VecDecimals    int
}

// ListResult is one page of rows plus the total row count matching the
// filter (before pagination).
type ListResult struct {
	Rows  []*types.Row
	Total int
}

// ListRows returns a filtered, searched, ordered, paginated, and
// decimal-rounded page of a table's rows.
func (s *Service) ListRows(ctx context.Context, table *types.Table, params ListParams) (ListResult, error) {
	if params.Limit <= 0 || params.Limit > maxListLimit {
		return ListResult{}, jamerrors.New(jamerrors.BadInput, "limit must be between 1 and %d", maxListLimit)
	}

	rows, err := s.rows.ListRows(ctx, table.ID)
	if err != nil {
		return ListResult{}, err
	}

	matched, err := s.filterRows(rows, params.Where)
	if err != nil {
		return ListResult{}, err
	}
	matched = searchRows(matched, params.SearchQuery)

	if params.OrderBy != "" {
		sortRows(matched, params.OrderBy, params.OrderAscending)
	}

	total := len(matched)
	if params.Offset >= total {
		return ListResult{Rows: nil, Total: total}, nil
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	page := matched[params.Offset:end]

	out := make([]*types.Row, len(page))
	for i, r := range page {
		out[i] = projectAndRound(r, table, params)
	}
	return ListResult{Rows: out, Total: total}, nil
}

func (s *Service) filterRows(rows []*types.Row, where string) ([]*types.Row, error) {
	if strings.TrimSpace(where) == "" {
		return rows, nil
	}
	ev, err := filter.New()
	if err != nil {
		return nil, err
	}
	prg, err := ev.Compile(where)
	if err != nil {
		return nil, err
	}
	out := rows[:0:0]
	for _, r := range rows {
		ok, err := filter.Matches(prg, cellValues(r))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// searchRows keeps rows where any string cell contains searchQuery as a
// case-insensitive substring or matches it as a regular expression;
// a regexp-invalid query degrades to substring-only matching.
func searchRows(rows []*types.Row, searchQuery string) []*types.Row {
	if strings.TrimSpace(searchQuery) == "" {
		return rows
	}
	lowerQuery := strings.ToLower(searchQuery)
	re, reErr := regexp.Compile("(?i)" + searchQuery)

	out := rows[:0:0]
	for _, r := range rows {
		if rowMatchesSearch(r, lowerQuery, re, reErr) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatchesSearch(r *types.Row, lowerQuery string, re *regexp.Regexp, reErr error) bool {
	for _, c := range r.Cells {
		text, ok := c.Value.(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(text), lowerQuery) {
			return true
		}
		if reErr == nil && re.MatchString(text) {
			return true
		}
	}
	return false
}

func cellValues(r *types.Row) map[string]any {
	out := make(map[string]any, len(r.Cells)+2)
	out[types.ColID] = r.ID
	out[types.ColUpdatedAt] = r.UpdatedAt
	for id, c := range r.Cells {
		out[id] = c.Value
	}
	return out
}

func sortRows(rows []*types.Row, orderBy string, ascending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a := cellValues(rows[i])[orderBy]
		b := cellValues(rows[j])[orderBy]
		less := lessAny(a, b)
		if ascending {
			return less
		}
		return lessAny(b, a)
	})
}

func lessAny(a, b any) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return false
}

// projectAndRound applies the caller's column projection and
// float_decimals/vec_decimals rounding to a single row, leaving the
// stored row untouched.
func projectAndRound(r *types.Row, table *types.Table, params ListParams) *types.Row {
	out := &types.Row{ID: r.ID, UpdatedAt: r.UpdatedAt, Cells: make(map[string]types.Cell, len(r.Cells))}
	wanted := projectionSet(params.Columns)

	for id, c := range r.Cells {
		if wanted != nil && !wanted[id] {
			continue
		}
		col, ok := table.Column(id)
		if ok && col.IsVector() {
			if params.VecDecimals < 0 {
				continue
			}
			c.Value = roundValue(c.Value, params.VecDecimals)
		} else {
			c.Value = roundValue(c.Value, params.FloatDecimals)
		}
		out.Cells[id] = c
	}
	return out
}

func projectionSet(cols []string) map[string]bool {
	if len(cols) == 0 {
		return nil
	}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func roundValue(v any, decimals int) any {
	switch fv := v.(type) {
	case float64:
		return roundFloat(fv, decimals)
	case []float32:
		out := make([]float32, len(fv))
		for i, f := range fv {
			out[i] = float32(roundFloat(float64(f), decimals))
		}
		return out
	case []float64:
		out := make([]float64, len(fv))
		for i, f := range fv {
			out[i] = roundFloat(f, decimals)
		}
		return out
	default:
		return v
	}
}

func roundFloat(f float64, decimals int) float64 {
	if decimals < 0 {
		return f
	}
	mult := math.Pow(10, float64(decimals))
	return math.Round(f*mult) / mult
}
