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

// Package planner implements C7: extracting each generated column's
// references, rejecting forward references, and computing the layered
// execution order the Row Executor walks. The planner is pure and has
// no cycle detection — a column may only reference columns strictly
// before it in table order, so a cycle can never be constructed in the
// first place.
package planner

import (
	"regexp"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// tokenRef matches a bare (non-escaped) ${col} reference well enough to
// extract column IDs for dependency analysis; the interpolator in
// pkg/template owns the authoritative substitution semantics, including
// the escape rule. Here we only need the set of names referenced.
var tokenRef = regexp.MustCompile(`\$\{([^}]*)\}`)

// Plan is the planner's output for one table version: per-column
// reference sets and the layered topological order.
type Plan struct {
	References map[string][]string
	Layers     [][]string
	LayerOf    map[string]int
}

// Build computes a Plan for the given column order. It returns
// jamerrors.BadInput if any column references a column that does not
// precede it, or references an info/vector column.
func Build(cols []types.ColumnSchema) (Plan, error) {
	layerOf := make(map[string]int, len(cols))
	refsByCol := make(map[string][]string, len(cols))
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.ID] = i
	}

	var maxLayer int
	var layers [][]string

	for i, c := range cols {
		refs := referencesOf(c)
		refsByCol[c.ID] = refs

		if !c.GenConfig.IsGenerated() {
			layerOf[c.ID] = 0
			continue
		}

		layer := 0
		for _, ref := range refs {
			refIdx, ok := index[ref]
			if !ok || refIdx >= i {
				return Plan{}, jamerrors.New(jamerrors.BadInput, "invalid source columns: %q references %q", c.ID, ref)
			}
			refCol := cols[refIdx]
			if refCol.IsInfo() || refCol.IsVector() {
				return Plan{}, jamerrors.New(jamerrors.BadInput, "invalid source columns: %q references info/vector column %q", c.ID, ref)
			}
			if l := layerOf[ref] + 1; l > layer {
				layer = l
			}
		}
		layerOf[c.ID] = layer
		if layer > maxLayer {
			maxLayer = layer
		}
	}

	layers = make([][]string, maxLayer+1)
	for _, c := range cols {
		l := layerOf[c.ID]
		layers[l] = append(layers[l], c.ID)
	}

	return Plan{References: refsByCol, Layers: layers, LayerOf: layerOf}, nil
}

// extractRefs returns the column IDs referenced by unescaped ${col}
// tokens in text, skipping \${col} occurrences the same way the
// interpolator does.
func extractRefs(text string) []string {
	var ids []string
	for _, m := range tokenRef.FindAllStringSubmatchIndex(text, -1) {
		start := m[0]
		if start > 0 && text[start-1] == '\\' {
			continue
		}
		ids = append(ids, text[m[2]:m[3]])
	}
	return ids
}

// referencesOf computes one column's reference set: template ${...}
// references in system_prompt/prompt, source_column for embed/code
// configs, and the User column for multi-turn chat configs.
func referencesOf(c types.ColumnSchema) []string {
	if c.GenConfig == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var refs []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}

	switch c.GenConfig.Kind {
	case types.GenConfigLLM:
		cfg := c.GenConfig.LLM
		if cfg == nil {
			return nil
		}
		for _, id := range extractRefs(cfg.SystemPrompt) {
			add(id)
		}
		for _, id := range extractRefs(cfg.Prompt) {
			add(id)
		}
		if cfg.MultiTurn {
			add(types.ColUser)
		}
	case types.GenConfigEmbed:
		if cfg := c.GenConfig.Embed; cfg != nil {
			add(cfg.SourceColumn)
		}
	case types.GenConfigCode:
		if cfg := c.GenConfig.Code; cfg != nil {
			add(cfg.SourceColumn)
		}
	}
	return refs
}
