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

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/gentable/types"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

func llmCol(id, prompt string) types.ColumnSchema {
	return types.ColumnSchema{
		ID:    id,
		DType: types.DTypeStr,
		GenConfig: &types.GenConfig{
			Kind: types.GenConfigLLM,
			LLM:  &types.LLMGenConfig{Prompt: prompt},
		},
	}
}

func inputCol(id string) types.ColumnSchema {
	return types.ColumnSchema{ID: id, DType: types.DTypeStr}
}

func TestBuild_LinearChainLayers(t *testing.T) {
	cols := []types.ColumnSchema{
		inputCol("in_01"),
		inputCol("in_02"),
		llmCol("out_01", "${in_01} ${in_02}"),
		llmCol("out_02", "${out_01}"),
	}
	plan, err := Build(cols)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.LayerOf["in_01"])
	assert.Equal(t, 0, plan.LayerOf["in_02"])
	assert.Equal(t, 1, plan.LayerOf["out_01"])
	assert.Equal(t, 2, plan.LayerOf["out_02"])
	assert.ElementsMatch(t, []string{"in_01", "in_02"}, plan.Layers[0])
	assert.ElementsMatch(t, []string{"out_01"}, plan.Layers[1])
	assert.ElementsMatch(t, []string{"out_02"}, plan.Layers[2])
}

func TestBuild_IndependentColumnsShareALayer(t *testing.T) {
	cols := []types.ColumnSchema{
		inputCol("in_01"),
		llmCol("out_01", "${in_01}"),
		llmCol("out_02", "${in_01}"),
	}
	plan, err := Build(cols)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"out_01", "out_02"}, plan.Layers[1])
}

func TestBuild_ForwardReferenceRejected(t *testing.T) {
	cols := []types.ColumnSchema{
		llmCol("out_01", "${out_02}"),
		inputCol("out_02"),
	}
	_, err := Build(cols)
	require.Error(t, err)
	assert.Equal(t, jamerrors.BadInput, jamerrors.KindOf(err))
}

func TestBuild_SelfReferenceRejected(t *testing.T) {
	cols := []types.ColumnSchema{
		llmCol("out_01", "${out_01}"),
	}
	_, err := Build(cols)
	require.Error(t, err)
	assert.Equal(t, jamerrors.BadInput, jamerrors.KindOf(err))
}

func TestBuild_ReferenceToInfoColumnRejected(t *testing.T) {
	cols := []types.ColumnSchema{
		{ID: types.ColID, DType: types.DTypeStr},
		llmCol("out_01", "${ID}"),
	}
	_, err := Build(cols)
	require.Error(t, err)
	assert.Equal(t, jamerrors.BadInput, jamerrors.KindOf(err))
}

func TestBuild_ReferenceToVectorColumnRejected(t *testing.T) {
	cols := []types.ColumnSchema{
		{ID: types.ColTextEmbed, DType: types.DTypeFloat},
		llmCol("out_01", "${Text Embed}"),
	}
	_, err := Build(cols)
	require.Error(t, err)
	assert.Equal(t, jamerrors.BadInput, jamerrors.KindOf(err))
}

func TestBuild_EscapedReferenceIsNotADependency(t *testing.T) {
	cols := []types.ColumnSchema{
		inputCol("in_01"),
		llmCol("out_01", `literal \${in_01} text`),
	}
	plan, err := Build(cols)
	require.NoError(t, err)
	assert.Empty(t, plan.References["out_01"])
	assert.Equal(t, 0, plan.LayerOf["out_01"])
}

func TestBuild_MultiTurnChatDependsOnUser(t *testing.T) {
	cols := []types.ColumnSchema{
		inputCol(types.ColUser),
		{
			ID:    types.ColAI,
			DType: types.DTypeStr,
			GenConfig: &types.GenConfig{
				Kind: types.GenConfigLLM,
				LLM:  &types.LLMGenConfig{MultiTurn: true},
			},
		},
	}
	plan, err := Build(cols)
	require.NoError(t, err)
	assert.Contains(t, plan.References[types.ColAI], types.ColUser)
}

func TestBuild_EmbedConfigDependsOnSourceColumn(t *testing.T) {
	cols := []types.ColumnSchema{
		inputCol("in_01"),
		{
			ID:    "embed_01",
			DType: types.DTypeFloat,
			GenConfig: &types.GenConfig{
				Kind:  types.GenConfigEmbed,
				Embed: &types.EmbedGenConfig{SourceColumn: "in_01"},
			},
		},
	}
	plan, err := Build(cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"in_01"}, plan.References["embed_01"])
	assert.Equal(t, 1, plan.LayerOf["embed_01"])
}
