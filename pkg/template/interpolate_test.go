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

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

func TestInterpolate_SubstitutesStringColumn(t *testing.T) {
	parts := Interpolate("Hello ${name}!", map[string]Cell{"name": {DType: DTypeStr, Text: "world"}})
	require.Len(t, parts, 1)
	assert.Equal(t, "Hello world!", parts[0].Text)
}

func TestInterpolate_NullStringBecomesEmpty(t *testing.T) {
	parts := Interpolate("[${missing}]", map[string]Cell{"missing": {DType: DTypeStr, Null: true}})
	require.Len(t, parts, 1)
	assert.Equal(t, "[]", parts[0].Text)
}

func TestInterpolate_MissingColumnTreatedAsNull(t *testing.T) {
	parts := Interpolate("[${gone}]", map[string]Cell{})
	require.Len(t, parts, 1)
	assert.Equal(t, "[]", parts[0].Text)
}

func TestInterpolate_EscapedReferenceSurvivesLiterally(t *testing.T) {
	parts := Interpolate(`literal \${not_a_ref} here`, map[string]Cell{"not_a_ref": {DType: DTypeStr, Text: "nope"}})
	require.Len(t, parts, 1)
	assert.Equal(t, "literal ${not_a_ref} here", parts[0].Text)
}

func TestInterpolate_ImageColumnSplitsContentParts(t *testing.T) {
	parts := Interpolate("See: ${photo} please.", map[string]Cell{
		"photo": {DType: DTypeImage, URI: "https://example.com/a.png"},
	})
	require.Len(t, parts, 3)
	assert.Equal(t, providers.ContentText, parts[0].Type)
	assert.Equal(t, "See: ", parts[0].Text)
	assert.Equal(t, providers.ContentImageURL, parts[1].Type)
	assert.Equal(t, "https://example.com/a.png", parts[1].URI)
	assert.Equal(t, providers.ContentText, parts[2].Type)
	assert.Equal(t, " please.", parts[2].Text)
}

func TestInterpolate_NullImageColumnOmitted(t *testing.T) {
	parts := Interpolate("before${img}after", map[string]Cell{"img": {DType: DTypeImage, Null: true}})
	require.Len(t, parts, 1)
	assert.Equal(t, "beforeafter", parts[0].Text)
}

func TestDefaultUserPrompt_ExcludesInfoAndVectorColumns(t *testing.T) {
	prompt := DefaultUserPrompt([]ColumnRef{
		{ID: "title"},
		{ID: "notes", IsInfo: true},
		{ID: "embedding", IsVector: true},
	}, "summary")

	assert.Contains(t, prompt, "title: ${title}")
	assert.NotContains(t, prompt, "notes")
	assert.NotContains(t, prompt, "embedding")
	assert.Contains(t, prompt, `"summary"`)
}

func TestDefaultSystemPrompt_ChatAgentFraming(t *testing.T) {
	p := DefaultSystemPrompt("support_bot", true)
	assert.Contains(t, p, `"support_bot"`)
}
