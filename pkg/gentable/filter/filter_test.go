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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_Matches_SimpleEquality(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	prg, err := e.Compile(`"status" = 'done'`)
	require.NoError(t, err)

	ok, err := Matches(prg, map[string]any{"status": "done"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(prg, map[string]any{"status": "pending"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_Matches_AndOrParenthesization(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	prg, err := e.Compile(`("status" = 'done' OR "status" = 'failed') AND "owner" = 'alice'`)
	require.NoError(t, err)

	ok, err := Matches(prg, map[string]any{"status": "failed", "owner": "alice"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(prg, map[string]any{"status": "failed", "owner": "bob"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_Matches_RegexOperator(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	prg, err := e.Compile(`"title" ~* '^hello'`)
	require.NoError(t, err)

	ok, err := Matches(prg, map[string]any{"title": "HELLO world"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(prg, map[string]any{"title": "goodbye"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_Compile_EmptyWhereMatchesEverything(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	prg, err := e.Compile("")
	require.NoError(t, err)

	ok, err := Matches(prg, map[string]any{"anything": "x"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluator_Compile_UnbalancedParensIsBadInput(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	_, err = e.Compile(`("status" = 'done'`)
	require.Error(t, err)
}
