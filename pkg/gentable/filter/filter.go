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

// Package filter evaluates the `where` clause row listing accepts: a
// small SQL subset (AND, OR, =, ~*, parenthesization, quoted column
// names) over one row's cell values. The subset is translated into CEL
// surface syntax and evaluated with google/cel-go rather than
// hand-rolling a boolean expression evaluator.
package filter

import (
	"regexp"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// Evaluator compiles `where` clauses against a fixed "row" map(string,dyn)
// environment and a `~*` case-insensitive regex match function.
type Evaluator struct {
	env *cel.Env
}

// New constructs an Evaluator.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Function("regexMatch",
			cel.Overload("regexMatch_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(regexMatchBinding),
			),
		),
	)
	if err != nil {
		return nil, jamerrors.Wrap(jamerrors.Unexpected, err, "construct where-clause CEL environment")
	}
	return &Evaluator{env: env}, nil
}

func regexMatchBinding(lhs, rhs ref.Val) ref.Val {
	value, ok := lhs.Value().(string)
	if !ok {
		return types.Bool(false)
	}
	pattern, ok := rhs.Value().(string)
	if !ok {
		return types.Bool(false)
	}
	matched, err := regexp.MatchString("(?i)"+pattern, value)
	if err != nil {
		return types.Bool(false)
	}
	return types.Bool(matched)
}

// Compile parses and type-checks a `where` clause, returning a reusable
// program. A malformed clause is reported as jamerrors.BadInput.
func (e *Evaluator) Compile(where string) (cel.Program, error) {
	expr, err := translate(where)
	if err != nil {
		return nil, err
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, jamerrors.Wrap(jamerrors.BadInput, issues.Err(), "invalid where clause %q", where)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, jamerrors.Wrap(jamerrors.BadInput, err, "compile where clause %q", where)
	}
	return prg, nil
}

// Matches evaluates a compiled where-clause program against one row's
// cell values, keyed by column ID.
func Matches(prg cel.Program, row map[string]any) (bool, error) {
	out, _, err := prg.Eval(map[string]any{"row": row})
	if err != nil {
		return false, jamerrors.Wrap(jamerrors.Unexpected, err, "evaluate where clause")
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, jamerrors.New(jamerrors.BadInput, "where clause did not evaluate to a boolean")
	}
	return b, nil
}
