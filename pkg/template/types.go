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

// Package template implements C5: tokenizing prompt/system_prompt text on
// ${col} references, splitting multimodal cell values into distinct
// content parts, and synthesizing default prompts when the user leaves
// them empty.
package template

// DType names a column's data type, as far as the interpolator cares.
type DType string

// Column data types relevant to interpolation.
const (
	DTypeStr      DType = "str"
	DTypeImage    DType = "image"
	DTypeAudio    DType = "audio"
	DTypeDocument DType = "document"
)

// Cell is one row's value for a referenced column, as seen by the
// interpolator. Exactly one of Text/URI is meaningful, selected by the
// owning column's DType.
type Cell struct {
	DType DType
	Text  string
	URI   string
	Null  bool
}

// ColumnRef describes one input column available to a default prompt: its
// ID and whether it should be excluded from the enumerated input block.
type ColumnRef struct {
	ID       string
	IsInfo   bool // info columns are excluded from default prompts
	IsVector bool // vector (embedding) columns are excluded from default prompts
}

// Included reports whether this column should appear in a synthesized
// default user prompt.
func (c ColumnRef) Included() bool { return !c.IsInfo && !c.IsVector }
