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
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// tableDefinitionSchema is the JSON Schema a raw table definition must
// satisfy before it is unmarshaled into types.Table — the shape check a
// project import runs before any DAG or model validation, so a
// malformed manifest is rejected with a precise BadInput message rather
// than a confusing unmarshal error.
const tableDefinitionSchema = `{
  "type": "object",
  "required": ["id", "type", "cols"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {"type": "string", "enum": ["action", "knowledge", "chat"]},
    "cols": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "dtype"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "dtype": {"type": "string"}
        }
      }
    }
  }
}`

// ValidateTableDefinitionJSON checks that raw (a project-export
// "table_meta"/"table_metas" entry, or a table-import manifest) has the
// shape types.Table expects, before the caller unmarshals it.
func ValidateTableDefinitionJSON(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(tableDefinitionSchema)
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return jamerrors.Wrap(jamerrors.BadInput, err, "validate table definition")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return jamerrors.New(jamerrors.BadInput, "invalid table definition: %s", strings.Join(msgs, "; "))
	}
	return nil
}
