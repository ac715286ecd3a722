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
	"fmt"
	"strings"
)

const defaultSystemPreamble = "You are a versatile data generator. You complete the requested column " +
	"using only the information given in the row, following the target column's described format exactly."

// DefaultSystemPrompt synthesizes the system prompt used when a gen_config
// leaves system_prompt empty. isChatAgent adds the Chat table's "AI" column
// framing.
func DefaultSystemPrompt(tableID string, isChatAgent bool) string {
	if !isChatAgent {
		return defaultSystemPreamble
	}
	return fmt.Sprintf("%s You are an agent named %q, responding to the user's latest message in this conversation.",
		defaultSystemPreamble, tableID)
}

// DefaultUserPrompt synthesizes the user prompt used when a gen_config
// leaves prompt empty: an enumerated block of every included input column
// followed by an instruction to generate targetColumn.
func DefaultUserPrompt(inputs []ColumnRef, targetColumn string) string {
	var sb strings.Builder
	for _, col := range inputs {
		if !col.Included() {
			continue
		}
		fmt.Fprintf(&sb, "%s: ${%s}\n", col.ID, col.ID)
	}
	fmt.Fprintf(&sb, "\nGenerate the value for column %q based on the inputs above.", targetColumn)
	return sb.String()
}
