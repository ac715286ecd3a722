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
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
)

// Interpolate scans text for ${col} references and returns the resulting
// content parts. A reference to an image/audio/document column with a
// populated URI splits the surrounding text into distinct parts; every
// other reference is substituted inline as text. Escaped \${col} survives
// as literal ${col}, never substituted. A reference to a column absent
// from cells (e.g. dropped concurrently) is treated as null.
func Interpolate(text string, cells map[string]Cell) []providers.ContentPart {
	var parts []providers.ContentPart
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, providers.ContentPart{Type: providers.ContentText, Text: buf.String()})
			buf.Reset()
		}
	}

	i := 0
	for i < len(text) {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] == '$' && i+2 < len(text) && text[i+2] == '{' {
			end := strings.IndexByte(text[i+3:], '}')
			if end >= 0 {
				buf.WriteString(text[i+1 : i+3+end+1]) // "${...}" verbatim, backslash dropped
				i += 3 + end + 1
				continue
			}
		}
		if text[i] == '$' && i+1 < len(text) && text[i+1] == '{' {
			end := strings.IndexByte(text[i+2:], '}')
			if end >= 0 {
				colID := text[i+2 : i+2+end]
				cell, ok := cells[colID]
				if !ok {
					cell = Cell{DType: DTypeStr, Null: true}
				}
				appendCell(&parts, &buf, flush, cell)
				i += 2 + end + 1
				continue
			}
		}
		buf.WriteByte(text[i])
		i++
	}
	flush()
	return parts
}

func appendCell(parts *[]providers.ContentPart, buf *strings.Builder, flush func(), cell Cell) {
	switch cell.DType {
	case DTypeImage, DTypeAudio, DTypeDocument:
		if cell.Null || cell.URI == "" {
			return
		}
		flush()
		*parts = append(*parts, providers.ContentPart{Type: multimodalType(cell.DType), URI: cell.URI})
	default:
		if cell.Null {
			return
		}
		buf.WriteString(cell.Text)
	}
}

func multimodalType(d DType) providers.ContentPartType {
	switch d {
	case DTypeImage:
		return providers.ContentImageURL
	case DTypeAudio:
		return providers.ContentAudio
	case DTypeDocument:
		return providers.ContentDocument
	default:
		return providers.ContentText
	}
}
