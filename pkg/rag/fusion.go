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

package rag

import "sort"

// rrfConstant is the RRF smoothing constant k in 1/(k+rank), fixed rather
// than configurable per call.
const rrfConstant = 60

// ReciprocalRankFusion merges two ranked chunk lists (e.g. vector search
// and BM25) into one ranked list, scoring each chunk by the sum of
// 1/(rrfConstant+rank) across every list it appears in (1-indexed rank),
// and returns at most limit chunks sorted by fused score descending.
func ReciprocalRankFusion(limit int, rankings ...[]Chunk) []Chunk {
	scores := make(map[string]float64)
	byID := make(map[string]Chunk)

	for _, ranking := range rankings {
		for rank, chunk := range ranking {
			scores[chunk.RowID] += 1.0 / float64(rrfConstant+rank+1)
			if _, ok := byID[chunk.RowID]; !ok {
				byID[chunk.RowID] = chunk
			}
		}
	}

	fused := make([]Chunk, 0, len(byID))
	for id, chunk := range byID {
		chunk.RRFScore = scores[id]
		fused = append(fused, chunk)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		return fused[i].RowID < fused[j].RowID
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
