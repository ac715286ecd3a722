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

package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/rag"
)

// chunkEntry is one Knowledge Table row held in the index, alongside the
// Text Embed vector a KnowledgeIndex needs for vector search.
type chunkEntry struct {
	rag.Chunk
	vector []float32
}

// KnowledgeIndex is a brute-force, process-local implementation of
// rag.VectorSearcher and rag.KeywordSearcher, keyed by Knowledge Table
// ID. It backs RAG retrieval for the IS_OSS default and for unit tests;
// a production deployment trades it for a pgvector-backed Postgres
// search (cosine similarity at this scale is O(n), fine for the row
// counts a single-process OSS deployment sees).
type KnowledgeIndex struct {
	mu      sync.RWMutex
	tables  map[string][]chunkEntry
}

// NewKnowledgeIndex constructs an empty KnowledgeIndex.
func NewKnowledgeIndex() *KnowledgeIndex {
	return &KnowledgeIndex{tables: make(map[string][]chunkEntry)}
}

var (
	_ rag.VectorSearcher  = (*KnowledgeIndex)(nil)
	_ rag.KeywordSearcher = (*KnowledgeIndex)(nil)
)

// Index upserts one chunk (a Knowledge Table row's Title/Text plus its
// Text Embed vector) under tableID, replacing any prior entry with the
// same rowID.
func (k *KnowledgeIndex) Index(tableID, rowID, title, text string, vector []float32) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entries := k.tables[tableID]
	for i, e := range entries {
		if e.RowID == rowID {
			entries[i] = chunkEntry{Chunk: rag.Chunk{RowID: rowID, Title: title, Text: text}, vector: vector}
			return
		}
	}
	k.tables[tableID] = append(entries, chunkEntry{Chunk: rag.Chunk{RowID: rowID, Title: title, Text: text}, vector: vector})
}

// Delete removes rowID's chunk from tableID's index, if present.
func (k *KnowledgeIndex) Delete(tableID, rowID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entries := k.tables[tableID]
	for i, e := range entries {
		if e.RowID == rowID {
			k.tables[tableID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// SearchVector implements rag.VectorSearcher with brute-force cosine
// similarity against every chunk currently indexed for tableID.
func (k *KnowledgeIndex) SearchVector(_ context.Context, tableID string, queryEmbedding []float32, limit int) ([]rag.Chunk, error) {
	k.mu.RLock()
	entries := append([]chunkEntry(nil), k.tables[tableID]...)
	k.mu.RUnlock()

	scored := make([]rag.Chunk, 0, len(entries))
	for _, e := range entries {
		c := e.Chunk
		c.RRFScore = cosineSimilarity(queryEmbedding, e.vector)
		scored = append(scored, c)
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].RRFScore > scored[j].RRFScore })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SearchBM25 implements rag.KeywordSearcher with a naive term-overlap
// score instead of true BM25 term-frequency weighting — adequate for the
// OSS default's small row counts, where the ranking only needs to
// distinguish "mentions the query terms" from "doesn't".
func (k *KnowledgeIndex) SearchBM25(_ context.Context, tableID, query string, limit int) ([]rag.Chunk, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	k.mu.RLock()
	entries := append([]chunkEntry(nil), k.tables[tableID]...)
	k.mu.RUnlock()

	scored := make([]rag.Chunk, 0, len(entries))
	for _, e := range entries {
		haystack := strings.ToLower(e.Title + " " + e.Text)
		var score float64
		for _, term := range terms {
			score += float64(strings.Count(haystack, term))
		}
		if score == 0 {
			continue
		}
		c := e.Chunk
		c.RRFScore = score
		scored = append(scored, c)
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].RRFScore > scored[j].RRFScore })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
