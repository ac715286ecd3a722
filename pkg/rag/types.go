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

// Package rag implements C6: hybrid vector+keyword retrieval against a
// Knowledge Table, fused with Reciprocal Rank Fusion, with an optional
// reranking pass and citation formatting for the calling LLM prompt.
package rag

import "context"

// Chunk is one retrieved passage from a Knowledge Table.
type Chunk struct {
	RowID    string
	Title    string
	Text     string
	RRFScore float64
}

// Params configures one retrieval call.
type Params struct {
	TableID              string
	SearchQuery          string
	K                     int
	RerankingModel        string
	ConcatRerankerInput   bool
	InlineCitations       bool
}

// References is the side channel returned alongside the system message
// injected into the LLM call.
type References struct {
	Chunks      []Chunk
	SearchQuery string
}

// VectorSearcher performs a similarity search against a Knowledge Table's
// Text Embed column.
type VectorSearcher interface {
	SearchVector(ctx context.Context, tableID string, queryEmbedding []float32, limit int) ([]Chunk, error)
}

// KeywordSearcher performs a BM25 search against a Knowledge Table's
// Text and Title columns.
type KeywordSearcher interface {
	SearchBM25(ctx context.Context, tableID, query string, limit int) ([]Chunk, error)
}

// Embedder produces the query embedding used for vector search.
type Embedder interface {
	EmbedQuery(ctx context.Context, orgID, modelID, text string) ([]float32, error)
}

// Reranker reorders candidate documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, orgID, modelID, query string, documents []string) ([]RerankedIndex, error)
}

// RerankedIndex is one reranked document's original index and score.
type RerankedIndex struct {
	Index          int
	RelevanceScore float64
}

// QuerySynthesizer produces a search query from the row's text inputs
// when the caller left SearchQuery empty.
type QuerySynthesizer interface {
	SynthesizeQuery(ctx context.Context, orgID string, rowText string) (string, error)
}
