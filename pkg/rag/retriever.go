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

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Retriever resolves RAG references for a gen_config at row-execution
// time. A failed search at runtime (table gone, embedding model missing)
// surfaces as empty References rather than an error: the caller's LLM
// call proceeds without citations. Gen-config validation is expected to
// have already rejected unreachable tables/models before a row ever
// reaches the retriever.
type Retriever struct {
	vector    VectorSearcher
	keyword   KeywordSearcher
	embedder  Embedder
	reranker  Reranker
	synth     QuerySynthesizer
	embedModel string
}

// New constructs a Retriever. embedModel is the embedding model used to
// vectorize the (possibly synthesized) search query.
func New(vector VectorSearcher, keyword KeywordSearcher, embedder Embedder, reranker Reranker, synth QuerySynthesizer, embedModel string) *Retriever {
	return &Retriever{vector: vector, keyword: keyword, embedder: embedder, reranker: reranker, synth: synth, embedModel: embedModel}
}

// Retrieve performs hybrid search, optional reranking, and produces the
// References side channel plus a system message listing the chunks.
// rowText is the current row's concatenated text inputs, used only if
// params.SearchQuery is empty.
func (r *Retriever) Retrieve(ctx context.Context, orgID string, params Params, rowText string) (References, string) {
	query := params.SearchQuery
	if query == "" {
		synthesized, err := r.synth.SynthesizeQuery(ctx, orgID, rowText)
		if err != nil {
			return References{}, ""
		}
		query = synthesized
	}

	limit := params.K
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, orgID, r.embedModel, query)
	if err != nil {
		return References{}, ""
	}
	vectorHits, err := r.vector.SearchVector(ctx, params.TableID, queryVec, limit)
	if err != nil {
		vectorHits = nil
	}
	keywordHits, err := r.keyword.SearchBM25(ctx, params.TableID, query, limit)
	if err != nil {
		keywordHits = nil
	}
	if len(vectorHits) == 0 && len(keywordHits) == 0 {
		return References{SearchQuery: query}, ""
	}

	fused := ReciprocalRankFusion(limit, vectorHits, keywordHits)

	if params.RerankingModel != "" {
		fused = r.rerank(ctx, orgID, params, fused, query)
	}

	refs := References{Chunks: fused, SearchQuery: query}
	return refs, formatCitationMessage(fused, params.InlineCitations)
}

func (r *Retriever) rerank(ctx context.Context, orgID string, params Params, chunks []Chunk, query string) []Chunk {
	docs := make([]string, len(chunks))
	for i, c := range chunks {
		if params.ConcatRerankerInput {
			docs[i] = c.Title + "\n" + c.Text
		} else {
			docs[i] = c.Text
		}
	}

	ranked, err := r.reranker.Rerank(ctx, orgID, params.RerankingModel, query, docs)
	if err != nil {
		return chunks // runtime rerank failure: fall back to RRF order.
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].RelevanceScore > ranked[j].RelevanceScore })

	out := make([]Chunk, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(chunks) {
			continue
		}
		c := chunks[r.Index]
		c.RRFScore = r.RelevanceScore
		out = append(out, c)
	}
	if len(out) > params.K && params.K > 0 {
		out = out[:params.K]
	}
	return out
}

// formatCitationMessage renders the retrieved chunks as a system message
// listing them [@0] ... [@n-1].
func formatCitationMessage(chunks []Chunk, inlineCitations bool) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("The following reference passages may help answer the request:\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[@%d] %s\n%s\n", i, c.Title, c.Text)
	}
	if inlineCitations {
		sb.WriteString("Cite sources inline using [@i] or [@i; @j] for multiple.")
	}
	return sb.String()
}
