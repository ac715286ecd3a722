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

package runner

import (
	"context"
	"strings"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/providers"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/rag"
)

// maxSynthesizedQueryLen bounds the naive query synthesizer's output so a
// long row never turns into an oversized keyword/vector search query.
const maxSynthesizedQueryLen = 512

// RouterEmbedder adapts a ChatCaller's Embed method to rag.Embedder, so a
// Retriever can vectorize search queries through the same router every
// other embedding call goes through (deployment routing, retries, and
// cooldowns apply identically).
type RouterEmbedder struct {
	router ChatCaller
}

// NewRouterEmbedder constructs a RouterEmbedder.
func NewRouterEmbedder(rtr ChatCaller) *RouterEmbedder {
	return &RouterEmbedder{router: rtr}
}

var _ rag.Embedder = (*RouterEmbedder)(nil)

// EmbedQuery implements rag.Embedder.
func (e *RouterEmbedder) EmbedQuery(ctx context.Context, orgID, modelID, text string) ([]float32, error) {
	resp, err := e.router.Embed(ctx, orgID, modelID, providers.EmbeddingRequest{
		Input:          []string{text},
		EncodingFormat: providers.EncodingFloat,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].Vector, nil
}

// RouterReranker adapts a ChatCaller's Rerank method to rag.Reranker.
type RouterReranker struct {
	router ChatCaller
}

// NewRouterReranker constructs a RouterReranker.
func NewRouterReranker(rtr ChatCaller) *RouterReranker {
	return &RouterReranker{router: rtr}
}

var _ rag.Reranker = (*RouterReranker)(nil)

// Rerank implements rag.Reranker.
func (rr *RouterReranker) Rerank(ctx context.Context, orgID, modelID, query string, documents []string) ([]rag.RerankedIndex, error) {
	resp, err := rr.router.Rerank(ctx, orgID, modelID, providers.RerankRequest{
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, err
	}
	out := make([]rag.RerankedIndex, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = rag.RerankedIndex{Index: r.Index, RelevanceScore: r.RelevanceScore}
	}
	return out, nil
}

// PassthroughSynthesizer implements rag.QuerySynthesizer by truncating
// the row's own text rather than asking a model to rephrase it into a
// search query. No query-rewriting model is configured anywhere in this
// stack, so this is the synthesizer every Retriever gets by default; a
// deployment that wants an LLM-synthesized query supplies its own
// rag.QuerySynthesizer backed by a Runner-style Chat call instead.
type PassthroughSynthesizer struct{}

var _ rag.QuerySynthesizer = PassthroughSynthesizer{}

// SynthesizeQuery implements rag.QuerySynthesizer.
func (PassthroughSynthesizer) SynthesizeQuery(_ context.Context, _ string, rowText string) (string, error) {
	rowText = strings.TrimSpace(rowText)
	if len(rowText) > maxSynthesizedQueryLen {
		rowText = rowText[:maxSynthesizedQueryLen]
	}
	return rowText, nil
}
