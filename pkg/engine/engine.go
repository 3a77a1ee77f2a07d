// Copyright 2025 Bora Kaplan
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kaplanbora/sage/pkg/config"
	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/observability"
	"github.com/kaplanbora/sage/pkg/pages"
	"github.com/kaplanbora/sage/pkg/trace"
)

// fallbackQueryBudget caps how many fallback queries run when primary
// queries find too little.
const (
	fallbackQueryBudget  = 2
	minResultsBeforeFall = 3
)

// Engine runs the retrieval pipeline against a page store and a model.
type Engine struct {
	llm              llms.Provider
	store            pages.Store
	cfg              *config.EngineConfig
	workspaceContext string
	logger           *slog.Logger
}

func New(llm llms.Provider, store pages.Store, cfg *config.EngineConfig, workspaceContext string) *Engine {
	return &Engine{
		llm:              llm,
		store:            store,
		cfg:              cfg,
		workspaceContext: workspaceContext,
		logger:           slog.Default(),
	}
}

// ProcessQuery answers a question from the page store. It never returns an
// error: every internal failure degrades to a narrower fallback, terminating
// at worst in a "no results" answer with confidence 0.0.
func (e *Engine) ProcessQuery(ctx context.Context, question, contextHint string, scope SearchScope, maxPages int) *SynthesizedAnswer {
	tracer := observability.GetTracer("engine")
	ctx, span := tracer.Start(ctx, observability.SpanPipelineQuery)
	defer span.End()

	if maxPages <= 0 {
		maxPages = e.cfg.FetchTopN
	}

	if !e.cfg.IsEnabled() {
		e.logger.Debug("Pipeline disabled, using simple fallback")
		return e.simpleFallback(ctx, question)
	}

	answer, err := e.run(ctx, question, contextHint, scope, maxPages)
	if err != nil {
		e.logger.Error("Pipeline failed, using simple fallback", "error", err)
		e.recordError(ctx, "pipeline", err)
		return e.simpleFallback(ctx, question)
	}
	return answer
}

func (e *Engine) run(ctx context.Context, question, contextHint string, scope SearchScope, maxPages int) (*SynthesizedAnswer, error) {
	strategy := e.analyzeIntent(ctx, question, contextHint, scope)
	e.logger.Debug("Search strategy ready",
		"primary_queries", len(strategy.PrimaryQueries),
		"fallback_queries", len(strategy.FallbackQueries))

	results, err := e.executeSearch(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return e.noResultsAnswer(ctx, question), nil
	}

	results = e.rerankResults(ctx, question, results)

	fetchBudget := e.cfg.FetchTopN
	if maxPages < fetchBudget {
		fetchBudget = maxPages
	}
	e.fetchContent(ctx, results, fetchBudget)

	if !e.cfg.UseSynthesis() {
		return e.rawResultsAnswer(question, results), nil
	}
	return e.synthesize(ctx, question, results)
}

// analyzeIntent is Stage 1. Any failure falls back to searching with the
// raw question.
func (e *Engine) analyzeIntent(ctx context.Context, question, contextHint string, scope SearchScope) SearchStrategy {
	fallback := SearchStrategy{PrimaryQueries: []string{question}}
	if !e.cfg.UseQueryExpansion() {
		return fallback
	}

	defer e.recordStage("intent", time.Now())

	resp, err := e.llm.Generate(ctx, llms.Request{
		SystemPrompt: intentSystemPrompt,
		Prompt:       buildIntentPrompt(e.workspaceContext, question, contextHint, scope),
	})
	if err != nil {
		e.logger.Warn("Intent analysis failed, searching with raw question", "error", err)
		e.recordError(ctx, "intent", err)
		return fallback
	}
	return parseStrategy(resp.Text, question)
}

// executeSearch is Stage 2. Results deduplicate by page_id across queries,
// first occurrence wins, in query order then result order.
func (e *Engine) executeSearch(ctx context.Context, strategy SearchStrategy) ([]RankedResult, error) {
	defer e.recordStage("search", time.Now())

	queries := strategy.PrimaryQueries
	if len(queries) > e.cfg.MaxQueries {
		queries = queries[:e.cfg.MaxQueries]
	}

	seen := make(map[string]bool)
	var results []RankedResult
	failures := 0

	runQueries := func(qs []string) {
		for _, query := range qs {
			hits, err := e.store.SearchIndex(ctx, query, e.cfg.RerankTopN)
			if err != nil {
				e.logger.Warn("Search query failed", "query", query, "error", err)
				e.recordError(ctx, "search", err)
				failures++
				continue
			}
			for _, hit := range hits {
				if seen[hit.PageID] {
					continue
				}
				seen[hit.PageID] = true
				results = append(results, RankedResult{
					PageID:      hit.PageID,
					Title:       hit.Title,
					Path:        hit.Path,
					Summary:     hit.Summary,
					VectorScore: hit.Score,
					Metadata:    hit.Metadata,
				})
			}
		}
	}

	runQueries(queries)

	if len(results) < minResultsBeforeFall && len(strategy.FallbackQueries) > 0 {
		fallbacks := strategy.FallbackQueries
		if len(fallbacks) > fallbackQueryBudget {
			fallbacks = fallbacks[:fallbackQueryBudget]
		}
		runQueries(fallbacks)
	}

	if len(results) == 0 && failures > 0 && failures == len(queries) {
		return nil, fmt.Errorf("all %d search queries failed", failures)
	}
	return results, nil
}

// rerankResults is Stage 3. Skipped when disabled or when there is at most
// one candidate. Results the model omits keep their vector score; a total
// parse failure falls back to vector scores for everything. The returned
// list is sorted descending by relevance.
func (e *Engine) rerankResults(ctx context.Context, question string, results []RankedResult) []RankedResult {
	if !e.cfg.UseReranking() || len(results) <= 1 {
		for i := range results {
			results[i].RelevanceScore = float64(results[i].VectorScore)
			results[i].RelevanceReasoning = "Ranked by vector similarity"
		}
		sortByRelevance(results)
		return results
	}

	defer e.recordStage("rerank", time.Now())

	candidates := results
	if len(candidates) > e.cfg.RerankTopN {
		candidates = candidates[:e.cfg.RerankTopN]
	}

	var ranking map[string]rerankEntry
	resp, err := e.llm.Generate(ctx, llms.Request{
		SystemPrompt: rerankSystemPrompt,
		Prompt:       buildRerankPrompt(question, candidates),
	})
	if err != nil {
		e.logger.Warn("Rerank model call failed, keeping vector order", "error", err)
		e.recordError(ctx, "rerank", err)
	} else {
		ranking = parseRerank(resp.Text)
	}

	if ranking == nil {
		for i := range results {
			results[i].RelevanceScore = float64(results[i].VectorScore)
			results[i].RelevanceReasoning = "Fallback: using vector similarity"
		}
	} else {
		for i := range results {
			if entry, ok := ranking[results[i].PageID]; ok {
				results[i].RelevanceScore = entry.score
				results[i].RelevanceReasoning = entry.reasoning
			} else {
				results[i].RelevanceScore = float64(results[i].VectorScore)
				results[i].RelevanceReasoning = "Ranked by vector similarity"
			}
		}
	}

	sortByRelevance(results)
	return results
}

// fetchContent is Stage 4. The top results get full page bodies fetched
// concurrently; a failed fetch keeps the result without content.
func (e *Engine) fetchContent(ctx context.Context, results []RankedResult, budget int) {
	defer e.recordStage("fetch", time.Now())

	if budget > len(results) {
		budget = len(results)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < budget; i++ {
		g.Go(func() error {
			page, err := e.store.FetchPage(gctx, results[i].PageID)
			if err != nil {
				e.logger.Warn("Content fetch failed", "page_id", results[i].PageID, "error", err)
				e.recordError(gctx, "fetch", err)
				return nil
			}
			if page != nil {
				results[i].Content = page.Content
			}
			return nil
		})
	}
	g.Wait()
}

// synthesize is Stage 5. The model writes an answer followed by a metadata
// block; the block parses defensively and missing metadata takes defaults.
func (e *Engine) synthesize(ctx context.Context, question string, results []RankedResult) (*SynthesizedAnswer, error) {
	defer e.recordStage("synthesis", time.Now())

	oteltrace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("pipeline.pages_analyzed", len(results)))

	resp, err := e.llm.Generate(ctx, llms.Request{
		SystemPrompt: synthesisSystemPrompt,
		Prompt:       buildSynthesisPrompt(question, results),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	answerText, meta := splitSynthesisResponse(resp.Text)
	return &SynthesizedAnswer{
		Answer:              answerText,
		Confidence:          meta.confidence,
		Citations:           meta.citations,
		GapsIdentified:      meta.gapsIdentified,
		FollowUpSuggestions: meta.followUpSuggestions,
		PagesAnalyzed:       len(results),
	}, nil
}

func (e *Engine) recordStage(stage string, start time.Time) {
	observability.GetGlobalMetrics().RecordStage(stage, time.Since(start))
}

// recordError appends a stage failure to the request trace when one is
// riding on the context. Failures degrade to fallbacks, so the trace is the
// only per-request record of them.
func (e *Engine) recordError(ctx context.Context, stage string, err error) {
	if tr := trace.FromContext(ctx); tr != nil {
		tr.AddEvent(trace.EventError, "engine", stage, truncate(err.Error(), 200), nil, nil)
	}
}

func sortByRelevance(results []RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}
