package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaplanbora/sage/pkg/config"
	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/pages"
	"github.com/kaplanbora/sage/pkg/trace"
)

// scriptedProvider replies based on which system prompt the engine sent, so
// one fake covers all pipeline stages.
type scriptedProvider struct {
	intentReply    string
	rerankReply    string
	synthesisReply string
	noResultsReply string
	calls          int
	err            error
}

func (p *scriptedProvider) Generate(ctx context.Context, req llms.Request) (*llms.Response, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	switch req.SystemPrompt {
	case intentSystemPrompt:
		return &llms.Response{Text: p.intentReply}, nil
	case rerankSystemPrompt:
		return &llms.Response{Text: p.rerankReply}, nil
	case synthesisSystemPrompt:
		return &llms.Response{Text: p.synthesisReply}, nil
	case noResultsSystemPrompt:
		return &llms.Response{Text: p.noResultsReply}, nil
	}
	return &llms.Response{Text: ""}, nil
}

func (p *scriptedProvider) ModelName() string { return "scripted" }
func (p *scriptedProvider) Close() error      { return nil }

type fakeStore struct {
	hits      map[string][]pages.IndexHit
	pages     map[string]*pages.Page
	searchErr error
	fetchErr  error
}

func (s *fakeStore) SearchIndex(ctx context.Context, query string, maxResults int) ([]pages.IndexHit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if hits, ok := s.hits[query]; ok {
		return hits, nil
	}
	return s.hits["*"], nil
}

func (s *fakeStore) FetchPage(ctx context.Context, pageID string) (*pages.Page, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.pages[pageID], nil
}

func testConfig() *config.EngineConfig {
	cfg := &config.EngineConfig{}
	cfg.SetDefaults()
	return cfg
}

func boolPtr(b bool) *bool { return &b }

func TestProcessQueryHappyPath(t *testing.T) {
	store := &fakeStore{
		hits: map[string][]pages.IndexHit{
			"*": {
				{PageID: "p1", Title: "Project Plan", Path: "/plan", Summary: "Timeline and milestones", Score: 0.8},
				{PageID: "p2", Title: "Meeting Notes", Path: "/notes", Summary: "Weekly sync notes", Score: 0.6},
			},
		},
		pages: map[string]*pages.Page{
			"p1": {PageID: "p1", Title: "Project Plan", Content: "The project deadline is March 15."},
			"p2": {PageID: "p2", Title: "Meeting Notes", Content: "Discussed staffing."},
		},
	}
	provider := &scriptedProvider{
		intentReply: `{"primary_queries": ["project deadline"], "reasoning": "direct lookup"}`,
		rerankReply: `[{"page_id": "p1", "relevance_score": 0.9, "relevance_reasoning": "mentions the deadline"},
			{"page_id": "p2", "relevance_score": 0.2, "relevance_reasoning": "unrelated"}]`,
		synthesisReply: "The project deadline is March 15.\n---METADATA---\n" +
			`{"confidence": 0.9, "citations": [{"page_id": "p1", "title": "Project Plan", "path": "/plan", "excerpt": "deadline is March 15"}]}`,
	}

	e := New(provider, store, testConfig(), "test workspace")
	answer := e.ProcessQuery(context.Background(), "When is the project deadline?", "", ScopePrecise, 3)

	require.NotNil(t, answer)
	assert.Contains(t, answer.Answer, "March 15")
	assert.Greater(t, answer.Confidence, 0.8)
	assert.Len(t, answer.Citations, 1)
	assert.Equal(t, "p1", answer.Citations[0].PageID)
	assert.Equal(t, 2, answer.PagesAnalyzed)
}

func TestProcessQueryNoResults(t *testing.T) {
	store := &fakeStore{hits: map[string][]pages.IndexHit{}}
	provider := &scriptedProvider{
		intentReply:    `{"primary_queries": ["anything"]}`,
		noResultsReply: "I couldn't find anything about that in the workspace.",
	}

	e := New(provider, store, testConfig(), "test workspace")
	answer := e.ProcessQuery(context.Background(), "unknown topic", "", ScopeExploratory, 3)

	assert.Equal(t, 0.0, answer.Confidence)
	assert.Empty(t, answer.Citations)
	assert.Contains(t, strings.ToLower(answer.Answer), "couldn't find")
}

func TestProcessQueryDisabledEngineMakesNoModelCalls(t *testing.T) {
	store := &fakeStore{
		hits: map[string][]pages.IndexHit{
			"*": {{PageID: "p1", Title: "Doc", Path: "/doc", Summary: "A summary", Score: 0.9}},
		},
		pages: map[string]*pages.Page{
			"p1": {PageID: "p1", Content: "Full body of the document."},
		},
	}
	provider := &scriptedProvider{}

	cfg := testConfig()
	cfg.Enabled = boolPtr(false)

	e := New(provider, store, cfg, "test workspace")
	answer := e.ProcessQuery(context.Background(), "question", "", ScopePrecise, 3)

	assert.Zero(t, provider.calls)
	assert.Equal(t, 0.7, answer.Confidence)
	require.Len(t, answer.Citations, 1)
	assert.Contains(t, answer.Answer, "Full body")
}

func TestProcessQueryDisabledEngineNoMatch(t *testing.T) {
	store := &fakeStore{hits: map[string][]pages.IndexHit{}}
	provider := &scriptedProvider{}

	cfg := testConfig()
	cfg.Enabled = boolPtr(false)

	e := New(provider, store, cfg, "test workspace")
	answer := e.ProcessQuery(context.Background(), "question", "", ScopePrecise, 3)

	assert.Zero(t, provider.calls)
	assert.Equal(t, 0.0, answer.Confidence)
	assert.Empty(t, answer.Citations)
}

func TestProcessQueryTotalFailureFallsBack(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("index offline")}
	provider := &scriptedProvider{intentReply: `{"primary_queries": ["q"]}`}

	e := New(provider, store, testConfig(), "test workspace")
	answer := e.ProcessQuery(context.Background(), "question", "", ScopePrecise, 3)

	require.NotNil(t, answer)
	assert.Equal(t, 0.0, answer.Confidence)
}

func TestStageFailuresLandOnRequestTrace(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("index offline")}
	provider := &scriptedProvider{intentReply: `{"primary_queries": ["q"]}`}

	tr := trace.New()
	ctx := trace.NewContext(context.Background(), tr)

	e := New(provider, store, testConfig(), "test workspace")
	e.ProcessQuery(ctx, "question", "", ScopePrecise, 3)

	var stages []string
	for _, event := range tr.Events() {
		if event.EventType == trace.EventError {
			assert.Equal(t, "engine", event.Source)
			stages = append(stages, event.Target)
		}
	}
	assert.Contains(t, stages, "search")
	assert.Contains(t, stages, "pipeline")
}

func TestExecuteSearchDeduplicatesFirstSeenWins(t *testing.T) {
	store := &fakeStore{
		hits: map[string][]pages.IndexHit{
			"query one": {
				{PageID: "a", Title: "A", Score: 0.9},
				{PageID: "b", Title: "B", Score: 0.8},
			},
			"query two": {
				{PageID: "b", Title: "B-duplicate", Score: 0.99},
				{PageID: "c", Title: "C", Score: 0.7},
			},
		},
	}
	e := New(&scriptedProvider{}, store, testConfig(), "")

	results, err := e.executeSearch(context.Background(), SearchStrategy{
		PrimaryQueries: []string{"query one", "query two"},
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].PageID, results[1].PageID, results[2].PageID})
	assert.Equal(t, "B", results[1].Title)
}

func TestExecuteSearchRunsFallbackQueriesWhenSparse(t *testing.T) {
	store := &fakeStore{
		hits: map[string][]pages.IndexHit{
			"narrow":  {{PageID: "a", Score: 0.9}},
			"broader": {{PageID: "b", Score: 0.5}, {PageID: "c", Score: 0.4}},
		},
	}
	e := New(&scriptedProvider{}, store, testConfig(), "")

	results, err := e.executeSearch(context.Background(), SearchStrategy{
		PrimaryQueries:  []string{"narrow"},
		FallbackQueries: []string{"broader"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRerankMalformedOutputFallsBackToVectorScores(t *testing.T) {
	provider := &scriptedProvider{rerankReply: "I cannot rank these results, sorry."}
	e := New(provider, &fakeStore{}, testConfig(), "")

	results := []RankedResult{
		{PageID: "a", VectorScore: 0.5},
		{PageID: "b", VectorScore: 0.9},
	}
	ranked := e.rerankResults(context.Background(), "q", results)

	for _, r := range ranked {
		assert.Equal(t, float64(r.VectorScore), r.RelevanceScore)
		assert.Equal(t, "Fallback: using vector similarity", r.RelevanceReasoning)
	}
	assert.Equal(t, "b", ranked[0].PageID)
}

func TestRerankMissingResultKeepsVectorScore(t *testing.T) {
	provider := &scriptedProvider{
		rerankReply: `[{"page_id": "a", "relevance_score": 0.95, "relevance_reasoning": "on point"}]`,
	}
	e := New(provider, &fakeStore{}, testConfig(), "")

	results := []RankedResult{
		{PageID: "a", VectorScore: 0.5},
		{PageID: "b", VectorScore: 0.7},
	}
	ranked := e.rerankResults(context.Background(), "q", results)

	assert.Equal(t, "a", ranked[0].PageID)
	assert.Equal(t, 0.95, ranked[0].RelevanceScore)
	assert.Equal(t, 0.7, ranked[1].RelevanceScore)
	assert.Equal(t, "Ranked by vector similarity", ranked[1].RelevanceReasoning)
}

func TestRerankOutputIsSortedDescending(t *testing.T) {
	provider := &scriptedProvider{
		rerankReply: `[{"page_id": "a", "relevance_score": 0.3, "relevance_reasoning": "x"},
			{"page_id": "b", "relevance_score": 0.9, "relevance_reasoning": "y"},
			{"page_id": "c", "relevance_score": 0.6, "relevance_reasoning": "z"}]`,
	}
	e := New(provider, &fakeStore{}, testConfig(), "")

	results := []RankedResult{
		{PageID: "a", VectorScore: 0.1},
		{PageID: "b", VectorScore: 0.1},
		{PageID: "c", VectorScore: 0.1},
	}
	ranked := e.rerankResults(context.Background(), "q", results)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].RelevanceScore, ranked[i].RelevanceScore)
	}
}

func TestFetchFailureKeepsResultWithoutContent(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("storage timeout")}
	e := New(&scriptedProvider{}, store, testConfig(), "")

	results := []RankedResult{{PageID: "a", Summary: "summary text"}}
	e.fetchContent(context.Background(), results, 1)

	assert.Empty(t, results[0].Content)
}

func TestRawResultsAnswerWhenSynthesisDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.AnswerSynthesis = boolPtr(false)
	e := New(&scriptedProvider{}, &fakeStore{}, cfg, "")

	results := []RankedResult{
		{PageID: "a", Title: "One", Path: "/one", Summary: "first"},
		{PageID: "b", Title: "Two", Path: "/two", Summary: "second"},
	}
	answer := e.rawResultsAnswer("question", results)

	assert.Equal(t, 0.6, answer.Confidence)
	assert.Len(t, answer.Citations, 2)
	assert.Contains(t, answer.Answer, "One")
	assert.Contains(t, answer.Answer, "Two")
}

func TestSplitSynthesisResponseDefaults(t *testing.T) {
	answer, meta := splitSynthesisResponse("Just an answer with no metadata block.")
	assert.Equal(t, "Just an answer with no metadata block.", answer)
	assert.Equal(t, 0.7, meta.confidence)
	assert.Empty(t, meta.citations)
	assert.Empty(t, meta.gapsIdentified)

	answer, meta = splitSynthesisResponse("Answer.\n---METADATA---\nthis is not json")
	assert.Equal(t, "Answer.", answer)
	assert.Equal(t, 0.7, meta.confidence)
}

func TestParseStrategyCoercion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "well formed object",
			text: `{"primary_queries": ["a", "b"], "fallback_queries": ["c"]}`,
			want: []string{"a", "b"},
		},
		{
			name: "bare list of strings",
			text: `["query one", "query two"]`,
			want: []string{"query one", "query two"},
		},
		{
			name: "list of objects takes first",
			text: `[{"primary_queries": ["x"]}, {"primary_queries": ["y"]}]`,
			want: []string{"x"},
		},
		{
			name: "garbage falls back to question",
			text: "no json here",
			want: []string{"the question"},
		},
		{
			name: "fenced block",
			text: "```json\n{\"primary_queries\": [\"fenced\"]}\n```",
			want: []string{"fenced"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseStrategy(tt.text, "the question")
			assert.Equal(t, tt.want, got.PrimaryQueries)
		})
	}
}

func TestNormalizeGaps(t *testing.T) {
	assert.Equal(t, "", normalizeGaps(nil))
	assert.Equal(t, "missing pricing", normalizeGaps("missing pricing"))
	assert.Equal(t, "a; b", normalizeGaps([]any{"a", "b"}))
	assert.Equal(t, "no dates", normalizeGaps([]any{map[string]any{"detail": "no dates"}}))
	assert.Equal(t, "42", normalizeGaps(float64(42)))
}

func TestNormalizeFollowUps(t *testing.T) {
	got := normalizeFollowUps([]any{
		"plain string",
		map[string]any{"question": "from question key"},
		map[string]any{"suggestion": "from suggestion key"},
		float64(7),
	})
	assert.Equal(t, []string{"plain string", "from question key", "from suggestion key", "7"}, got)
}
