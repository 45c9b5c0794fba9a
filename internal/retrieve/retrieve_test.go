package retrieve

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/repository"
	"github.com/corewell/memoryd/internal/scope"
	"github.com/corewell/memoryd/internal/workflow"
)

type scriptedLLMClient struct {
	chatResponses []string
	chatCalls     int
	embedding     []float32
}

func (c *scriptedLLMClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	if c.chatCalls >= len(c.chatResponses) {
		return "", nil
	}
	resp := c.chatResponses[c.chatCalls]
	c.chatCalls++
	return resp, nil
}

func (c *scriptedLLMClient) Summarize(ctx context.Context, text, instruction string) (string, error) {
	return text, nil
}

func (c *scriptedLLMClient) Vision(ctx context.Context, req llm.VisionRequest) (string, error) {
	return "", nil
}

func (c *scriptedLLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.embedding
	}
	return out, nil
}

func (c *scriptedLLMClient) Transcribe(ctx context.Context, audio llm.Image) (string, error) {
	return "", nil
}

var scriptedClient *scriptedLLMClient

func init() {
	llm.RegisterBackend("scripted", func(p llm.Profile) llm.Client { return scriptedClient })
}

func seedItem(t *testing.T, repos ports.Repositories, summary string, memType memcore.MemoryType, embedding []float32, sc memcore.Scope) {
	t.Helper()
	item := &memcore.MemoryItem{
		ID:         memcore.NewID("item"),
		MemoryType: memType,
		Summary:    summary,
		Embedding:  embedding,
		Scope:      sc,
	}
	require.NoError(t, repos.Items.Create(context.Background(), item))
}

func testDeps(t *testing.T, chatResponses []string) (Deps, ports.Repositories) {
	t.Helper()
	scriptedClient = &scriptedLLMClient{chatResponses: chatResponses, embedding: []float32{1, 0, 0}}
	cache := llm.NewCache(map[string]config.ProviderProfile{
		"default": {ClientBackend: "scripted", ChatModel: "fake-chat", EmbedModel: "fake-embed"},
	})
	repos := ports.Repositories{
		Resources:     repository.NewMemoryResourceRepository(),
		Items:         repository.NewMemoryItemRepository(),
		Categories:    repository.NewMemoryCategoryRepository(),
		CategoryItems: repository.NewMemoryCategoryItemRepository(),
	}
	cfg := config.RetrieveConfig{
		Method:         config.RetrieveMethodRAG,
		RouteIntention: true,
		Category:       config.RetrieveSectionConfig{Enabled: true, TopK: 3},
		Item:           config.RetrieveSectionConfig{Enabled: true, TopK: 3},
		Resource:       config.RetrieveSectionConfig{Enabled: true, TopK: 3},
		Salience:       config.SalienceConfig{Alpha: 1, Beta: 0, Gamma: 0},
	}
	return Deps{Repos: repos, LLM: cache, Config: cfg, ScopeModel: scope.NewModel([]string{"user_id"})}, repos
}

func runRetrieve(t *testing.T, deps Deps, queries []memcore.QueryMessage, where ports.Where) *workflow.State {
	t.Helper()
	pipeline := NewPipeline(deps, deps.Config.Method)
	state := workflow.NewState(map[string]any{
		KeyQueries: queries,
		KeyWhere:   where,
	})
	runner := workflow.NewRunner()
	require.NoError(t, runner.Run(context.Background(), &pipeline, state, workflow.Interceptors{}))
	return state
}

func TestRetrieveRAG_EndToEnd(t *testing.T) {
	deps, repos := testDeps(t, []string{
		`{"needs_retrieval": true, "rewritten_query": "What are Alice's hobbies?", "next_step_query": ""}`,
	})
	sc := memcore.Scope{"user_id": "alice"}
	seedItem(t, repos, "Alice enjoys hiking on weekends.", memcore.MemoryTypeBehavior, []float32{1, 0, 0}, sc)
	seedItem(t, repos, "Alice works at Acme Corp.", memcore.MemoryTypeProfile, []float32{0, 1, 0}, sc)

	state := runRetrieve(t, deps, []memcore.QueryMessage{
		{Role: "user", Content: memcore.QueryContent{Text: "What are Alice's hobbies?"}},
	}, ports.Where{"user_id": "alice"})

	result := BuildResult(state)
	require.True(t, result.NeedsRetrieval)
	require.True(t, strings.Contains(strings.ToLower(result.RewrittenQuery), "hobbies"))
	require.NotEmpty(t, result.Items)
	require.Equal(t, memcore.MemoryTypeBehavior, result.Items[0].Item.MemoryType)
	require.Greater(t, result.Items[0].Score, 0.0)
	require.LessOrEqual(t, result.Items[0].Score, 1.0)
}

func TestRetrieve_NoRetrievalNeeded(t *testing.T) {
	deps, repos := testDeps(t, []string{
		`{"needs_retrieval": false, "rewritten_query": "", "next_step_query": ""}`,
	})
	sc := memcore.Scope{"user_id": "alice"}
	seedItem(t, repos, "Alice enjoys hiking.", memcore.MemoryTypeBehavior, []float32{1, 0, 0}, sc)

	state := runRetrieve(t, deps, []memcore.QueryMessage{
		{Role: "user", Content: memcore.QueryContent{Text: "hello"}},
	}, ports.Where{"user_id": "alice"})

	result := BuildResult(state)
	require.False(t, result.NeedsRetrieval)
	require.Empty(t, result.Items)
	require.Empty(t, result.Categories)
	require.Empty(t, result.Resources)
}

func TestRetrieve_SufficiencyShortCircuitsRemainingSections(t *testing.T) {
	deps, repos := testDeps(t, []string{
		`{"needs_retrieval": true, "rewritten_query": "hobbies", "next_step_query": ""}`,
		"yes",
	})
	deps.Config.SufficiencyCheck = true
	sc := memcore.Scope{"user_id": "alice"}

	now := time.Now()
	cat := &memcore.MemoryCategory{ID: memcore.NewID("cat"), Name: "activities", Embedding: []float32{1, 0, 0}, Scope: sc, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repos.Categories.Create(context.Background(), cat))
	seedItem(t, repos, "Alice enjoys hiking.", memcore.MemoryTypeBehavior, []float32{1, 0, 0}, sc)

	state := runRetrieve(t, deps, []memcore.QueryMessage{
		{Role: "user", Content: memcore.QueryContent{Text: "hobbies"}},
	}, ports.Where{"user_id": "alice"})

	result := BuildResult(state)
	require.True(t, result.NeedsRetrieval)
	require.Len(t, result.Categories, 1)
	require.Empty(t, result.Items)
	require.Empty(t, result.Resources)
}

func TestRetrieve_LLMRankingFallsBackToRAGOnInvalidOutput(t *testing.T) {
	deps, repos := testDeps(t, []string{
		`{"needs_retrieval": true, "rewritten_query": "hobbies", "next_step_query": ""}`,
		"not json",
		"not json",
		"not json",
	})
	deps.Config.Method = config.RetrieveMethodLLM
	sc := memcore.Scope{"user_id": "alice"}
	seedItem(t, repos, "Alice enjoys hiking.", memcore.MemoryTypeBehavior, []float32{1, 0, 0}, sc)

	state := runRetrieve(t, deps, []memcore.QueryMessage{
		{Role: "user", Content: memcore.QueryContent{Text: "hobbies"}},
	}, ports.Where{"user_id": "alice"})

	result := BuildResult(state)
	require.True(t, result.NeedsRetrieval)
	require.NotEmpty(t, result.Items)
}
