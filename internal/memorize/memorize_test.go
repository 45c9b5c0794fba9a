package memorize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/blob"
	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/repository"
	"github.com/corewell/memoryd/internal/scope"
	"github.com/corewell/memoryd/internal/workflow"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, source string) (*blob.Blob, error) {
	return &blob.Blob{ContentType: "text/plain", Data: []byte("alice prefers dark mode and works at Acme Corp.")}, nil
}

type fakeLLMClient struct{}

func (fakeLLMClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	return `[{"summary":"Alice prefers dark mode.","category_hints":["preferences"]}]`, nil
}

func (fakeLLMClient) Summarize(ctx context.Context, text, instruction string) (string, error) {
	return "Alice prefers dark mode and works at Acme Corp.", nil
}

func (fakeLLMClient) Vision(ctx context.Context, req llm.VisionRequest) (string, error) {
	return "a caption", nil
}

func (fakeLLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (fakeLLMClient) Transcribe(ctx context.Context, audio llm.Image) (string, error) {
	return "transcript", nil
}

func init() {
	llm.RegisterBackend("fake", func(p llm.Profile) llm.Client { return fakeLLMClient{} })
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	cache := llm.NewCache(map[string]config.ProviderProfile{
		"default": {ClientBackend: "fake", ChatModel: "fake-chat", EmbedModel: "fake-embed"},
	})
	return Deps{
		Fetcher:     fakeFetcher{},
		ResourceDir: t.TempDir(),
		Repos: ports.Repositories{
			Resources:     repository.NewMemoryResourceRepository(),
			Items:         repository.NewMemoryItemRepository(),
			Categories:    repository.NewMemoryCategoryRepository(),
			CategoryItems: repository.NewMemoryCategoryItemRepository(),
		},
		LLM: cache,
		Config: config.MemorizeConfig{
			MemoryTypes:                     []string{"profile"},
			DefaultCategorySummaryTargetLen: 500,
		},
		ScopeModel: scope.NewModel([]string{"user_id"}),
	}
}

func TestMemorizePipeline_EndToEnd(t *testing.T) {
	deps := testDeps(t)
	pipeline := NewPipeline(deps)

	state := workflow.NewState(map[string]any{
		KeyResourceURL:   "./fixtures/chat1.json",
		KeyModality:      memcore.ModalityConversation,
		KeyScope:         memcore.Scope{"user_id": "alice"},
		KeySummaryPrompt: "",
	})

	runner := workflow.NewRunner()
	err := runner.Run(context.Background(), &pipeline, state, workflow.Interceptors{})
	require.NoError(t, err)

	respVal, ok := state.Get(KeyResponse)
	require.True(t, ok)
	resp := respVal.(memcore.MemorizeResult)

	require.Equal(t, "alice", resp.Resource.Scope["user_id"])
	require.Len(t, resp.Items, 1)
	require.Equal(t, "Alice prefers dark mode.", resp.Items[0].Summary)
	require.Len(t, resp.Relations, 1)
	require.NotEmpty(t, resp.Items[0].Embedding)
}
