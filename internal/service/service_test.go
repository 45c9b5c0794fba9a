package service

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

type fakeFetcher struct{ text string }

func (f fakeFetcher) Fetch(ctx context.Context, source string) (*blob.Blob, error) {
	return &blob.Blob{ContentType: "text/plain", Data: []byte(f.text)}, nil
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
	llm.RegisterBackend("fake-service", func(p llm.Profile) llm.Client { return fakeLLMClient{} })
}

func testConfig() *config.Config {
	return &config.Config{
		LLMProfiles: map[string]config.ProviderProfile{
			"default": {ClientBackend: "fake-service", ChatModel: "fake-chat", EmbedModel: "fake-embed"},
		},
		Database: config.DatabaseConfig{
			MetadataStore: config.MetadataStoreConfig{Provider: config.StoreInMemory},
		},
		Memorize: config.MemorizeConfig{
			MemoryTypes:                     []string{"profile"},
			DefaultCategorySummaryTargetLen: 500,
		},
		Retrieve: config.RetrieveConfig{
			Method:   config.RetrieveMethodRAG,
			Category: config.RetrieveSectionConfig{Enabled: true, TopK: 3},
			Item:     config.RetrieveSectionConfig{Enabled: true, TopK: 3},
			Resource: config.RetrieveSectionConfig{Enabled: true, TopK: 3},
			Salience: config.SalienceConfig{Alpha: 1, Beta: 0, Gamma: 0},
		},
		User: config.UserConfig{Model: []string{"user_id"}},
	}
}

// newTestService builds a MemoryService the same way New() does, but with
// a fake in-memory fetcher instead of hitting the filesystem.
func newTestService(t *testing.T, cfg *config.Config, fetchText string) *MemoryService {
	t.Helper()
	repos, closeRepos, err := repository.Build(context.Background(), cfg.Database)
	require.NoError(t, err)

	svc := &MemoryService{
		cfg:        cfg,
		manager:    workflow.NewManager(),
		runner:     workflow.NewRunner(),
		repos:      repos,
		llmCache:   llm.NewCache(cfg.LLMProfiles),
		fetcher:    fakeFetcher{text: fetchText},
		scopeModel: scope.NewModel(cfg.User.Model),
		closeRepos: closeRepos,
	}
	svc.registerDefaultPipelines()
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestMemorize_EndToEnd(t *testing.T) {
	svc := newTestService(t, testConfig(), "alice prefers dark mode and works at Acme Corp.")

	result, err := svc.Memorize(context.Background(), "./fixtures/note.txt", memcore.ModalityDocument, "", memcore.Scope{"user_id": "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", result.Resource.Scope["user_id"])
	require.Len(t, result.Items, 1)
	require.Equal(t, "Alice prefers dark mode.", result.Items[0].Summary)
}

func TestMemorize_RejectsIncompleteScope(t *testing.T) {
	svc := newTestService(t, testConfig(), "some content")
	_, err := svc.Memorize(context.Background(), "./fixtures/note.txt", memcore.ModalityDocument, "", memcore.Scope{})
	require.Error(t, err)
}

func TestRetrieve_EndToEnd(t *testing.T) {
	svc := newTestService(t, testConfig(), "")
	sc := memcore.Scope{"user_id": "alice"}

	_, err := svc.CreateMemoryItem(context.Background(), "profile", "Alice enjoys hiking.", []string{"activities"}, sc)
	require.NoError(t, err)

	result, err := svc.Retrieve(context.Background(), []memcore.QueryMessage{
		{Role: "user", Content: memcore.QueryContent{Text: "What does Alice enjoy?"}},
	}, ports.Where{"user_id": "alice"})
	require.NoError(t, err)
	require.True(t, result.NeedsRetrieval)
	require.NotEmpty(t, result.Items)
	require.NotEmpty(t, result.Categories)
}

func TestCRUD_FullCycle(t *testing.T) {
	svc := newTestService(t, testConfig(), "")
	sc := memcore.Scope{"user_id": "alice"}

	created, err := svc.CreateMemoryItem(context.Background(), "profile", "Alice enjoys hiking.", []string{"activities"}, sc)
	require.NoError(t, err)
	require.Len(t, created.CategoryUpdates, 1)

	newContent := "Alice enjoys hiking and painting."
	updated, err := svc.UpdateMemoryItem(context.Background(), created.MemoryItem.ID, nil, &newContent, nil, sc)
	require.NoError(t, err)
	require.Equal(t, newContent, updated.MemoryItem.Summary)

	items, err := svc.ListMemoryItems(context.Background(), ports.Where{"user_id": "alice"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.DeleteMemoryItem(context.Background(), created.MemoryItem.ID, sc))

	items, err = svc.ListMemoryItems(context.Background(), ports.Where{"user_id": "alice"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestScopedIsolation_RetrieveDoesNotLeakAcrossUsers(t *testing.T) {
	svc := newTestService(t, testConfig(), "")

	_, err := svc.CreateMemoryItem(context.Background(), "profile", "Alice enjoys hiking.", []string{"activities"}, memcore.Scope{"user_id": "alice"})
	require.NoError(t, err)
	_, err = svc.CreateMemoryItem(context.Background(), "profile", "Bob enjoys chess.", []string{"activities"}, memcore.Scope{"user_id": "bob"})
	require.NoError(t, err)

	items, err := svc.ListMemoryItems(context.Background(), ports.Where{"user_id": "bob"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Bob enjoys chess.", items[0].Summary)
}

func TestPipelineMutation_BumpsRevision(t *testing.T) {
	svc := newTestService(t, testConfig(), "")

	rev0, err := svc.PipelineRevision(PipelineMemorize)
	require.NoError(t, err)

	rev1, err := svc.ConfigurePipeline(PipelineMemorize, "ingest_resource", map[string]any{"timeout_ms": 5000})
	require.NoError(t, err)
	require.Greater(t, rev1, rev0)

	current, err := svc.PipelineRevision(PipelineMemorize)
	require.NoError(t, err)
	require.Equal(t, rev1, current)
}
