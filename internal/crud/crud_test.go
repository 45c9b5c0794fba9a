package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/repository"
)

type fakeLLMClient struct{}

func (fakeLLMClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	return "[]", nil
}

func (fakeLLMClient) Summarize(ctx context.Context, text, instruction string) (string, error) {
	return "summary of: " + text, nil
}

func (fakeLLMClient) Vision(ctx context.Context, req llm.VisionRequest) (string, error) {
	return "caption", nil
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
	llm.RegisterBackend("fake-crud", func(p llm.Profile) llm.Client { return fakeLLMClient{} })
}

func testDeps() Deps {
	cache := llm.NewCache(map[string]config.ProviderProfile{
		"default": {ClientBackend: "fake-crud", ChatModel: "fake-chat", EmbedModel: "fake-embed"},
	})
	return Deps{
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
	}
}

func TestCreateMemoryItem(t *testing.T) {
	deps := testDeps()
	sc := memcore.Scope{"user_id": "alice"}

	res, err := CreateMemoryItem(context.Background(), deps, "profile", "Alice likes hiking", []string{"activities"}, sc)
	require.NoError(t, err)
	require.Equal(t, "Alice likes hiking", res.MemoryItem.Summary)
	require.Len(t, res.CategoryUpdates, 1)
	require.Equal(t, "activities", res.CategoryUpdates[0].Category.Name)
	require.NotNil(t, res.CategoryUpdates[0].Category.Summary)

	edges, err := deps.Repos.CategoryItems.List(context.Background(), ports.Where{"item_id": res.MemoryItem.ID})
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestCreateMemoryItem_RejectsUnknownType(t *testing.T) {
	deps := testDeps()
	_, err := CreateMemoryItem(context.Background(), deps, "unknown-type", "content", nil, memcore.Scope{"user_id": "alice"})
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.InvalidInput))
}

func TestCreateMemoryItem_RejectsEmptyContent(t *testing.T) {
	deps := testDeps()
	_, err := CreateMemoryItem(context.Background(), deps, "profile", "   ", nil, memcore.Scope{"user_id": "alice"})
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.InvalidInput))
}

func TestUpdateMemoryItem_ReplacesCategoriesAndResummarizes(t *testing.T) {
	deps := testDeps()
	sc := memcore.Scope{"user_id": "alice"}

	created, err := CreateMemoryItem(context.Background(), deps, "profile", "Alice likes hiking", []string{"activities"}, sc)
	require.NoError(t, err)

	newNames := []string{"preferences"}
	updated, err := UpdateMemoryItem(context.Background(), deps, created.MemoryItem.ID, nil, nil, &newNames, sc)
	require.NoError(t, err)

	edges, err := deps.Repos.CategoryItems.List(context.Background(), ports.Where{"item_id": created.MemoryItem.ID})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.NotEqual(t, created.CategoryUpdates[0].Category.ID, edges[0].CategoryID)

	// Both categories should have been touched: old (now empty, summary
	// nulled) and new (now holding the item).
	var sawPreferences bool
	for _, u := range updated.CategoryUpdates {
		if u.Category.Name == "preferences" {
			sawPreferences = true
			require.NotNil(t, u.Category.Summary)
		}
	}
	require.True(t, sawPreferences)

	activities, err := deps.Repos.Categories.GetByID(context.Background(), created.CategoryUpdates[0].Category.ID, sc)
	require.NoError(t, err)
	require.Nil(t, activities.Summary)
}

func TestUpdateMemoryItem_RequiresAtLeastOneField(t *testing.T) {
	deps := testDeps()
	sc := memcore.Scope{"user_id": "alice"}
	created, err := CreateMemoryItem(context.Background(), deps, "profile", "x", nil, sc)
	require.NoError(t, err)

	_, err = UpdateMemoryItem(context.Background(), deps, created.MemoryItem.ID, nil, nil, nil, sc)
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.InvalidInput))
}

func TestDeleteMemoryItem_CascadesAndNullsEmptyCategory(t *testing.T) {
	deps := testDeps()
	sc := memcore.Scope{"user_id": "alice"}

	created, err := CreateMemoryItem(context.Background(), deps, "profile", "Alice likes hiking", []string{"activities"}, sc)
	require.NoError(t, err)
	catID := created.CategoryUpdates[0].Category.ID

	err = DeleteMemoryItem(context.Background(), deps, created.MemoryItem.ID, sc)
	require.NoError(t, err)

	edges, err := deps.Repos.CategoryItems.List(context.Background(), ports.Where{"item_id": created.MemoryItem.ID})
	require.NoError(t, err)
	require.Empty(t, edges)

	_, err = deps.Repos.Items.GetByID(context.Background(), created.MemoryItem.ID, sc)
	require.Error(t, err)

	cat, err := deps.Repos.Categories.GetByID(context.Background(), catID, sc)
	require.NoError(t, err)
	require.Nil(t, cat.Summary)
}

func TestListMemoryItems_ScopedFilter(t *testing.T) {
	deps := testDeps()
	_, err := CreateMemoryItem(context.Background(), deps, "profile", "alice item", nil, memcore.Scope{"user_id": "alice"})
	require.NoError(t, err)
	_, err = CreateMemoryItem(context.Background(), deps, "profile", "bob item", nil, memcore.Scope{"user_id": "bob"})
	require.NoError(t, err)

	aliceItems, err := ListMemoryItems(context.Background(), deps, ports.Where{"user_id": "alice"})
	require.NoError(t, err)
	require.Len(t, aliceItems, 1)
	require.Equal(t, "alice item", aliceItems[0].Summary)

	bobItems, err := ListMemoryItems(context.Background(), deps, ports.Where{"user_id": "bob"})
	require.NoError(t, err)
	require.Len(t, bobItems, 1)
}

func TestReinforceMemoryItem_IncrementsHits(t *testing.T) {
	deps := testDeps()
	sc := memcore.Scope{"user_id": "alice"}

	created, err := CreateMemoryItem(context.Background(), deps, "profile", "Alice likes hiking", nil, sc)
	require.NoError(t, err)
	require.Zero(t, created.MemoryItem.Hits)

	require.NoError(t, ReinforceMemoryItem(context.Background(), deps, created.MemoryItem.ID, sc))
	require.NoError(t, ReinforceMemoryItem(context.Background(), deps, created.MemoryItem.ID, sc))

	item, err := deps.Repos.Items.GetByID(context.Background(), created.MemoryItem.ID, sc)
	require.NoError(t, err)
	require.Equal(t, 2, item.Hits)

	err = ReinforceMemoryItem(context.Background(), deps, created.MemoryItem.ID, memcore.Scope{"user_id": "bob"})
	require.Error(t, err, "reinforcing across scopes should not resolve the item")
}

func TestCreateMemoryItem_BootstrapsConfiguredCategorySeed(t *testing.T) {
	deps := testDeps()
	deps.Config.MemoryCategories = []config.CategorySeed{
		{Name: "Activities", Description: "what the user does for fun"},
	}
	sc := memcore.Scope{"user_id": "alice"}

	res, err := CreateMemoryItem(context.Background(), deps, "profile", "Alice likes hiking", []string{"activities"}, sc)
	require.NoError(t, err)
	require.Len(t, res.CategoryUpdates, 1)
	require.Equal(t, "Activities", res.CategoryUpdates[0].Category.Name)
	require.Equal(t, "what the user does for fun", res.CategoryUpdates[0].Category.Description)
}
