package memorize

import (
	"context"
	"strings"
	"time"

	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/workflow"
)

// NewCategorizeItemsStep persists each deduped candidate as a
// MemoryItem, resolves (get-or-create) every category hint it carries,
// creates the CategoryItem edges, and computes item embeddings in
// batches via the embed profile.
func NewCategorizeItemsStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:           "categorize_items",
		Requires:     []string{KeyDedupedItems, KeyResource, KeyScope},
		Produces:     []string{KeyPersistedItems, KeyCategories, KeyRelations, KeyTouchedCatIDs},
		Capabilities: []string{"llm", "db"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			dedupedVal, _ := state.Get(KeyDedupedItems)
			resourceVal, _ := state.Get(KeyResource)
			scopeVal, _ := state.Get(KeyScope)

			candidates, _ := dedupedVal.([]candidateItem)
			resource := resourceVal.(*memcore.Resource)
			sc, _ := scopeVal.(memcore.Scope)

			if len(candidates) == 0 {
				state.Set(KeyPersistedItems, []memcore.MemoryItem{})
				state.Set(KeyCategories, []memcore.MemoryCategory{})
				state.Set(KeyRelations, []memcore.CategoryItem{})
				state.Set(KeyTouchedCatIDs, []string{})
				return nil
			}

			embedProfileName := deps.Config.MemoryExtractLLMProfile
			if embedProfileName == "" {
				embedProfileName = "default"
			}
			embedClient, err := deps.LLM.ResolveEmbedClient(embedProfileName)
			if err != nil {
				return err
			}

			summaries := make([]string, len(candidates))
			for i, c := range candidates {
				summaries[i] = c.Summary
			}
			itemEmbeddings, err := embedBatched(ctx, embedClient, summaries, deps.LLM.EmbedBatchSize(embedProfileName))
			if err != nil {
				return memerr.Wrap(memerr.ExtractionFailed, "embed candidate items", err)
			}

			categoryByNormName := map[string]*memcore.MemoryCategory{}
			touchedIDs := map[string]struct{}{}
			var persistedItems []memcore.MemoryItem
			var persistedCategories []memcore.MemoryCategory
			var relations []memcore.CategoryItem

			for i, c := range candidates {
				now := time.Now()
				item := &memcore.MemoryItem{
					ID:         memcore.NewID("item"),
					ResourceID: &resource.ID,
					MemoryType: memcore.MemoryType(c.MemoryType),
					Summary:    c.Summary,
					Scope:      sc,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if i < len(itemEmbeddings) {
					item.Embedding = itemEmbeddings[i]
				}
				if err := deps.Repos.Items.Create(ctx, item); err != nil {
					return memerr.Wrap(memerr.ExtractionFailed, "persist memory item", err)
				}
				persistedItems = append(persistedItems, *item)

				for _, hint := range c.CategoryHints {
					normalized := memcore.NormalizeCategoryName(hint)
					if normalized == "" {
						continue
					}
					cat, ok := categoryByNormName[normalized]
					if !ok {
						existing, err := deps.Repos.Categories.GetByName(ctx, normalized, sc)
						if err == nil {
							cat = existing
						} else {
							cat, err = createCategory(ctx, deps, embedClient, strings.TrimSpace(hint), sc)
							if err != nil {
								return err
							}
							persistedCategories = append(persistedCategories, *cat)
						}
						categoryByNormName[normalized] = cat
					}

					edge := &memcore.CategoryItem{
						ID:         memcore.NewID("catitem"),
						ItemID:     item.ID,
						CategoryID: cat.ID,
						Scope:      sc,
						CreatedAt:  time.Now(),
						UpdatedAt:  time.Now(),
					}
					if err := deps.Repos.CategoryItems.Create(ctx, edge); err != nil {
						return memerr.Wrap(memerr.ExtractionFailed, "persist category edge", err)
					}
					relations = append(relations, *edge)
					touchedIDs[cat.ID] = struct{}{}
				}
			}

			ids := make([]string, 0, len(touchedIDs))
			for id := range touchedIDs {
				ids = append(ids, id)
			}

			state.Set(KeyPersistedItems, persistedItems)
			state.Set(KeyCategories, persistedCategories)
			state.Set(KeyRelations, relations)
			state.Set(KeyTouchedCatIDs, ids)
			return nil
		},
	}
}

func createCategory(ctx context.Context, deps Deps, embedClient llm.Client, name string, sc memcore.Scope) (*memcore.MemoryCategory, error) {
	now := time.Now()
	cat := &memcore.MemoryCategory{
		ID:        memcore.NewID("cat"),
		Name:      name,
		Scope:     sc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Configured categories bootstrap lazily: the first hint that names
	// one materializes it with the seed's description.
	if seed, ok := deps.Config.SeedFor(name); ok {
		cat.Name = seed.Name
		cat.Description = seed.Description
	}
	vectors, err := embedClient.Embed(ctx, []string{cat.Name + " " + cat.Description})
	if err == nil && len(vectors) > 0 {
		cat.Embedding = vectors[0]
	}
	if err := deps.Repos.Categories.Create(ctx, cat); err != nil {
		return nil, memerr.Wrap(memerr.ExtractionFailed, "create category", err)
	}
	return cat, nil
}
