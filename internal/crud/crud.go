// Package crud implements the direct create/update/delete/list
// operations, sharing internal/memorize's category-resolution and
// resummarization logic but operating outside the pipeline engine. The
// patch_*/crud_list_* named pipelines exist only so operators can
// insert interceptor steps around an otherwise-direct call.
package crud

import (
	"context"
	"strings"
	"time"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/memerr"
)

const defaultCategorySummaryPrompt = "Summarize the following member memories into one short paragraph describing this category."

// Deps bundles everything the CRUD operations need, built once by
// internal/service and handed to each function call.
type Deps struct {
	Repos  ports.Repositories
	LLM    *llm.Cache
	Config config.MemorizeConfig
	// SummaryLocks serializes category summary rebuilds per
	// (scope, category). Shared with the memorize pipeline; may be nil.
	SummaryLocks *memcore.KeyedMutex
}

// CreateResult is the return shape of CreateMemoryItem and
// UpdateMemoryItem.
type CreateResult = memcore.CreateItemResult

func embedProfileName(cfg config.MemorizeConfig) string {
	if cfg.MemoryExtractLLMProfile != "" {
		return cfg.MemoryExtractLLMProfile
	}
	return "default"
}

func categoryProfileName(cfg config.MemorizeConfig) string {
	if cfg.CategoryUpdateLLMProfile != "" {
		return cfg.CategoryUpdateLLMProfile
	}
	return "default"
}

func validMemoryType(types []string, t string) bool {
	if len(types) == 0 {
		return true
	}
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// CreateMemoryItem validates the type, embeds the content,
// gets-or-creates every named category, creates the edges, and
// resummarizes each touched category.
func CreateMemoryItem(ctx context.Context, deps Deps, memoryType, content string, categoryNames []string, sc memcore.Scope) (*CreateResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, memerr.New(memerr.InvalidInput, "content must not be empty")
	}
	if !validMemoryType(deps.Config.MemoryTypes, memoryType) {
		return nil, memerr.Newf(memerr.InvalidInput, "memory_type %q is not configured", memoryType)
	}

	embedClient, err := deps.LLM.ResolveEmbedClient(embedProfileName(deps.Config))
	if err != nil {
		return nil, err
	}
	vectors, err := embedClient.Embed(ctx, []string{content})
	if err != nil {
		return nil, memerr.Wrap(memerr.ExtractionFailed, "embed item content", err)
	}

	now := time.Now()
	item := &memcore.MemoryItem{
		ID:         memcore.NewID("item"),
		MemoryType: memcore.MemoryType(memoryType),
		Summary:    content,
		Scope:      sc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(vectors) > 0 {
		item.Embedding = vectors[0]
	}
	if err := deps.Repos.Items.Create(ctx, item); err != nil {
		return nil, err
	}

	touched := map[string]struct{}{}
	for _, name := range categoryNames {
		cat, err := getOrCreateCategory(ctx, deps, embedClient, name, sc)
		if err != nil {
			return nil, err
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
			return nil, err
		}
		touched[cat.ID] = struct{}{}
	}

	updates, err := resummarizeAll(ctx, deps, touched, sc)
	if err != nil {
		return nil, err
	}

	return &CreateResult{MemoryItem: *item, CategoryUpdates: updates}, nil
}

// UpdateMemoryItem mutates an item in place. At least one of
// memoryType/content/categoryNames must be non-nil.
func UpdateMemoryItem(ctx context.Context, deps Deps, id string, memoryType, content *string, categoryNames *[]string, sc memcore.Scope) (*CreateResult, error) {
	if memoryType == nil && content == nil && categoryNames == nil {
		return nil, memerr.New(memerr.InvalidInput, "update_memory_item requires at least one changed field")
	}

	item, err := deps.Repos.Items.GetByID(ctx, id, sc)
	if err != nil {
		return nil, err
	}

	if memoryType != nil {
		if !validMemoryType(deps.Config.MemoryTypes, *memoryType) {
			return nil, memerr.Newf(memerr.InvalidInput, "memory_type %q is not configured", *memoryType)
		}
		item.MemoryType = memcore.MemoryType(*memoryType)
	}

	if content != nil {
		if strings.TrimSpace(*content) == "" {
			return nil, memerr.New(memerr.InvalidInput, "content must not be empty")
		}
		embedClient, err := deps.LLM.ResolveEmbedClient(embedProfileName(deps.Config))
		if err != nil {
			return nil, err
		}
		vectors, err := embedClient.Embed(ctx, []string{*content})
		if err != nil {
			return nil, memerr.Wrap(memerr.ExtractionFailed, "embed item content", err)
		}
		item.Summary = *content
		if len(vectors) > 0 {
			item.Embedding = vectors[0]
		}
	}

	touched := map[string]struct{}{}

	if categoryNames != nil {
		existingEdges, err := deps.Repos.CategoryItems.List(ctx, ports.Where{"item_id": id})
		if err != nil {
			return nil, err
		}
		oldCategoryIDs := map[string]*memcore.CategoryItem{}
		for _, e := range existingEdges {
			oldCategoryIDs[e.CategoryID] = e
			touched[e.CategoryID] = struct{}{}
		}

		embedClient, err := deps.LLM.ResolveEmbedClient(embedProfileName(deps.Config))
		if err != nil {
			return nil, err
		}

		newCategoryIDs := map[string]struct{}{}
		for _, name := range *categoryNames {
			cat, err := getOrCreateCategory(ctx, deps, embedClient, name, sc)
			if err != nil {
				return nil, err
			}
			newCategoryIDs[cat.ID] = struct{}{}
			touched[cat.ID] = struct{}{}
			if _, had := oldCategoryIDs[cat.ID]; !had {
				edge := &memcore.CategoryItem{
					ID:         memcore.NewID("catitem"),
					ItemID:     item.ID,
					CategoryID: cat.ID,
					Scope:      sc,
					CreatedAt:  time.Now(),
					UpdatedAt:  time.Now(),
				}
				if err := deps.Repos.CategoryItems.Create(ctx, edge); err != nil {
					return nil, err
				}
			}
		}

		for catID, edge := range oldCategoryIDs {
			if _, keep := newCategoryIDs[catID]; !keep {
				if err := deps.Repos.CategoryItems.Delete(ctx, edge.ID, sc); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := deps.Repos.Items.Update(ctx, item); err != nil {
		return nil, err
	}

	updates, err := resummarizeAll(ctx, deps, touched, sc)
	if err != nil {
		return nil, err
	}

	return &CreateResult{MemoryItem: *item, CategoryUpdates: updates}, nil
}

// DeleteMemoryItem deletes the item and cascades: delete its edges,
// delete the item, resummarize every category that lost it.
func DeleteMemoryItem(ctx context.Context, deps Deps, id string, sc memcore.Scope) error {
	edges, err := deps.Repos.CategoryItems.List(ctx, ports.Where{"item_id": id})
	if err != nil {
		return err
	}
	touched := map[string]struct{}{}
	for _, e := range edges {
		touched[e.CategoryID] = struct{}{}
	}

	if err := deps.Repos.CategoryItems.DeleteByItemID(ctx, id, sc); err != nil {
		return err
	}
	if err := deps.Repos.Items.Delete(ctx, id, sc); err != nil {
		return err
	}

	_, err = resummarizeAll(ctx, deps, touched, sc)
	return err
}

// ReinforceMemoryItem bumps an item's reinforcement counter, raising its
// salience in subsequent ranked retrievals. Kept as an explicit
// operation rather than a retrieve side effect so identical retrieve
// calls stay deterministic.
func ReinforceMemoryItem(ctx context.Context, deps Deps, id string, sc memcore.Scope) error {
	return deps.Repos.Items.Touch(ctx, id, sc)
}

// ListMemoryItems is the filter-only item read; no scoring.
func ListMemoryItems(ctx context.Context, deps Deps, where ports.Where) ([]*memcore.MemoryItem, error) {
	return deps.Repos.Items.List(ctx, where)
}

// ListMemoryCategories is the filter-only category read; no scoring.
func ListMemoryCategories(ctx context.Context, deps Deps, where ports.Where) ([]*memcore.MemoryCategory, error) {
	return deps.Repos.Categories.List(ctx, where)
}

func getOrCreateCategory(ctx context.Context, deps Deps, embedClient llm.Client, name string, sc memcore.Scope) (*memcore.MemoryCategory, error) {
	normalized := memcore.NormalizeCategoryName(name)
	if normalized == "" {
		return nil, memerr.New(memerr.InvalidInput, "category name must not be empty")
	}
	existing, err := deps.Repos.Categories.GetByName(ctx, normalized, sc)
	if err == nil {
		return existing, nil
	}

	now := time.Now()
	cat := &memcore.MemoryCategory{
		ID:        memcore.NewID("cat"),
		Name:      strings.TrimSpace(name),
		Scope:     sc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Lazily bootstrap from the configured category list, same as the
	// memorize pipeline's categorize step.
	if seed, ok := deps.Config.SeedFor(name); ok {
		cat.Name = seed.Name
		cat.Description = seed.Description
	}
	vectors, err := embedClient.Embed(ctx, []string{cat.Name + " " + cat.Description})
	if err == nil && len(vectors) > 0 {
		cat.Embedding = vectors[0]
	}
	if err := deps.Repos.Categories.Create(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// resummarizeAll recomputes the summary for each category id in touched,
// matching internal/memorize's persist_index step: a recompute failure
// for one category leaves summary null rather than failing the call.
// Rebuilds for the same (scope, category) are serialized via the shared
// summary lock.
func resummarizeAll(ctx context.Context, deps Deps, touched map[string]struct{}, sc memcore.Scope) ([]memcore.CategoryUpdate, error) {
	if len(touched) == 0 {
		return nil, nil
	}

	client, err := deps.LLM.Get(categoryProfileName(deps.Config))
	if err != nil {
		return nil, err
	}

	var updates []memcore.CategoryUpdate
	for catID := range touched {
		unlock := deps.SummaryLocks.Lock(memcore.SummaryLockKey(sc, catID))
		cat, ok := resummarizeOne(ctx, deps, client, catID, sc)
		unlock()
		if ok {
			updates = append(updates, memcore.CategoryUpdate{Category: *cat})
		}
	}
	return updates, nil
}

func resummarizeOne(ctx context.Context, deps Deps, client llm.Client, catID string, sc memcore.Scope) (*memcore.MemoryCategory, bool) {
	cat, err := deps.Repos.Categories.GetByID(ctx, catID, sc)
	if err != nil {
		return nil, false
	}

	edges, err := deps.Repos.CategoryItems.List(ctx, ports.Where{"category_id": catID})
	if err != nil {
		return nil, false
	}
	var summaries []string
	for _, e := range edges {
		item, err := deps.Repos.Items.GetByID(ctx, e.ItemID, sc)
		if err != nil {
			continue
		}
		summaries = append(summaries, item.Summary)
	}

	if len(summaries) == 0 {
		// The category lost its last item: the summary goes null rather
		// than recomputing over nothing.
		cat.Summary = nil
	} else {
		prompt, targetLen := summaryPromptFor(deps.Config, cat.Name)
		summary, err := client.Summarize(ctx, strings.Join(summaries, "\n"), prompt)
		if err != nil {
			cat.Summary = nil
		} else {
			if len(summary) > targetLen {
				summary = summary[:targetLen]
			}
			cat.Summary = &summary
		}
	}

	if err := deps.Repos.Categories.Update(ctx, cat); err != nil {
		return nil, false
	}
	return cat, true
}

// summaryPromptFor resolves the summary prompt and target length for one
// category: a matching configured seed overrides the config-level
// defaults, which in turn override the built-in prompt.
func summaryPromptFor(cfg config.MemorizeConfig, categoryName string) (string, int) {
	prompt := cfg.DefaultCategorySummaryPrompt
	if prompt == "" {
		prompt = defaultCategorySummaryPrompt
	}
	targetLen := cfg.DefaultCategorySummaryTargetLen
	if targetLen <= 0 {
		targetLen = 500
	}
	if seed, ok := cfg.SeedFor(categoryName); ok {
		if seed.SummaryPrompt != "" {
			prompt = seed.SummaryPrompt
		}
		if seed.TargetLength > 0 {
			targetLen = seed.TargetLength
		}
	}
	return prompt, targetLen
}
