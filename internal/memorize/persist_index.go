package memorize

import (
	"context"
	"strings"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/workflow"
)

const defaultCategorySummaryPrompt = "Summarize the following member memories into one short paragraph describing this category."

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

// NewPersistIndexStep recomputes the rolling summary for every category
// touched by categorize_items, feeding the concatenation of its member
// item summaries to the chat LLM and clipping to the configured target
// length. Configured category seeds may override the prompt and target
// length per category. A recompute failure for one category leaves its
// summary null rather than aborting the pipeline. Rebuilds for the same
// (scope, category) are serialized via the shared summary lock.
func NewPersistIndexStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:           "persist_index",
		Requires:     []string{KeyTouchedCatIDs, KeyScope},
		Produces:     []string{KeyCategories},
		Capabilities: []string{"llm", "db"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			touchedVal, _ := state.Get(KeyTouchedCatIDs)
			categoriesVal, _ := state.Get(KeyCategories)
			scopeVal, _ := state.Get(KeyScope)

			ids, _ := touchedVal.([]string)
			previouslyCreated, _ := categoriesVal.([]memcore.MemoryCategory)
			sc, _ := scopeVal.(memcore.Scope)

			if len(ids) == 0 {
				return nil
			}

			profileName := deps.Config.CategoryUpdateLLMProfile
			if profileName == "" {
				profileName = "default"
			}
			client, err := deps.LLM.Get(profileName)
			if err != nil {
				return err
			}

			resultsByID := map[string]memcore.MemoryCategory{}
			for _, c := range previouslyCreated {
				resultsByID[c.ID] = c
			}

			for _, catID := range ids {
				unlock := deps.SummaryLocks.Lock(memcore.SummaryLockKey(sc, catID))
				cat, ok := resummarizeCategory(ctx, deps, client, catID, sc)
				unlock()
				if ok {
					resultsByID[cat.ID] = *cat
				}
			}

			out := make([]memcore.MemoryCategory, 0, len(resultsByID))
			for _, c := range resultsByID {
				out = append(out, c)
			}
			state.Set(KeyCategories, out)
			return nil
		},
	}
}

// resummarizeCategory rebuilds one category's summary from its current
// member items. Returns the updated category and whether the update was
// persisted.
func resummarizeCategory(ctx context.Context, deps Deps, client llm.Client, catID string, sc memcore.Scope) (*memcore.MemoryCategory, bool) {
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
		return nil, false
	}

	prompt, targetLen := summaryPromptFor(deps.Config, cat.Name)
	summary, err := recomputeCategorySummary(ctx, client, strings.Join(summaries, "\n"), prompt, targetLen)
	if err != nil {
		// Category-update failures never block item writes: leave
		// summary null for a subsequent call to retry.
		cat.Summary = nil
	} else {
		cat.Summary = &summary
	}
	if err := deps.Repos.Categories.Update(ctx, cat); err != nil {
		return nil, false
	}
	return cat, true
}

func recomputeCategorySummary(ctx context.Context, client llm.Client, memberText, prompt string, targetLen int) (string, error) {
	summary, err := client.Summarize(ctx, memberText, prompt)
	if err != nil {
		return "", memerr.Wrap(memerr.SummarizationFailed, "recompute category summary", err)
	}
	if len(summary) > targetLen {
		summary = summary[:targetLen]
	}
	return summary, nil
}
