package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/workflow"
)

const llmRankingPrompt = `Given the query below and the candidate rows (id|name|summary, one per line), return a JSON array of the %d most relevant candidate ids, most relevant first. Respond with only the JSON array, e.g. ["id1","id2"].

Query: %s

Candidates:
%s`

func embedQuery(ctx context.Context, deps Deps, query string) ([]float32, error) {
	profileName := deps.Config.LLMRankingLLMProfile
	if profileName == "" {
		profileName = "default"
	}
	client, err := deps.LLM.ResolveEmbedClient(profileName)
	if err != nil {
		return nil, err
	}
	vectors, err := client.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

// rankByLLM asks the chat LLM to pick the topK most relevant ids from
// rows (each "id|name|summary"), returning them in the model's order.
// Invalid/unparseable output returns an error so the caller falls back
// to RAG recall for that section.
func rankByLLM(ctx context.Context, deps Deps, query string, rows []string, topK int) ([]string, error) {
	profileName := deps.Config.LLMRankingLLMProfile
	if profileName == "" {
		profileName = "default"
	}
	client, err := deps.LLM.Get(profileName)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(llmRankingPrompt, topK, query, strings.Join(rows, "\n"))
	raw, err := client.Chat(ctx, llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Text: prompt}}})
	if err != nil {
		return nil, err
	}
	stripped, err := llm.StripMarkdownJSONArray(raw)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(stripped), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// NewCategoryRecallStep recalls the top-k categories for the rewritten query.
func NewCategoryRecallStep(deps Deps, method config.RetrieveMethod) workflow.Step {
	return workflow.Step{
		ID:           "category_recall",
		Requires:     []string{KeyRewrittenQuery, KeyWhere, KeyNeedsRetrieval},
		Produces:     []string{KeyCategories},
		Capabilities: []string{"llm", "vector", "db"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			if !deps.Config.Category.Enabled {
				state.Set(KeyCategories, []memcore.ScoredCategory{})
				return nil
			}
			needs, _ := state.Get(KeyNeedsRetrieval)
			if n, ok := needs.(bool); ok && !n {
				state.Set(KeyCategories, []memcore.ScoredCategory{})
				return nil
			}
			query, where := queryAndWhere(state)

			results, err := recallCategories(ctx, deps, method, query, where)
			if err != nil {
				slog.Warn("category_recall failed", "error", err)
				results = []memcore.ScoredCategory{}
			}
			state.Set(KeyCategories, results)
			return nil
		},
	}
}

func recallCategories(ctx context.Context, deps Deps, method config.RetrieveMethod, query string, where ports.Where) ([]memcore.ScoredCategory, error) {
	topK := deps.Config.Category.TopK
	if method == config.RetrieveMethodLLM {
		results, err := recallCategoriesByLLM(ctx, deps, query, where, topK)
		if err == nil {
			return results, nil
		}
		slog.Warn("category_recall: llm ranking failed, falling back to rag", "error", err)
	}
	return recallCategoriesByRAG(ctx, deps, query, where, topK)
}

func recallCategoriesByRAG(ctx context.Context, deps Deps, query string, where ports.Where, topK int) ([]memcore.ScoredCategory, error) {
	vec, err := embedQuery(ctx, deps, query)
	if err != nil {
		return nil, err
	}
	return deps.Repos.Categories.SimilaritySearch(ctx, vec, topK, where)
}

func recallCategoriesByLLM(ctx context.Context, deps Deps, query string, where ports.Where, topK int) ([]memcore.ScoredCategory, error) {
	candidates, err := deps.Repos.Categories.List(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(candidates) > topK+candidateOverhead {
		candidates = candidates[:topK+candidateOverhead]
	}
	rows := make([]string, len(candidates))
	byID := make(map[string]*memcore.MemoryCategory, len(candidates))
	for i, c := range candidates {
		summary := ""
		if c.Summary != nil {
			summary = *c.Summary
		}
		rows[i] = fmt.Sprintf("%s|%s|%s", c.ID, c.Name, summary)
		byID[c.ID] = c
	}
	ids, err := rankByLLM(ctx, deps, query, rows, topK)
	if err != nil {
		return nil, err
	}
	out := make([]memcore.ScoredCategory, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, memcore.ScoredCategory{Category: *c})
	}
	return out, nil
}

// NewItemRecallStep recalls the top-k items for the rewritten query,
// re-ranked by the salience composite in RAG mode.
func NewItemRecallStep(deps Deps, method config.RetrieveMethod) workflow.Step {
	return workflow.Step{
		ID:           "item_recall",
		Requires:     []string{KeyRewrittenQuery, KeyWhere, KeyNeedsRetrieval},
		Produces:     []string{KeyItems},
		Capabilities: []string{"llm", "vector", "db"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			if !deps.Config.Item.Enabled {
				state.Set(KeyItems, []memcore.ScoredItem{})
				return nil
			}
			needs, _ := state.Get(KeyNeedsRetrieval)
			if n, ok := needs.(bool); ok && !n {
				state.Set(KeyItems, []memcore.ScoredItem{})
				return nil
			}
			query, where := queryAndWhere(state)

			results, err := recallItems(ctx, deps, method, query, where)
			if err != nil {
				slog.Warn("item_recall failed", "error", err)
				results = []memcore.ScoredItem{}
			}
			state.Set(KeyItems, results)
			return nil
		},
	}
}

func recallItems(ctx context.Context, deps Deps, method config.RetrieveMethod, query string, where ports.Where) ([]memcore.ScoredItem, error) {
	topK := deps.Config.Item.TopK
	if method == config.RetrieveMethodLLM {
		results, err := recallItemsByLLM(ctx, deps, query, where, topK)
		if err == nil {
			return results, nil
		}
		slog.Warn("item_recall: llm ranking failed, falling back to rag", "error", err)
	}
	return recallItemsByRAG(ctx, deps, query, where, topK)
}

func recallItemsByRAG(ctx context.Context, deps Deps, query string, where ports.Where, topK int) ([]memcore.ScoredItem, error) {
	vec, err := embedQuery(ctx, deps, query)
	if err != nil {
		return nil, err
	}
	// Over-fetch so the salience composite can re-rank beyond raw cosine
	// order before truncating to topK.
	results, err := deps.Repos.Items.SimilaritySearch(ctx, vec, topK+candidateOverhead, where)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range results {
		results[i].Score = salience(deps.Config.Salience, results[i].Score, now, results[i].Item.UpdatedAt, results[i].Item.Hits)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.UpdatedAt.After(results[j].Item.UpdatedAt)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func recallItemsByLLM(ctx context.Context, deps Deps, query string, where ports.Where, topK int) ([]memcore.ScoredItem, error) {
	candidates, err := deps.Repos.Items.List(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(candidates) > topK+candidateOverhead {
		candidates = candidates[:topK+candidateOverhead]
	}
	rows := make([]string, len(candidates))
	byID := make(map[string]*memcore.MemoryItem, len(candidates))
	for i, it := range candidates {
		rows[i] = fmt.Sprintf("%s|%s|%s", it.ID, it.MemoryType, it.Summary)
		byID[it.ID] = it
	}
	ids, err := rankByLLM(ctx, deps, query, rows, topK)
	if err != nil {
		return nil, err
	}
	out := make([]memcore.ScoredItem, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, memcore.ScoredItem{Item: *it})
	}
	return out, nil
}

// NewResourceRecallStep recalls the top-k resources for the rewritten query.
func NewResourceRecallStep(deps Deps, method config.RetrieveMethod) workflow.Step {
	return workflow.Step{
		ID:           "resource_recall",
		Requires:     []string{KeyRewrittenQuery, KeyWhere, KeyNeedsRetrieval},
		Produces:     []string{KeyResources},
		Capabilities: []string{"llm", "vector", "db"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			if !deps.Config.Resource.Enabled {
				state.Set(KeyResources, []memcore.ScoredResource{})
				return nil
			}
			needs, _ := state.Get(KeyNeedsRetrieval)
			if n, ok := needs.(bool); ok && !n {
				state.Set(KeyResources, []memcore.ScoredResource{})
				return nil
			}
			query, where := queryAndWhere(state)

			results, err := recallResources(ctx, deps, method, query, where)
			if err != nil {
				slog.Warn("resource_recall failed", "error", err)
				results = []memcore.ScoredResource{}
			}
			state.Set(KeyResources, results)
			return nil
		},
	}
}

func recallResources(ctx context.Context, deps Deps, method config.RetrieveMethod, query string, where ports.Where) ([]memcore.ScoredResource, error) {
	topK := deps.Config.Resource.TopK
	if method == config.RetrieveMethodLLM {
		results, err := recallResourcesByLLM(ctx, deps, query, where, topK)
		if err == nil {
			return results, nil
		}
		slog.Warn("resource_recall: llm ranking failed, falling back to rag", "error", err)
	}
	return recallResourcesByRAG(ctx, deps, query, where, topK)
}

func recallResourcesByRAG(ctx context.Context, deps Deps, query string, where ports.Where, topK int) ([]memcore.ScoredResource, error) {
	vec, err := embedQuery(ctx, deps, query)
	if err != nil {
		return nil, err
	}
	return deps.Repos.Resources.SimilaritySearch(ctx, vec, topK, where)
}

func recallResourcesByLLM(ctx context.Context, deps Deps, query string, where ports.Where, topK int) ([]memcore.ScoredResource, error) {
	candidates, err := deps.Repos.Resources.List(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(candidates) > topK+candidateOverhead {
		candidates = candidates[:topK+candidateOverhead]
	}
	rows := make([]string, len(candidates))
	byID := make(map[string]*memcore.Resource, len(candidates))
	for i, r := range candidates {
		rows[i] = fmt.Sprintf("%s|%s|%s", r.ID, r.URL, r.Caption)
		byID[r.ID] = r
	}
	ids, err := rankByLLM(ctx, deps, query, rows, topK)
	if err != nil {
		return nil, err
	}
	out := make([]memcore.ScoredResource, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, memcore.ScoredResource{Resource: *r})
	}
	return out, nil
}

func queryAndWhere(state *workflow.State) (string, ports.Where) {
	queryVal, _ := state.Get(KeyRewrittenQuery)
	whereVal, _ := state.Get(KeyWhere)
	query, _ := queryVal.(string)
	where, _ := whereVal.(ports.Where)
	return query, where
}
