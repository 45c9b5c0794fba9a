package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/workflow"
)

const sufficiencyPrompt = `Given the query and the context gathered so far, answer with only "yes" or "no": is this context sufficient to answer the query?

Query: %s

Context:
%s`

// NewSufficiencyStep runs after a recall section fills, asking the chat
// LLM whether the accumulated context
// already answers the query. If so, state.StopWith halts the remaining
// recall sections so build_response runs with what is already present.
// after names which section just completed ("category" or "item"), used
// only for logging/step identity.
func NewSufficiencyStep(deps Deps, after string) workflow.Step {
	return workflow.Step{
		ID:           "sufficiency_check_" + after,
		Requires:     []string{KeyRewrittenQuery},
		Capabilities: []string{"llm"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			if !deps.Config.SufficiencyCheck {
				return nil
			}
			needs, _ := state.Get(KeyNeedsRetrieval)
			if n, ok := needs.(bool); ok && !n {
				return nil
			}

			accumulated := summarizeAccumulated(state)
			if accumulated == "" {
				return nil
			}

			queryVal, _ := state.Get(KeyRewrittenQuery)
			query, _ := queryVal.(string)

			profileName := deps.Config.SufficiencyCheckProfile
			if profileName == "" {
				profileName = "default"
			}
			client, err := deps.LLM.Get(profileName)
			if err != nil {
				return err
			}

			promptText := deps.Config.SufficiencyCheckPrompt
			if promptText == "" {
				promptText = sufficiencyPrompt
			}
			raw, err := client.Chat(ctx, llm.ChatRequest{Messages: []llm.ChatMessage{
				{Role: "user", Text: fmt.Sprintf(promptText, query, accumulated)},
			}})
			if err != nil {
				slog.Warn("sufficiency_check: chat call failed, continuing recall", "after", after, "error", err)
				return nil
			}

			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "yes") {
				state.StopWith("sufficiency_check_" + after)
			}
			return nil
		},
	}
}

// summarizeAccumulated formats whatever categories/items have been
// recalled so far into one context blob for the sufficiency prompt.
func summarizeAccumulated(state *workflow.State) string {
	var b strings.Builder
	if catsVal, ok := state.Get(KeyCategories); ok {
		cats, _ := catsVal.([]memcore.ScoredCategory)
		for _, c := range cats {
			summary := ""
			if c.Category.Summary != nil {
				summary = *c.Category.Summary
			}
			fmt.Fprintf(&b, "category %s: %s\n", c.Category.Name, summary)
		}
	}
	if itemsVal, ok := state.Get(KeyItems); ok {
		items, _ := itemsVal.([]memcore.ScoredItem)
		for _, it := range items {
			fmt.Fprintf(&b, "item %s: %s\n", it.Item.MemoryType, it.Item.Summary)
		}
	}
	return b.String()
}
