package memorize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/workflow"
)

const defaultMemoryTypePrompt = `You are extracting long-term memories from the text below. Return a JSON array of objects, each with a "summary" (one sentence) and "category_hints" (0-3 short topic names). Return only the JSON array, nothing else.

Text:
%s`

// NewExtractItemsStep prompts the chat LLM once per configured memory
// type, tolerating markdown-wrapped JSON via llm.StripMarkdownJSON. A
// memory type whose output does not parse is logged and skipped; the
// remaining types still proceed.
func NewExtractItemsStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:           "extract_items",
		Requires:     []string{KeyCaption},
		Produces:     []string{KeyCandidateItems},
		Capabilities: []string{"llm"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			captionVal, _ := state.Get(KeyCaption)
			caption, _ := captionVal.(string)

			profileName := deps.Config.MemoryExtractLLMProfile
			if profileName == "" {
				profileName = "default"
			}
			client, err := deps.LLM.Get(profileName)
			if err != nil {
				return err
			}

			types := deps.Config.MemoryTypes
			if len(types) == 0 {
				for _, t := range memcore.DefaultMemoryTypes() {
					types = append(types, string(t))
				}
			}

			var candidates []candidateItem
			for _, memType := range types {
				instruction := deps.Config.MemoryTypePrompts[memType]
				if instruction == "" {
					instruction = fmt.Sprintf(defaultMemoryTypePrompt, caption)
				} else {
					instruction = instruction + "\n\n" + caption
				}

				var raw string
				err = workflow.Retry(ctx, workflow.DefaultRetryPolicy(), func(ctx context.Context) error {
					resp, callErr := client.Chat(ctx, llm.ChatRequest{Messages: []llm.ChatMessage{
						{Role: "user", Text: instruction},
					}})
					if callErr != nil {
						return callErr
					}
					raw = resp
					return nil
				})
				if err != nil {
					slog.Warn("extract_items: chat call failed, skipping memory type", "memory_type", memType, "error", err)
					continue
				}

				parsed, err := parseCandidateItems(raw, memType)
				if err != nil {
					slog.Warn("extract_items: unparseable LLM output, skipping memory type", "memory_type", memType, "error", err)
					continue
				}
				candidates = append(candidates, parsed...)
			}

			state.Set(KeyCandidateItems, candidates)
			return nil
		},
	}
}

func parseCandidateItems(raw, memType string) ([]candidateItem, error) {
	stripped, err := llm.StripMarkdownJSONArray(raw)
	if err != nil {
		return nil, err
	}
	var items []candidateItem
	if err := json.Unmarshal([]byte(stripped), &items); err != nil {
		return nil, memerr.Wrap(memerr.ExtractionFailed, "unmarshal candidate items", err)
	}
	for i := range items {
		items[i].MemoryType = memType
	}
	return items, nil
}
