package retrieve

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

const routePrompt = `Given the conversation below, decide whether retrieving long-term memory would help answer the last message. Respond with only a JSON object: {"needs_retrieval": bool, "rewritten_query": "one self-contained query capturing the conversation's intent", "next_step_query": "optional hint about what might be asked next, or empty string"}.

Conversation:
%s`

type routeDecision struct {
	NeedsRetrieval bool   `json:"needs_retrieval"`
	RewrittenQuery string `json:"rewritten_query"`
	NextStepQuery  string `json:"next_step_query"`
}

// NewRouteRewriteStep decides needs_retrieval and condenses the
// conversation into rewritten_query. When route_intention
// is disabled, retrieval is always attempted and the last message is
// used verbatim as the rewritten query.
func NewRouteRewriteStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:           "route_rewrite",
		Requires:     []string{KeyQueries},
		Produces:     []string{KeyNeedsRetrieval, KeyOriginalQuery, KeyRewrittenQuery, KeyNextStepQuery},
		Capabilities: []string{"llm"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			queriesVal, _ := state.Get(KeyQueries)
			messages, _ := queriesVal.([]memcore.QueryMessage)
			if len(messages) == 0 {
				return memerr.New(memerr.InvalidQuery, "retrieve requires at least one query message")
			}
			original := messages[len(messages)-1].Content.Resolve()
			state.Set(KeyOriginalQuery, original)

			if !deps.Config.RouteIntention {
				state.Set(KeyNeedsRetrieval, true)
				state.Set(KeyRewrittenQuery, original)
				state.Set(KeyNextStepQuery, "")
				return nil
			}

			profileName := deps.Config.SufficiencyCheckProfile
			if profileName == "" {
				profileName = "default"
			}
			client, err := deps.LLM.Get(profileName)
			if err != nil {
				return err
			}

			prompt := formatConversation(messages)
			raw, err := client.Chat(ctx, llm.ChatRequest{Messages: []llm.ChatMessage{
				{Role: "user", Text: fmt.Sprintf(routePrompt, prompt)},
			}})
			if err != nil {
				slog.Warn("route_rewrite: chat call failed, defaulting to retrieval needed", "error", err)
				state.Set(KeyNeedsRetrieval, true)
				state.Set(KeyRewrittenQuery, original)
				state.Set(KeyNextStepQuery, "")
				return nil
			}

			decision, err := parseRouteDecision(raw)
			if err != nil {
				slog.Warn("route_rewrite: unparseable routing output, defaulting to retrieval needed", "error", err)
				state.Set(KeyNeedsRetrieval, true)
				state.Set(KeyRewrittenQuery, original)
				state.Set(KeyNextStepQuery, "")
				return nil
			}

			state.Set(KeyNeedsRetrieval, decision.NeedsRetrieval)
			rewritten := decision.RewrittenQuery
			if rewritten == "" {
				rewritten = original
			}
			state.Set(KeyRewrittenQuery, rewritten)
			state.Set(KeyNextStepQuery, decision.NextStepQuery)
			return nil
		},
	}
}

func formatConversation(messages []memcore.QueryMessage) string {
	var out string
	for _, m := range messages {
		out += m.Role + ": " + m.Content.Resolve() + "\n"
	}
	return out
}

func parseRouteDecision(raw string) (routeDecision, error) {
	stripped, err := llm.StripMarkdownJSON(raw)
	if err != nil {
		return routeDecision{}, err
	}
	var decision routeDecision
	if err := json.Unmarshal([]byte(stripped), &decision); err != nil {
		return routeDecision{}, err
	}
	return decision, nil
}
