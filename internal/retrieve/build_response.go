package retrieve

import (
	"context"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/workflow"
)

// BuildResult assembles the final {needs_retrieval, original_query,
// rewritten_query, next_step_query, categories, items, resources}
// response directly from whatever keys are present in state. Exported (rather than only reachable as a pipeline step)
// because a sufficiency check's state.StopWith halts every remaining
// step of the pipeline, build_response included (see workflow.Runner);
// internal/service calls this after Runner.Run returns so the
// short-circuited response still gets built.
func BuildResult(state *workflow.State) memcore.RetrieveResult {
	originalVal, _ := state.Get(KeyOriginalQuery)
	rewrittenVal, _ := state.Get(KeyRewrittenQuery)
	needsVal, _ := state.Get(KeyNeedsRetrieval)

	original, _ := originalVal.(string)
	rewritten, _ := rewrittenVal.(string)
	needs, _ := needsVal.(bool)

	result := memcore.RetrieveResult{
		NeedsRetrieval: needs,
		OriginalQuery:  original,
		RewrittenQuery: rewritten,
		Categories:     []memcore.ScoredCategory{},
		Items:          []memcore.ScoredItem{},
		Resources:      []memcore.ScoredResource{},
	}

	if nextVal, ok := state.Get(KeyNextStepQuery); ok {
		if next, ok := nextVal.(string); ok && next != "" {
			result.NextStepQuery = &next
		}
	}

	if catsVal, ok := state.Get(KeyCategories); ok {
		if cats, ok := catsVal.([]memcore.ScoredCategory); ok {
			result.Categories = cats
		}
	}
	if itemsVal, ok := state.Get(KeyItems); ok {
		if items, ok := itemsVal.([]memcore.ScoredItem); ok {
			result.Items = items
		}
	}
	if resVal, ok := state.Get(KeyResources); ok {
		if resources, ok := resVal.([]memcore.ScoredResource); ok {
			result.Resources = resources
		}
	}

	return result
}

// NewBuildResponseStep wraps BuildResult as the pipeline's final step,
// for the common case where no sufficiency check short-circuited the
// run. Still registered as a real step: every named pipeline must
// satisfy the requires/produces chain, and callers mutating the
// pipeline (insert_step_after "build_response", ...) need a real step
// to anchor on.
func NewBuildResponseStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:       "build_response",
		Requires: []string{KeyOriginalQuery, KeyRewrittenQuery},
		Produces: []string{KeyResponse},
		Handler: func(ctx context.Context, state *workflow.State) error {
			state.Set(KeyResponse, BuildResult(state))
			return nil
		},
	}
}
