package memorize

import (
	"context"

	"github.com/corewell/memoryd/internal/workflow"
)

// NewDedupeMergeStep is a pass-through extension point: operators can
// replace it with a step that merges candidate items against existing
// ones in the same scope. The default implementation forwards
// candidate_items unchanged.
func NewDedupeMergeStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:       "dedupe_merge",
		Requires: []string{KeyCandidateItems},
		Produces: []string{KeyDedupedItems},
		Handler: func(ctx context.Context, state *workflow.State) error {
			items, _ := state.Get(KeyCandidateItems)
			state.Set(KeyDedupedItems, items)
			return nil
		},
	}
}
