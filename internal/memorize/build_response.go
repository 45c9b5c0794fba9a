package memorize

import (
	"context"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/workflow"
)

// NewBuildResponseStep assembles the final {resource, items, categories,
// relations} shape returned by memorize().
func NewBuildResponseStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:       "build_response",
		Requires: []string{KeyResource, KeyPersistedItems, KeyCategories, KeyRelations},
		Produces: []string{KeyResponse},
		Handler: func(ctx context.Context, state *workflow.State) error {
			resourceVal, _ := state.Get(KeyResource)
			itemsVal, _ := state.Get(KeyPersistedItems)
			categoriesVal, _ := state.Get(KeyCategories)
			relationsVal, _ := state.Get(KeyRelations)

			resource := resourceVal.(*memcore.Resource)
			items, _ := itemsVal.([]memcore.MemoryItem)
			categories, _ := categoriesVal.([]memcore.MemoryCategory)
			relations, _ := relationsVal.([]memcore.CategoryItem)

			state.Set(KeyResponse, memcore.MemorizeResult{
				Resource:   *resource,
				Items:      items,
				Categories: categories,
				Relations:  relations,
			})
			return nil
		},
	}
}
