// Package retrieve implements the dual retrieval engine: route+rewrite,
// category/item/resource recall (RAG or LLM-ranked), and
// sufficiency-gated early termination, as workflow.Step constructors
// wired into the "retrieve_rag" and "retrieve_llm" pipelines.
package retrieve

import (
	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/scope"
	"github.com/corewell/memoryd/internal/workflow"
)

// Deps bundles everything the retrieve steps need.
type Deps struct {
	Repos      ports.Repositories
	LLM        *llm.Cache
	Config     config.RetrieveConfig
	ScopeModel scope.Model
}

// candidateOverhead bounds how many extra candidates the LLM-ranking
// method fetches per section beyond top_k, so ranking has a pool to pick
// from without pulling the whole table.
const candidateOverhead = 5

const (
	KeyQueries        = "queries"
	KeyWhere          = "where"
	KeyNeedsRetrieval = "needs_retrieval"
	KeyOriginalQuery  = "original_query"
	KeyRewrittenQuery = "rewritten_query"
	KeyNextStepQuery  = "next_step_query"
	KeyCategories     = "categories"
	KeyItems          = "items"
	KeyResources      = "resources"
	KeyResponse       = "response"
)

// NewPipeline builds the named retrieve pipeline for the given method
// ("retrieve_rag" or "retrieve_llm"); both methods share the same
// staging: route, category recall, sufficiency, item recall,
// sufficiency, resource recall, response.
func NewPipeline(deps Deps, method config.RetrieveMethod) workflow.Pipeline {
	name := "retrieve_rag"
	if method == config.RetrieveMethodLLM {
		name = "retrieve_llm"
	}
	return workflow.Pipeline{
		Name:          name,
		InitialInputs: []string{KeyQueries, KeyWhere},
		Steps: []workflow.Step{
			NewRouteRewriteStep(deps),
			NewCategoryRecallStep(deps, method),
			NewSufficiencyStep(deps, "category"),
			NewItemRecallStep(deps, method),
			NewSufficiencyStep(deps, "item"),
			NewResourceRecallStep(deps, method),
			NewBuildResponseStep(deps),
		},
	}
}
