// Package memorize implements the seven-step ingestion pipeline as
// workflow.Step constructors wired into one named pipeline: fetch,
// preprocess, extract, dedupe, categorize, index, respond.
package memorize

import (
	"github.com/corewell/memoryd/internal/blob"
	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/scope"
	"github.com/corewell/memoryd/internal/workflow"
)

// Deps bundles everything the memorize steps need, built once by
// internal/service and handed to each step constructor.
type Deps struct {
	Fetcher     blob.Fetcher
	ResourceDir string
	Repos       ports.Repositories
	LLM         *llm.Cache
	Config      config.MemorizeConfig
	ScopeModel  scope.Model
	// SummaryLocks serializes category summary rebuilds per
	// (scope, category). Shared with the CRUD path; may be nil.
	SummaryLocks *memcore.KeyedMutex
}

// candidateItem is one not-yet-persisted extracted memory, produced by
// extract_items and consumed by categorize_items.
type candidateItem struct {
	MemoryType    string   `json:"-"`
	Summary       string   `json:"summary"`
	CategoryHints []string `json:"category_hints"`
}

// State keys shared across steps.
const (
	KeyResourceURL    = "resource_url"
	KeyModality       = "modality"
	KeyScope          = "scope"
	KeySummaryPrompt  = "summary_prompt"
	KeyBlob           = "blob"
	KeyResource       = "resource"
	KeyCaption        = "caption"
	KeyCandidateItems = "candidate_items"
	KeyDedupedItems   = "deduped_items"
	KeyPersistedItems = "persisted_items"
	KeyCategories     = "categories"
	KeyRelations      = "relations"
	KeyTouchedCatIDs  = "touched_category_ids"
	KeyResponse       = "response"
)

// NewPipeline assembles the default "memorize" pipeline from the seven
// step constructors.
func NewPipeline(deps Deps) workflow.Pipeline {
	return workflow.Pipeline{
		Name: "memorize",
		InitialInputs: []string{
			KeyResourceURL, KeyModality, KeyScope, KeySummaryPrompt,
		},
		Steps: []workflow.Step{
			NewIngestResourceStep(deps),
			NewPreprocessMultimodalStep(deps),
			NewExtractItemsStep(deps),
			NewDedupeMergeStep(deps),
			NewCategorizeItemsStep(deps),
			NewPersistIndexStep(deps),
			NewBuildResponseStep(deps),
		},
	}
}
