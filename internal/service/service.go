// Package service implements MemoryService, the in-process façade: it
// owns configuration and the pipeline manager, and each public method
// runs a named pipeline instead of dispatching through subclassing.
package service

import (
	"context"

	"github.com/corewell/memoryd/internal/blob"
	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/crud"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/memorize"
	"github.com/corewell/memoryd/internal/repository"
	"github.com/corewell/memoryd/internal/retrieve"
	"github.com/corewell/memoryd/internal/scope"
	"github.com/corewell/memoryd/internal/workflow"
)

// Pipeline names registered at construction time.
const (
	PipelineMemorize           = "memorize"
	PipelineRetrieveRAG        = "retrieve_rag"
	PipelineRetrieveLLM        = "retrieve_llm"
	PipelinePatchCreate        = "patch_create"
	PipelinePatchUpdate        = "patch_update"
	PipelinePatchDelete        = "patch_delete"
	PipelineCRUDListItems      = "crud_list_items"
	PipelineCRUDListCategories = "crud_list_categories"
)

// MemoryService is the in-process façade: *config.Config, the pipeline
// manager, the four repository ports, the LLM client cache, and a blob
// fetcher.
type MemoryService struct {
	cfg        *config.Config
	manager    *workflow.Manager
	runner     *workflow.Runner
	repos      ports.Repositories
	llmCache   *llm.Cache
	fetcher    blob.Fetcher
	scopeModel scope.Model
	// summaryLocks serializes category summary rebuilds per
	// (scope, category) across the memorize pipeline and the CRUD path.
	summaryLocks *memcore.KeyedMutex
	closeRepos   func() error
}

// New constructs a MemoryService from cfg: wires repositories per
// config.DatabaseConfig, builds the LLM client cache from
// config.LLMProfiles, constructs the local blob fetcher, and registers
// the eight default pipelines.
func New(ctx context.Context, cfg *config.Config) (*MemoryService, error) {
	repos, closeRepos, err := repository.Build(ctx, cfg.Database)
	if err != nil {
		return nil, memerr.Wrap(memerr.BackendUnavailable, "build repositories", err)
	}

	svc := &MemoryService{
		cfg:          cfg,
		manager:      workflow.NewManager(),
		runner:       workflow.NewRunner(),
		repos:        repos,
		llmCache:     llm.NewCache(cfg.LLMProfiles),
		fetcher:      blob.NewLocalFetcher(0),
		scopeModel:   scope.NewModel(cfg.User.Model),
		summaryLocks: memcore.NewKeyedMutex(),
		closeRepos:   closeRepos,
	}

	svc.registerDefaultPipelines()
	return svc, nil
}

// Close tears down the LLM client cache and any repository connections;
// the façade is the one teardown point for shared clients.
func (s *MemoryService) Close() error {
	if err := s.llmCache.Close(); err != nil {
		return err
	}
	if s.closeRepos != nil {
		return s.closeRepos()
	}
	return nil
}

func (s *MemoryService) memorizeDeps() memorize.Deps {
	return memorize.Deps{
		Fetcher:      s.fetcher,
		ResourceDir:  s.cfg.Blob.ResourcesDir,
		Repos:        s.repos,
		LLM:          s.llmCache,
		Config:       s.cfg.Memorize,
		ScopeModel:   s.scopeModel,
		SummaryLocks: s.summaryLocks,
	}
}

func (s *MemoryService) retrieveDeps() retrieve.Deps {
	return retrieve.Deps{
		Repos:      s.repos,
		LLM:        s.llmCache,
		Config:     s.cfg.Retrieve,
		ScopeModel: s.scopeModel,
	}
}

func (s *MemoryService) crudDeps() crud.Deps {
	return crud.Deps{
		Repos:        s.repos,
		LLM:          s.llmCache,
		Config:       s.cfg.Memorize,
		SummaryLocks: s.summaryLocks,
	}
}

func (s *MemoryService) registerDefaultPipelines() {
	memorizePipeline := memorize.NewPipeline(s.memorizeDeps())
	s.manager.Register(&memorizePipeline)

	ragPipeline := retrieve.NewPipeline(s.retrieveDeps(), config.RetrieveMethodRAG)
	s.manager.Register(&ragPipeline)

	llmPipeline := retrieve.NewPipeline(s.retrieveDeps(), config.RetrieveMethodLLM)
	s.manager.Register(&llmPipeline)

	// The patch_*/crud_list_* pipelines exist so operators can insert
	// interceptor steps (audit logging, etc.) around an otherwise-direct
	// CRUD call; their default shape is a single pass-through step.
	s.manager.Register(&workflow.Pipeline{Name: PipelinePatchCreate, Steps: []workflow.Step{passthroughStep("patch_create")}})
	s.manager.Register(&workflow.Pipeline{Name: PipelinePatchUpdate, Steps: []workflow.Step{passthroughStep("patch_update")}})
	s.manager.Register(&workflow.Pipeline{Name: PipelinePatchDelete, Steps: []workflow.Step{passthroughStep("patch_delete")}})
	s.manager.Register(&workflow.Pipeline{Name: PipelineCRUDListItems, Steps: []workflow.Step{passthroughStep("crud_list_items")}})
	s.manager.Register(&workflow.Pipeline{Name: PipelineCRUDListCategories, Steps: []workflow.Step{passthroughStep("crud_list_categories")}})
}

func passthroughStep(id string) workflow.Step {
	return workflow.Step{
		ID:      id,
		Handler: func(ctx context.Context, state *workflow.State) error { return nil },
	}
}

// Memorize ingests one resource and returns the extracted memories.
func (s *MemoryService) Memorize(ctx context.Context, resourceURL string, modality memcore.Modality, summaryPrompt string, sc memcore.Scope) (*memcore.MemorizeResult, error) {
	if resourceURL == "" {
		return nil, memerr.New(memerr.InvalidInput, "resource_url must not be empty")
	}
	switch modality {
	case memcore.ModalityConversation, memcore.ModalityDocument, memcore.ModalityImage, memcore.ModalityVideo, memcore.ModalityAudio:
	default:
		return nil, memerr.Newf(memerr.InvalidInput, "unknown modality %q", modality)
	}
	if err := scope.ValidateScope(s.scopeModel, sc); err != nil {
		return nil, err
	}

	pipeline, err := s.manager.Get(PipelineMemorize)
	if err != nil {
		return nil, err
	}

	state := workflow.NewState(map[string]any{
		memorize.KeyResourceURL:   resourceURL,
		memorize.KeyModality:      modality,
		memorize.KeyScope:         sc,
		memorize.KeySummaryPrompt: summaryPrompt,
	})

	if err := s.runner.Run(ctx, pipeline, state, workflow.Interceptors{}); err != nil {
		return nil, err
	}

	respVal, ok := state.Get(memorize.KeyResponse)
	if !ok {
		return nil, memerr.New(memerr.ExtractionFailed, "memorize pipeline did not produce a response")
	}
	resp := respVal.(memcore.MemorizeResult)
	return &resp, nil
}

// Retrieve answers a query conversation from stored memories, selecting
// the "retrieve_rag" or "retrieve_llm" pipeline per
// config.RetrieveConfig.Method.
func (s *MemoryService) Retrieve(ctx context.Context, queries []memcore.QueryMessage, where ports.Where) (*memcore.RetrieveResult, error) {
	if len(queries) == 0 {
		return nil, memerr.New(memerr.InvalidQuery, "retrieve requires at least one query message")
	}
	if err := scope.ValidateWhere(s.scopeModel, where); err != nil {
		return nil, err
	}

	name := PipelineRetrieveRAG
	if s.cfg.Retrieve.Method == config.RetrieveMethodLLM {
		name = PipelineRetrieveLLM
	}
	pipeline, err := s.manager.Get(name)
	if err != nil {
		return nil, err
	}

	state := workflow.NewState(map[string]any{
		retrieve.KeyQueries: queries,
		retrieve.KeyWhere:   where,
	})

	if err := s.runner.Run(ctx, pipeline, state, workflow.Interceptors{}); err != nil {
		return nil, err
	}

	// A sufficiency check may have halted the pipeline before its final
	// build_response step ran; build the result from whatever state is
	// present either way (see retrieve.BuildResult's doc comment).
	result := retrieve.BuildResult(state)
	return &result, nil
}

// CreateMemoryItem creates one item directly, without a source resource.
func (s *MemoryService) CreateMemoryItem(ctx context.Context, memoryType, content string, categoryNames []string, sc memcore.Scope) (*crud.CreateResult, error) {
	if err := scope.ValidateScope(s.scopeModel, sc); err != nil {
		return nil, err
	}
	return crud.CreateMemoryItem(ctx, s.crudDeps(), memoryType, content, categoryNames, sc)
}

// UpdateMemoryItem mutates an item's type, content, and/or categories.
func (s *MemoryService) UpdateMemoryItem(ctx context.Context, id string, memoryType, content *string, categoryNames *[]string, sc memcore.Scope) (*crud.CreateResult, error) {
	if err := scope.ValidateScope(s.scopeModel, sc); err != nil {
		return nil, err
	}
	return crud.UpdateMemoryItem(ctx, s.crudDeps(), id, memoryType, content, categoryNames, sc)
}

// DeleteMemoryItem deletes an item, cascading to its category edges.
func (s *MemoryService) DeleteMemoryItem(ctx context.Context, id string, sc memcore.Scope) error {
	if err := scope.ValidateScope(s.scopeModel, sc); err != nil {
		return err
	}
	return crud.DeleteMemoryItem(ctx, s.crudDeps(), id, sc)
}

// ReinforceMemoryItem bumps an item's reinforcement counter (the hits
// term of the salience composite). Reinforcement is caller-driven: the
// retrieve engines read hits but never write them.
func (s *MemoryService) ReinforceMemoryItem(ctx context.Context, id string, sc memcore.Scope) error {
	if err := scope.ValidateScope(s.scopeModel, sc); err != nil {
		return err
	}
	return crud.ReinforceMemoryItem(ctx, s.crudDeps(), id, sc)
}

// ListMemoryItems is the filter-only item read; no scoring.
func (s *MemoryService) ListMemoryItems(ctx context.Context, where ports.Where) ([]*memcore.MemoryItem, error) {
	if err := scope.ValidateWhere(s.scopeModel, where); err != nil {
		return nil, err
	}
	return crud.ListMemoryItems(ctx, s.crudDeps(), where)
}

// ListMemoryCategories is the filter-only category read; no scoring.
func (s *MemoryService) ListMemoryCategories(ctx context.Context, where ports.Where) ([]*memcore.MemoryCategory, error) {
	if err := scope.ValidateWhere(s.scopeModel, where); err != nil {
		return nil, err
	}
	return crud.ListMemoryCategories(ctx, s.crudDeps(), where)
}

// ConfigurePipeline merges cfg into the named step's Config map and
// returns the pipeline's new revision.
func (s *MemoryService) ConfigurePipeline(pipeline, stepID string, cfg map[string]any) (int, error) {
	return s.manager.ConfigureStep(pipeline, stepID, cfg)
}

// InsertStepBefore inserts step immediately before anchorID in pipeline,
// returning the new revision.
func (s *MemoryService) InsertStepBefore(pipeline, anchorID string, step workflow.Step) (int, error) {
	return s.manager.InsertStepBefore(pipeline, anchorID, step)
}

// InsertStepAfter inserts step immediately after anchorID in pipeline,
// returning the new revision.
func (s *MemoryService) InsertStepAfter(pipeline, anchorID string, step workflow.Step) (int, error) {
	return s.manager.InsertStepAfter(pipeline, anchorID, step)
}

// ReplaceStep swaps the step stepID for replacement, keeping its
// position and returning the new revision.
func (s *MemoryService) ReplaceStep(pipeline, stepID string, replacement workflow.Step) (int, error) {
	return s.manager.ReplaceStep(pipeline, stepID, replacement)
}

// RemoveStep deletes the step stepID from pipeline, returning the new
// revision.
func (s *MemoryService) RemoveStep(pipeline, stepID string) (int, error) {
	return s.manager.RemoveStep(pipeline, stepID)
}

// PipelineRevision returns the current revision of the named pipeline,
// the value every pipeline-mutation method bumps and returns.
func (s *MemoryService) PipelineRevision(pipeline string) (int, error) {
	p, err := s.manager.Get(pipeline)
	if err != nil {
		return 0, err
	}
	return p.Revision, nil
}
