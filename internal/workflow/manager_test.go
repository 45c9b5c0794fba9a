package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/memerr"
)

func noopHandler(ctx context.Context, s *State) error { return nil }

func basePipeline() *Pipeline {
	return &Pipeline{
		Name:          "memorize",
		InitialInputs: []string{"resource"},
		Steps: []Step{
			{ID: "ingest_resource", Requires: []string{"resource"}, Produces: []string{"raw_text"}, Handler: noopHandler},
			{ID: "extract_items", Requires: []string{"raw_text"}, Produces: []string{"items"}, Handler: noopHandler},
		},
	}
}

func TestManager_ConfigureStep(t *testing.T) {
	m := NewManager()
	m.Register(basePipeline())

	rev, err := m.ConfigureStep("memorize", "ingest_resource", map[string]any{"timeout_ms": 5000})
	require.NoError(t, err)
	require.Equal(t, 1, rev)

	p, err := m.Get("memorize")
	require.NoError(t, err)
	require.Equal(t, 1, p.Revision)
	require.Equal(t, 5000, p.Steps[0].Config["timeout_ms"])
}

func TestManager_InsertStepBeforeAndAfter(t *testing.T) {
	m := NewManager()
	m.Register(basePipeline())

	rev, err := m.InsertStepBefore("memorize", "extract_items", Step{
		ID: "preprocess_multimodal", Requires: []string{"raw_text"}, Produces: []string{"raw_text"}, Handler: noopHandler,
	})
	require.NoError(t, err)
	require.Equal(t, 1, rev)
	p, err := m.Get("memorize")
	require.NoError(t, err)
	require.Equal(t, []string{"ingest_resource", "preprocess_multimodal", "extract_items"}, stepIDs(p))

	rev, err = m.InsertStepAfter("memorize", "extract_items", Step{
		ID: "categorize_items", Requires: []string{"items"}, Produces: []string{"categories"}, Handler: noopHandler,
	})
	require.NoError(t, err)
	require.Equal(t, 2, rev)
	p, err = m.Get("memorize")
	require.NoError(t, err)
	require.Equal(t, []string{"ingest_resource", "preprocess_multimodal", "extract_items", "categorize_items"}, stepIDs(p))
	require.Equal(t, 2, p.Revision)
}

func TestManager_ReplaceAndRemoveStep(t *testing.T) {
	m := NewManager()
	m.Register(basePipeline())

	_, err := m.ReplaceStep("memorize", "extract_items", Step{
		ID: "extract_items", Requires: []string{"raw_text"}, Produces: []string{"items"}, Handler: noopHandler,
		Config: map[string]any{"model": "override"},
	})
	require.NoError(t, err)
	p, _ := m.Get("memorize")
	require.Equal(t, "override", p.Steps[1].Config["model"])

	rev, err := m.RemoveStep("memorize", "extract_items")
	require.NoError(t, err)
	require.Equal(t, 2, rev)
	p, err = m.Get("memorize")
	require.NoError(t, err)
	require.Equal(t, []string{"ingest_resource"}, stepIDs(p))
}

func TestManager_RejectsInvalidDependencyGraph(t *testing.T) {
	m := NewManager()
	m.Register(basePipeline())

	_, err := m.RemoveStep("memorize", "ingest_resource")
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.PipelineInvalid))

	// The rejected mutation must not have bumped the revision or dropped the step.
	p, getErr := m.Get("memorize")
	require.NoError(t, getErr)
	require.Equal(t, 0, p.Revision)
	require.Equal(t, []string{"ingest_resource", "extract_items"}, stepIDs(p))
}

func TestManager_UnknownPipeline(t *testing.T) {
	m := NewManager()
	_, err := m.Get("nope")
	require.Error(t, err)
}

func stepIDs(p *Pipeline) []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.ID
	}
	return out
}
