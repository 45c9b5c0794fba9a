package workflow

import (
	"sync"

	"github.com/corewell/memoryd/internal/memerr"
)

// Manager owns the named pipelines a MemoryService runs, and applies
// revisioned, validated mutation operations (configure_step,
// insert_step_before/after, replace_step, remove_step).
type Manager struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

func NewManager() *Manager {
	return &Manager{pipelines: make(map[string]*Pipeline)}
}

// Register installs a pipeline at revision 0. Re-registering an existing
// name replaces it outright (used at service construction time only).
func (m *Manager) Register(p *Pipeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p.clone()
	m.pipelines[cp.Name] = cp
}

// Get returns the current *Pipeline for name.
func (m *Manager) Get(name string) (*Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[name]
	if !ok {
		return nil, memerr.Newf(memerr.PipelineInvalid, "pipeline %q not registered", name)
	}
	return p, nil
}

// validate checks that every step's Requires is satisfied by the
// pipeline's declared initial inputs or an earlier step's Produces.
func validate(p *Pipeline) error {
	available := make(map[string]bool, len(p.InitialInputs))
	for _, in := range p.InitialInputs {
		available[in] = true
	}
	for _, step := range p.Steps {
		for _, req := range step.Requires {
			if !available[req] {
				return memerr.Newf(memerr.PipelineInvalid,
					"step %q requires %q which is not produced by any earlier step", step.ID, req)
			}
		}
		for _, prod := range step.Produces {
			available[prod] = true
		}
	}
	return nil
}

// apply clones the current pipeline, runs mutate against the clone, and
// on successful validation swaps it in and bumps Revision, returning the
// new revision. A validation failure leaves the prior pipeline and
// revision untouched.
func (m *Manager) apply(name string, mutate func(*Pipeline) error) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.pipelines[name]
	if !ok {
		return 0, memerr.Newf(memerr.PipelineInvalid, "pipeline %q not registered", name)
	}
	next := current.clone()
	if err := mutate(next); err != nil {
		return current.Revision, err
	}
	if err := validate(next); err != nil {
		return current.Revision, err
	}
	next.Revision = current.Revision + 1
	m.pipelines[name] = next
	return next.Revision, nil
}

func indexOf(steps []Step, stepID string) int {
	for i, s := range steps {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}

// ConfigureStep merges cfg into the named step's Config map, returning
// the pipeline's new revision.
func (m *Manager) ConfigureStep(pipeline, stepID string, cfg map[string]any) (int, error) {
	return m.apply(pipeline, func(p *Pipeline) error {
		i := indexOf(p.Steps, stepID)
		if i == -1 {
			return memerr.Newf(memerr.PipelineInvalid, "step %q not found in pipeline %q", stepID, pipeline)
		}
		merged := make(map[string]any, len(p.Steps[i].Config)+len(cfg))
		for k, v := range p.Steps[i].Config {
			merged[k] = v
		}
		for k, v := range cfg {
			merged[k] = v
		}
		p.Steps[i].Config = merged
		return nil
	})
}

// InsertStepBefore inserts step immediately before the step anchorID,
// returning the new revision.
func (m *Manager) InsertStepBefore(pipeline, anchorID string, step Step) (int, error) {
	return m.apply(pipeline, func(p *Pipeline) error {
		i := indexOf(p.Steps, anchorID)
		if i == -1 {
			return memerr.Newf(memerr.PipelineInvalid, "anchor step %q not found in pipeline %q", anchorID, pipeline)
		}
		p.Steps = insertAt(p.Steps, i, step)
		return nil
	})
}

// InsertStepAfter inserts step immediately after the step anchorID,
// returning the new revision.
func (m *Manager) InsertStepAfter(pipeline, anchorID string, step Step) (int, error) {
	return m.apply(pipeline, func(p *Pipeline) error {
		i := indexOf(p.Steps, anchorID)
		if i == -1 {
			return memerr.Newf(memerr.PipelineInvalid, "anchor step %q not found in pipeline %q", anchorID, pipeline)
		}
		p.Steps = insertAt(p.Steps, i+1, step)
		return nil
	})
}

// ReplaceStep swaps the step with ID stepID for replacement, keeping
// its position and returning the new revision.
func (m *Manager) ReplaceStep(pipeline, stepID string, replacement Step) (int, error) {
	return m.apply(pipeline, func(p *Pipeline) error {
		i := indexOf(p.Steps, stepID)
		if i == -1 {
			return memerr.Newf(memerr.PipelineInvalid, "step %q not found in pipeline %q", stepID, pipeline)
		}
		p.Steps[i] = replacement
		return nil
	})
}

// RemoveStep deletes the step with ID stepID, returning the new revision.
func (m *Manager) RemoveStep(pipeline, stepID string) (int, error) {
	return m.apply(pipeline, func(p *Pipeline) error {
		i := indexOf(p.Steps, stepID)
		if i == -1 {
			return memerr.Newf(memerr.PipelineInvalid, "step %q not found in pipeline %q", stepID, pipeline)
		}
		p.Steps = append(p.Steps[:i], p.Steps[i+1:]...)
		return nil
	})
}

func insertAt(steps []Step, i int, step Step) []Step {
	out := make([]Step, 0, len(steps)+1)
	out = append(out, steps[:i]...)
	out = append(out, step)
	out = append(out, steps[i:]...)
	return out
}
