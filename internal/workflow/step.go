// Package workflow implements a sequential pipeline engine: named
// pipelines of Steps with requires/produces dependency validation,
// before/after/on_error interceptors, and revisioned mutation
// operations.
package workflow

import "context"

// Step is one named unit of work within a Pipeline. Requires/Produces
// name logical keys in *State the Manager checks when validating a
// pipeline mutation: every key a step Requires must already be Produced
// by an earlier step, or present in the pipeline's declared initial
// inputs.
type Step struct {
	ID           string
	Requires     []string
	Produces     []string
	Capabilities []string
	Config       map[string]any
	Handler      StepHandler
}

// StepHandler does the step's work, reading/writing *State.
type StepHandler func(ctx context.Context, state *State) error

// Pipeline is a named, ordered list of steps plus the inputs it expects
// callers to seed into State before Run.
type Pipeline struct {
	Name           string
	Steps          []Step
	InitialInputs  []string
	Revision       int
}

// clone returns a deep-enough copy for copy-on-write mutation: the Steps
// slice is copied so callers holding the old *Pipeline are unaffected by
// a subsequent Manager mutation.
func (p *Pipeline) clone() *Pipeline {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	inputs := make([]string, len(p.InitialInputs))
	copy(inputs, p.InitialInputs)
	return &Pipeline{Name: p.Name, Steps: steps, InitialInputs: inputs, Revision: p.Revision}
}
