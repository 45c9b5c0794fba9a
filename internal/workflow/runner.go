package workflow

import (
	"context"
	"fmt"

	"github.com/corewell/memoryd/internal/memerr"
)

// Interceptors lets callers observe/augment step execution without
// modifying step handlers.
type Interceptors struct {
	Before  func(ctx context.Context, step Step, state *State)
	After   func(ctx context.Context, step Step, state *State)
	OnError func(ctx context.Context, step Step, state *State, err error)
}

// Runner executes a Pipeline's steps sequentially against a *State.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

// Run executes pipeline.Steps in order. A step's error aborts the run;
// state.StopWith short-circuits the remaining steps without error.
// Cancellation is checked at each step's entry and again after it
// returns (the run's suspension points); either check fires on_error
// for the current step with a memerr.Cancelled and returns it.
func (r *Runner) Run(ctx context.Context, pipeline *Pipeline, state *State, ic Interceptors) error {
	for _, step := range pipeline.Steps {
		if halted, _ := state.Halted(); halted {
			break
		}

		if cancelErr := r.checkCancelled(ctx, step, state, ic); cancelErr != nil {
			return cancelErr
		}

		if ic.Before != nil {
			ic.Before(ctx, step, state)
		}

		err := step.Handler(ctx, state)

		if err != nil {
			if ic.OnError != nil {
				ic.OnError(ctx, step, state, err)
			}
			if me, ok := err.(*memerr.Error); ok {
				return me
			}
			return memerr.Wrap(memerr.PipelineInvalid, fmt.Sprintf("step %q failed", step.ID), err)
		}

		if ic.After != nil {
			ic.After(ctx, step, state)
		}

		if cancelErr := r.checkCancelled(ctx, step, state, ic); cancelErr != nil {
			return cancelErr
		}
	}
	return nil
}

// checkCancelled reports the context's cancellation as a *memerr.Error
// of kind Cancelled, invoking on_error for the current step first.
// Returns nil when ctx is still live.
func (r *Runner) checkCancelled(ctx context.Context, step Step, state *State, ic Interceptors) error {
	select {
	case <-ctx.Done():
		cancelErr := memerr.Wrap(memerr.Cancelled, fmt.Sprintf("step %q cancelled", step.ID), ctx.Err())
		if ic.OnError != nil {
			ic.OnError(ctx, step, state, cancelErr)
		}
		return cancelErr
	default:
		return nil
	}
}
