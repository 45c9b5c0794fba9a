package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/memerr"
)

func TestRunner_RunsStepsInOrder(t *testing.T) {
	var order []string
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error {
			order = append(order, "a")
			s.Set("a_done", true)
			return nil
		}},
		{ID: "b", Handler: func(ctx context.Context, s *State) error {
			order = append(order, "b")
			require.True(t, s.Has("a_done"))
			return nil
		}},
	}}

	r := NewRunner()
	require.NoError(t, r.Run(context.Background(), p, NewState(nil), Interceptors{}))
	require.Equal(t, []string{"a", "b"}, order)
}

func TestRunner_HaltStopsRemainingSteps(t *testing.T) {
	var ran []string
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error {
			ran = append(ran, "a")
			s.StopWith("sufficiency check failed")
			return nil
		}},
		{ID: "b", Handler: func(ctx context.Context, s *State) error {
			ran = append(ran, "b")
			return nil
		}},
	}}

	r := NewRunner()
	require.NoError(t, r.Run(context.Background(), p, NewState(nil), Interceptors{}))
	require.Equal(t, []string{"a"}, ran)
}

func TestRunner_ErrorAbortsAndInvokesOnError(t *testing.T) {
	wantErr := errors.New("boom")
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error { return wantErr }},
		{ID: "b", Handler: func(ctx context.Context, s *State) error {
			t.Fatal("step b should not run after step a fails")
			return nil
		}},
	}}

	var caught error
	r := NewRunner()
	err := r.Run(context.Background(), p, NewState(nil), Interceptors{
		OnError: func(ctx context.Context, step Step, s *State, e error) { caught = e },
	})
	require.Error(t, err)
	require.Equal(t, wantErr, caught)
}

func TestRunner_PreservesMemerrKind(t *testing.T) {
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error {
			return memerr.New(memerr.FetchFailed, "could not fetch resource")
		}},
	}}

	r := NewRunner()
	err := r.Run(context.Background(), p, NewState(nil), Interceptors{})
	require.True(t, memerr.Is(err, memerr.FetchFailed))
}

func TestRunner_CancelledContextInvokesOnErrorAndReturnsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran []string
	var caughtStep string
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error {
			ran = append(ran, "a")
			return nil
		}},
	}}

	r := NewRunner()
	err := r.Run(ctx, p, NewState(nil), Interceptors{
		OnError: func(ctx context.Context, step Step, s *State, e error) {
			caughtStep = step.ID
			require.True(t, memerr.Is(e, memerr.Cancelled))
		},
	})

	require.True(t, memerr.Is(err, memerr.Cancelled))
	require.Equal(t, "a", caughtStep)
	require.Empty(t, ran, "step handler should not run once the context is already cancelled")
}

func TestRunner_CancellationBetweenStepsStopsRemainingSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran []string
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error {
			ran = append(ran, "a")
			cancel()
			return nil
		}},
		{ID: "b", Handler: func(ctx context.Context, s *State) error {
			ran = append(ran, "b")
			return nil
		}},
	}}

	r := NewRunner()
	err := r.Run(ctx, p, NewState(nil), Interceptors{})

	require.True(t, memerr.Is(err, memerr.Cancelled))
	require.Equal(t, []string{"a"}, ran, "step b should not run once the context is cancelled after step a")
}

func TestRunner_BeforeAndAfterInterceptorsFire(t *testing.T) {
	var before, after []string
	p := &Pipeline{Name: "p", Steps: []Step{
		{ID: "a", Handler: func(ctx context.Context, s *State) error { return nil }},
	}}

	r := NewRunner()
	err := r.Run(context.Background(), p, NewState(nil), Interceptors{
		Before: func(ctx context.Context, step Step, s *State) { before = append(before, step.ID) },
		After:  func(ctx context.Context, step Step, s *State) { after = append(after, step.ID) },
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, before)
	require.Equal(t, []string{"a"}, after)
}
