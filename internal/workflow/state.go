package workflow

import "sync"

// State is the mutable bag of values steps read and write as a pipeline
// runs. Guarded by a RWMutex since some steps (e.g. the memorize
// pipeline's multimodal preprocessing stage) fan out internal goroutines
// that write back concurrently.
type State struct {
	mu         sync.RWMutex
	values     map[string]any
	halt       bool
	haltReason string
}

// NewState seeds a State with the given initial values.
func NewState(initial map[string]any) *State {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &State{values: values}
}

// Set stores a value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the value under key and whether it was present.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key has been set.
func (s *State) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Snapshot returns a shallow copy of all values, for logging/interceptors.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// StopWith halts the pipeline, short-circuiting the remaining steps
// without failing the run — used by sufficiency-gated early termination.
func (s *State) StopWith(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halt = true
	s.haltReason = reason
}

// Halted reports whether a step has called StopWith, and the reason.
func (s *State) Halted() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.halt, s.haltReason
}
