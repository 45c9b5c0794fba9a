package memcore

import (
	"sort"
	"strings"
	"sync"
)

// KeyedMutex hands out one mutex per key, serializing work on the same
// key while leaving different keys independent. The service uses it to
// run category summary rebuilds one at a time per (scope, category).
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function. A
// nil receiver is a no-op, so callers assembled without shared lock
// state need no special casing.
func (k *KeyedMutex) Lock(key string) func() {
	if k == nil {
		return func() {}
	}
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// SummaryLockKey builds the deterministic lock key for one category
// within one scope.
func SummaryLockKey(sc Scope, categoryID string) string {
	fields := make([]string, 0, len(sc))
	for f, v := range sc {
		fields = append(fields, f+"="+v)
	}
	sort.Strings(fields)
	return strings.Join(fields, ",") + "|" + categoryID
}
