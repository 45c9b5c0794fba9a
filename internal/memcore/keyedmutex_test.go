package memcore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	key := SummaryLockKey(Scope{"user_id": "alice"}, "cat_1")

	var mu sync.Mutex
	var inCritical, maxInCritical int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()
			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()
			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxInCritical)
}

func TestKeyedMutex_NilReceiverIsNoop(t *testing.T) {
	var km *KeyedMutex
	unlock := km.Lock("anything")
	require.NotPanics(t, func() { unlock() })
}

func TestSummaryLockKey_DeterministicAcrossFieldOrder(t *testing.T) {
	a := SummaryLockKey(Scope{"user_id": "alice", "agent_id": "a1"}, "cat_1")
	b := SummaryLockKey(Scope{"agent_id": "a1", "user_id": "alice"}, "cat_1")
	require.Equal(t, a, b)

	c := SummaryLockKey(Scope{"user_id": "alice"}, "cat_2")
	require.NotEqual(t, a, c)
}
