package scope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateWhere(t *testing.T) {
	model := NewModel([]string{"user_id", "agent_id"})

	require.NoError(t, ValidateWhere(model, map[string]any{"user_id": "alice"}))
	require.NoError(t, ValidateWhere(model, map[string]any{"agent_id__in": []string{"a1", "a2"}}))

	err := ValidateWhere(model, map[string]any{"tenant_id": "x"})
	require.Error(t, err, "unknown scope field should reject with InvalidFilter")
}

func TestCompileAndMatches(t *testing.T) {
	prog, err := Compile(map[string]any{"user_id": "alice"})
	require.NoError(t, err)

	ok, err := prog.Matches(map[string]any{"user_id": "alice", "memory_type": "profile"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = prog.Matches(map[string]any{"user_id": "bob"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileIn(t *testing.T) {
	prog, err := Compile(map[string]any{"memory_type__in": []string{"profile", "event"}})
	require.NoError(t, err)

	ok, err := prog.Matches(map[string]any{"memory_type": "event"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = prog.Matches(map[string]any{"memory_type": "knowledge"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileEmptyWhereMatchesEverything(t *testing.T) {
	prog, err := Compile(nil)
	require.NoError(t, err)

	ok, err := prog.Matches(map[string]any{"anything": "goes"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMerge(t *testing.T) {
	base := map[string]string{"user_id": "alice"}
	extra := map[string]string{"agent_id": "a1"}
	merged := Merge(base, extra)
	require.Equal(t, "alice", merged["user_id"])
	require.Equal(t, "a1", merged["agent_id"])
}
