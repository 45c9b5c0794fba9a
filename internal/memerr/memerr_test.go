package memerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(InvalidInput, "resource_url must not be empty")
	require.Equal(t, "InvalidInput: resource_url must not be empty", err.Error())
	require.Nil(t, err.Unwrap())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(BackendUnavailable, "connect metadata store", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
}

func TestWithDetails(t *testing.T) {
	err := New(InvalidFilter, "unknown scope field").WithDetails(map[string]any{"field": "tenant_id"})
	require.Equal(t, "tenant_id", err.Details["field"])
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := New(FetchFailed, "fetch timed out")
	wrapped := Wrap(ExtractionFailed, "extract after fetch", base)

	require.True(t, Is(wrapped, ExtractionFailed))
	require.False(t, Is(wrapped, FetchFailed), "Is should match the outermost *Error's Kind, not a wrapped cause's")
	require.False(t, Is(errors.New("plain"), InvalidInput))
}
