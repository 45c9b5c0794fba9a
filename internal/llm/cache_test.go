package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/memerr"
)

func TestCache_GetUnknownProfile(t *testing.T) {
	c := NewCache(map[string]config.ProviderProfile{})
	_, err := c.Get("default")
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.UnknownProfile))
}

func TestCache_GetBuildsAndReusesClient(t *testing.T) {
	c := NewCache(map[string]config.ProviderProfile{
		"default": {Provider: "openai", ClientBackend: "http", ChatModel: "gpt-4o"},
	})

	c1, err := c.Get("default")
	require.NoError(t, err)
	require.NotNil(t, c1)

	c2, err := c.Get("default")
	require.NoError(t, err)
	require.Same(t, c1, c2, "Get should return the cached client on repeat calls")
}

func TestCache_Close(t *testing.T) {
	c := NewCache(map[string]config.ProviderProfile{
		"default": {Provider: "openai", ClientBackend: "http"},
	})
	_, err := c.Get("default")
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
