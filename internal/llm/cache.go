package llm

import (
	"sync"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/memerr"
)

// Cache is the process-wide, profile-keyed LLM client cache MemoryService
// owns, replacing ad-hoc global client state with an explicit,
// lifecycle-owned cache.
type Cache struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	clients  map[string]Client
}

// NewCache builds a Cache from the configured llm_profiles table. Clients
// are constructed lazily on first Get, not eagerly here.
func NewCache(profiles map[string]config.ProviderProfile) *Cache {
	c := &Cache{
		profiles: make(map[string]Profile, len(profiles)),
		clients:  make(map[string]Client, len(profiles)),
	}
	for name, p := range profiles {
		c.profiles[name] = FromConfig(name, p)
	}
	return c
}

// Get returns the Client for the named profile, building and caching it
// on first use.
func (c *Cache) Get(name string) (Client, error) {
	c.mu.RLock()
	client, ok := c.clients[name]
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[name]; ok {
		return client, nil
	}
	profile, ok := c.profiles[name]
	if !ok {
		return nil, memerr.Newf(memerr.UnknownProfile, "llm profile %q is not configured", name)
	}
	client, err := Build(profile)
	if err != nil {
		return nil, memerr.Wrap(memerr.UnknownProfile, "build llm client", err)
	}
	c.clients[name] = client
	return client, nil
}

// EmbedBatchSize returns the configured embed_batch_size for the named
// profile, falling back to Profile's own default if the profile is
// unknown (callers resolve the embed client first, so this should not
// normally miss).
func (c *Cache) EmbedBatchSize(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if profile, ok := c.profiles[name]; ok {
		return profile.EmbedBatchSize
	}
	return 16
}

// ResolveEmbedClient returns the Client to use for embedding calls made
// on behalf of the named profile. If that profile has no configured
// embed model, it falls back to a profile literally named "embedding".
func (c *Cache) ResolveEmbedClient(name string) (Client, error) {
	c.mu.RLock()
	profile, ok := c.profiles[name]
	c.mu.RUnlock()
	if ok && profile.EmbedModel != "" {
		return c.Get(name)
	}
	return c.Get("embedding")
}

// Close empties the cache of every constructed client. It does not shut
// the clients down: the current backends (http, sdk) hold no unmanaged
// resources beyond an *http.Client / *genai.Client.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = map[string]Client{}
	return nil
}
