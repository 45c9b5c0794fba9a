package llm

import "github.com/corewell/memoryd/internal/config"

// Profile is the resolved, client-ready form of config.ProviderProfile.
type Profile struct {
	Name              string
	Provider          string
	BaseURL           string
	APIKey            string
	ChatModel         string
	EmbedModel        string
	ClientBackend     string // "sdk" | "http"
	EndpointOverrides map[string]string
	EmbedBatchSize    int
}

// FromConfig converts a named config.ProviderProfile entry into a Profile.
func FromConfig(name string, p config.ProviderProfile) Profile {
	batchSize := p.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	backend := p.ClientBackend
	if backend == "" {
		backend = "http"
	}
	return Profile{
		Name:              name,
		Provider:          p.Provider,
		BaseURL:           p.BaseURL,
		APIKey:            p.APIKey,
		ChatModel:         p.ChatModel,
		EmbedModel:        p.EmbedModel,
		ClientBackend:     backend,
		EndpointOverrides: p.EndpointOverrides,
		EmbedBatchSize:    batchSize,
	}
}
