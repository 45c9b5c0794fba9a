package llm

import "fmt"

// BackendFactory builds a Client for a resolved Profile.
type BackendFactory func(p Profile) Client

var backends = map[string]BackendFactory{}

// RegisterBackend installs a factory for the given client_backend name.
// Called from init() in each backend's file, mirroring
// internal/model/registry.go's RegisterProvider.
func RegisterBackend(name string, factory BackendFactory) {
	backends[name] = factory
}

// Build looks up the registered factory for p.ClientBackend and
// constructs a Client.
func Build(p Profile) (Client, error) {
	factory, ok := backends[p.ClientBackend]
	if !ok {
		return nil, fmt.Errorf("llm: unknown client_backend %q", p.ClientBackend)
	}
	return factory(p), nil
}
