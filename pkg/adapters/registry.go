// Package adapters wires communication surfaces into the routing core.
// Concrete surfaces register a Factory under their platform name during
// init(); the loader then instantiates whatever the configuration names.
package adapters

import (
	"switchboard/pkg/api"
	"switchboard/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// Factory defines the abstract interface for platform-specific adapter
// creators. This allows the system to support new surfaces (e.g., Discord,
// an inbox watcher) without modifying the core routing logic.
type Factory interface {
	// Create instantiates a concrete Adapter implementation using the
	// provided configuration and shared system parameters.
	Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (api.Adapter, error)
}

// adapterRegistry is an internal global map storing the mapping between
// platform names (e.g., "telegram") and their factory implementations.
var adapterRegistry = make(map[string]Factory)

// RegisterAdapter adds a new Factory to the global internal registry.
// This is typically called during the package's init() phase.
func RegisterAdapter(name string, factory Factory) {
	adapterRegistry[name] = factory
}

// GetAdapterFactory retrieves a registered Factory by platform name.
func GetAdapterFactory(name string) (Factory, bool) {
	f, ok := adapterRegistry[name]
	return f, ok
}
