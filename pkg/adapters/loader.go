package adapters

import (
	"log/slog"

	"switchboard/pkg/api"
	"switchboard/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// Registrar receives the created adapters. The dispatcher satisfies it.
type Registrar interface {
	Register(a api.Adapter)
}

// LoadFromConfig acts as the central orchestration point for dynamic adapter
// initialization. It iterates through the provided configuration map,
// resolves factories, and registers the resulting adapters. A surface that
// fails to construct is skipped, never fatal.
func LoadFromConfig(reg Registrar, configs map[string]jsoniter.RawMessage, system *config.SystemConfig) {
	for name, rawConfig := range configs {
		factory, ok := GetAdapterFactory(name)
		if !ok {
			slog.Warn("Unknown adapter type", "name", name)
			continue
		}

		adapter, err := factory.Create(rawConfig, system)
		if err != nil {
			slog.Error("Failed to create adapter", "name", name, "error", err)
			continue
		}
		if adapter == nil {
			continue
		}

		reg.Register(adapter)
		slog.Info("Adapter registered", "name", name)
	}
}
