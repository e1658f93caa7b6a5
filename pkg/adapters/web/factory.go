package web

import (
	"fmt"

	"switchboard/pkg/adapters"
	"switchboard/pkg/api"
	"switchboard/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// Factory builds web adapters from raw configuration.
type Factory struct{}

// Create implements adapters.Factory.
func (f *Factory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (api.Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse web config: %w", err)
	}

	return NewAdapter(cfg, system.AttachmentsDir), nil
}

func init() {
	adapters.RegisterAdapter("web", &Factory{})
}
