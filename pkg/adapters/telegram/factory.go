package telegram

import (
	"fmt"
	"time"

	"switchboard/pkg/adapters"
	"switchboard/pkg/api"
	"switchboard/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Factory builds Telegram adapters from raw configuration.
type Factory struct{}

// Create implements adapters.Factory.
func (f *Factory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (api.Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("missing telegram token")
	}

	return NewAdapter(cfg, system.MessageLimit, system.AttachmentsDir,
		time.Duration(system.DownloadTimeoutMs)*time.Millisecond)
}

func init() {
	adapters.RegisterAdapter("telegram", &Factory{})
}
