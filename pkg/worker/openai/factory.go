package openai

import (
	"fmt"

	"switchboard/pkg/config"
	"switchboard/pkg/worker"
)

// OpenAIFactory handles creation of OpenAI runners
type OpenAIFactory struct{}

// Create implements worker.Factory
func (f *OpenAIFactory) Create(cfg worker.GroupConfig, sys *config.SystemConfig) (worker.Runner, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("openai worker requires an api key")
	}
	return NewRunner(cfg.APIKeys[0], cfg.Model, cfg.BaseURL, sys.InternalEventBuffer)
}

func init() {
	worker.RegisterRunner("openai", &OpenAIFactory{})
}
