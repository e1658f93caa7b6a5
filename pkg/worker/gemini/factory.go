package gemini

import (
	"fmt"

	"switchboard/pkg/config"
	"switchboard/pkg/worker"
)

// GeminiFactory handles creation of Gemini runners
type GeminiFactory struct{}

// Create implements worker.Factory
func (f *GeminiFactory) Create(cfg worker.GroupConfig, sys *config.SystemConfig) (worker.Runner, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("gemini worker requires an api key")
	}
	return NewRunner(cfg.APIKeys[0], cfg.Model, sys.InternalEventBuffer)
}

func init() {
	worker.RegisterRunner("gemini", &GeminiFactory{})
}
