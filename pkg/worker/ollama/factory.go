package ollama

import (
	"switchboard/pkg/config"
	"switchboard/pkg/worker"
)

// OllamaFactory handles creation of Ollama runners
type OllamaFactory struct{}

// Create implements worker.Factory
func (f *OllamaFactory) Create(cfg worker.GroupConfig, sys *config.SystemConfig) (worker.Runner, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sys.OllamaDefaultURL
	}
	return NewRunner(cfg.Model, baseURL, cfg.Options, sys.InternalEventBuffer)
}

func init() {
	worker.RegisterRunner("ollama", &OllamaFactory{})
}
