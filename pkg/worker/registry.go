package worker

import (
	"switchboard/pkg/config"
)

// GroupConfig defines the configuration of one worker backend entry. It is
// the standard input every Factory consumes; which fields matter depends on
// the backend type (process backends read Command, SDK backends read
// APIKeys/Model/BaseURL).
type GroupConfig struct {
	Type    string         `json:"type"`
	Command []string       `json:"command,omitempty"`
	APIKeys []string       `json:"api_keys,omitempty"`
	Model   string         `json:"model,omitempty"`
	BaseURL string         `json:"base_url,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Factory builds a Runner from one GroupConfig entry.
type Factory interface {
	Create(groupConfig GroupConfig, systemConfig *config.SystemConfig) (Runner, error)
}

// Global runner registry, populated by the backend packages' init functions
// via the autoload import.
var runnerRegistry = make(map[string]Factory)

// RegisterRunner registers a runner Factory under a backend type name.
func RegisterRunner(name string, factory Factory) {
	runnerRegistry[name] = factory
}

// GetRunnerFactory returns the Factory registered under name.
func GetRunnerFactory(name string) (Factory, bool) {
	f, ok := runnerRegistry[name]
	return f, ok
}
