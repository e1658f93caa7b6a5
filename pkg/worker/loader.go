package worker

import (
	"fmt"
	"log/slog"

	"switchboard/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewFromConfig builds the worker Runner from the raw 'worker' config block.
// The block is a list of backend entries in preference order; the first entry
// whose factory succeeds wins, so a broken primary (bad binary path, missing
// API key) falls through to the next instead of aborting startup.
func NewFromConfig(rawWorker jsoniter.RawMessage, system *config.SystemConfig) (Runner, error) {
	if rawWorker == nil {
		return nil, fmt.Errorf("missing 'worker' config")
	}

	var groups []GroupConfig
	if err := json.Unmarshal(rawWorker, &groups); err != nil {
		// Allow a single object as shorthand for a one-entry list.
		var single GroupConfig
		if err2 := json.Unmarshal(rawWorker, &single); err2 != nil {
			return nil, fmt.Errorf("failed to parse 'worker' config: %v", err)
		}
		groups = []GroupConfig{single}
	}

	for _, group := range groups {
		factory, ok := GetRunnerFactory(group.Type)
		if !ok {
			slog.Warn("Unknown worker backend type", "type", group.Type)
			continue
		}

		runner, err := factory.Create(group, system)
		if err != nil {
			slog.Warn("Failed to create worker backend", "type", group.Type, "error", err)
			continue
		}

		slog.Info("Worker backend initialized", "type", group.Type)
		return runner, nil
	}

	return nil, fmt.Errorf("no worker backend could be initialized")
}
