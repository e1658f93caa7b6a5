package process

import (
	"time"

	"switchboard/pkg/config"
	"switchboard/pkg/worker"
)

// ProcessFactory handles creation of child-process runners
type ProcessFactory struct{}

// Create implements worker.Factory
func (f *ProcessFactory) Create(cfg worker.GroupConfig, sys *config.SystemConfig) (worker.Runner, error) {
	return NewRunner(
		cfg.Command,
		sys.InternalEventBuffer,
		time.Duration(sys.DrainTimeoutMs)*time.Millisecond,
	)
}

func init() {
	worker.RegisterRunner("process", &ProcessFactory{})
}
