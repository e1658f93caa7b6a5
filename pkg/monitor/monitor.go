package monitor

import "time"

// Direction of a monitored message relative to the core.
const (
	DirectionIn  = "IN"  // inbound event from a surface
	DirectionOut = "OUT" // outbound reply to a surface
)

// Message represents one monitored message crossing the routing core.
type Message struct {
	Timestamp  time.Time
	Direction  string // DirectionIn or DirectionOut
	AdapterID  string
	SessionKey string
	Username   string
	Content    string
}

// Monitor receives a copy of every message crossing the core. Implementations
// must not block; the dispatcher calls OnMessage inline.
type Monitor interface {
	// Start starts the monitor.
	Start() error

	// Stop stops the monitor.
	Stop() error

	// OnMessage receives a monitored message.
	OnMessage(msg Message)
}
