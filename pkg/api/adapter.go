package api

// AdapterContext provides the interface for an Adapter implementation to
// communicate back with the routing core. The dispatcher implements it.
type AdapterContext interface {
	// OnEvent hands a normalized Event to the core. Safe to call from any
	// goroutine; the core applies echo suppression and scheduling policy.
	OnEvent(adapterID string, ev *Event)
}

// Adapter defines the standardized lifecycle interface every communication
// surface implements. Adapters own all platform I/O: polling or subscribing,
// normalizing inbound messages into Events, fetching attachments, and
// constructing the ReplySink used to deliver output for a given Event.
type Adapter interface {
	// ID returns the unique surface identifier (e.g. "telegram", "web").
	ID() string
	// Start begins producing events in the background. It must not block.
	Start(ctx AdapterContext) error
	// Stop terminates all background work and releases platform connections.
	Stop() error
	// CreateReplySink builds the outbound capability object for one Event.
	CreateReplySink(ev *Event) ReplySink
	// SessionKey derives the conversation-thread key for a raw platform
	// payload. Adapters also stamp it on every Event they emit.
	SessionKey(payload any) string
}

// Prompter is an optional Adapter extension for surfaces that contribute
// surface-specific prompt guidance (tone, formatting constraints) prepended
// to the worker request.
type Prompter interface {
	CustomPrompt() string
}
