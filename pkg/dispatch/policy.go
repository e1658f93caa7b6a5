package dispatch

import (
	"log/slog"

	"switchboard/pkg/config"
	"switchboard/pkg/streambuf"
)

// ConcurrencyMode decides which unit of work serializes job execution.
type ConcurrencyMode string

const (
	// ConcurrencyNone runs every event as its own job immediately, with no
	// cross-event ordering guarantee.
	ConcurrencyNone ConcurrencyMode = "none"
	// ConcurrencyGlobal allows at most one running job per adapter.
	ConcurrencyGlobal ConcurrencyMode = "global"
	// ConcurrencySession allows at most one running job per session key.
	ConcurrencySession ConcurrencyMode = "session"
)

// QueueMode decides what happens to an event that arrives while a job runs.
type QueueMode string

const (
	// QueueInterrupt cancels the running job, discards queued events, and
	// starts the new one. Most-recent submission wins.
	QueueInterrupt QueueMode = "interrupt"
	// QueueWait appends the event FIFO; it starts when the running job ends.
	QueueWait QueueMode = "queue"
)

// MemoryMode decides who owns conversation context.
type MemoryMode string

const (
	// MemorySession trusts the worker to keep its own per-session state;
	// requests carry no history.
	MemorySession MemoryMode = "session"
	// MemoryTranscript replays the stored transcript into every request.
	MemoryTranscript MemoryMode = "transcript"
)

// Policy is the resolved routing policy for one session.
type Policy struct {
	Concurrency ConcurrencyMode
	Queue       QueueMode
	Memory      MemoryMode
	Response    streambuf.Style
}

// DefaultPolicy returns the policy applied when configuration says nothing.
func DefaultPolicy() Policy {
	return Policy{
		Concurrency: ConcurrencySession,
		Queue:       QueueInterrupt,
		Memory:      MemorySession,
		Response:    streambuf.StyleStreaming,
	}
}

// PolicyFromConfig normalizes a fully-merged PolicyConfig into a Policy.
// Unknown values fall back to the defaults with a warning, so a typo in
// config degrades one knob instead of rejecting the file.
func PolicyFromConfig(pc config.PolicyConfig) Policy {
	pol := DefaultPolicy()

	switch ConcurrencyMode(pc.Concurrency) {
	case ConcurrencyNone, ConcurrencyGlobal, ConcurrencySession:
		pol.Concurrency = ConcurrencyMode(pc.Concurrency)
	case "":
	default:
		slog.Warn("Unknown concurrency mode, using default", "value", pc.Concurrency)
	}

	switch QueueMode(pc.Queue) {
	case QueueInterrupt, QueueWait:
		pol.Queue = QueueMode(pc.Queue)
	case "":
	default:
		slog.Warn("Unknown queue mode, using default", "value", pc.Queue)
	}

	switch MemoryMode(pc.Memory) {
	case MemorySession, MemoryTranscript:
		pol.Memory = MemoryMode(pc.Memory)
	case "":
	default:
		slog.Warn("Unknown memory mode, using default", "value", pc.Memory)
	}

	switch streambuf.Style(pc.Response) {
	case streambuf.StyleStreaming, streambuf.StyleBundled, streambuf.StyleFinal:
		pol.Response = streambuf.Style(pc.Response)
	case "":
	default:
		slog.Warn("Unknown response style, using default", "value", pc.Response)
	}

	return pol
}
