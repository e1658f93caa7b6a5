// Package worker defines the contract between the routing core and the
// opaque assistant backend that actually produces replies. The core never
// inspects how a backend works; it starts a job, consumes the backend's
// ordered event stream, and may request cancellation. Backends range from a
// child process speaking a line-delimited JSON protocol to in-process LLM
// SDK clients.
package worker

import (
	"context"
	"sync"
)

// Kind identifies one event type in a worker's output stream.
type Kind string

const (
	// KindTextDelta carries an incremental fragment of assistant text.
	KindTextDelta Kind = "text_delta"
	// KindTurnEnd marks a semantic boundary inside one job's output:
	// whatever text follows belongs to a new outbound message.
	KindTurnEnd Kind = "turn_end"
	// KindToolStart announces the worker began a side action. It also acts
	// as a turn boundary for buffered text.
	KindToolStart Kind = "tool_start"
	// KindResult terminates the stream. Exactly one result is emitted per
	// job, success or failure.
	KindResult Kind = "result"
)

// Event is one element of a worker's ordered output stream.
type Event struct {
	Kind Kind
	// Text is the delta fragment for KindTextDelta, or the tool name for
	// KindToolStart.
	Text string
	// OK reports job success for KindResult.
	OK bool
	// Err carries the failure detail for a failed KindResult.
	Err string
}

// Turn is one prior exchange replayed to the worker for context.
type Turn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// Request describes one unit of work handed to a Runner.
type Request struct {
	// SessionKey identifies the conversation thread the work belongs to.
	// Session-memory workers use it to locate their own state.
	SessionKey string `json:"session_key"`
	// Prompt is the user text to respond to, with any attachment references
	// already injected by the adapter.
	Prompt string `json:"prompt"`
	// SystemPrompt is the persona/instruction preamble, already combined
	// with any surface-specific guidance.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// History replays recent turns for transcript-memory sessions. Empty
	// when the worker keeps its own session state.
	History []Turn `json:"history,omitempty"`
}

// Handle is a live worker job. Events yields the job's output stream; the
// channel is closed after the KindResult event. Cancel requests a graceful
// stop and is safe to call multiple times and concurrently with Events
// consumption; a cancelled job still terminates its stream with a result.
type Handle interface {
	Events() <-chan Event
	Cancel()
}

// Runner launches worker jobs. Start returns once the job is accepted; all
// subsequent output arrives on the Handle. The ctx bounds the whole job.
type Runner interface {
	Start(ctx context.Context, req Request) (Handle, error)
}

// Pipe is the Handle implementation shared by all runners. The producing
// goroutine pushes events with Delta/TurnEnd/ToolStart and terminates the
// stream with Result; Result is once-guarded so racing producers (e.g. a
// drain goroutine and an exit watcher) cannot double-close. Producers must
// not emit after Result returns true from their side, so only the Result
// guard needs synchronization.
type Pipe struct {
	ch         chan Event
	resultOnce sync.Once
	cancelOnce sync.Once
	onCancel   func()
}

// NewPipe creates a Pipe with the given channel buffer. onCancel runs at
// most once, on the first Cancel call; it may be nil.
func NewPipe(buffer int, onCancel func()) *Pipe {
	if buffer <= 0 {
		buffer = 1
	}
	return &Pipe{
		ch:       make(chan Event, buffer),
		onCancel: onCancel,
	}
}

// Events implements Handle.
func (p *Pipe) Events() <-chan Event {
	return p.ch
}

// Cancel implements Handle.
func (p *Pipe) Cancel() {
	p.cancelOnce.Do(func() {
		if p.onCancel != nil {
			p.onCancel()
		}
	})
}

// Delta pushes an incremental text fragment.
func (p *Pipe) Delta(text string) {
	if text == "" {
		return
	}
	p.ch <- Event{Kind: KindTextDelta, Text: text}
}

// TurnEnd pushes a turn boundary.
func (p *Pipe) TurnEnd() {
	p.ch <- Event{Kind: KindTurnEnd}
}

// ToolStart pushes a tool announcement.
func (p *Pipe) ToolStart(name string) {
	p.ch <- Event{Kind: KindToolStart, Text: name}
}

// Result terminates the stream. Only the first call has any effect.
func (p *Pipe) Result(ok bool, errMsg string) {
	p.resultOnce.Do(func() {
		p.ch <- Event{Kind: KindResult, OK: ok, Err: errMsg}
		close(p.ch)
	})
}
