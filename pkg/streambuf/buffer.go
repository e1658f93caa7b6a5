// Package streambuf converts a worker's incremental text stream into a
// bounded, ordered sequence of outbound messages. Instead of relaying every
// token, text is coalesced into blocks and sent as they become available;
// turn and tool boundaries always force out whatever is buffered so messages
// never straddle a semantic break.
//
// Coalescing rules (streaming style):
//   - Wait until at least MinChars are accumulated, then flush at a natural
//     break (paragraph > line > sentence > word).
//   - Flush whatever is buffered when MaxInterval elapses without a flush.
//   - Turn ends and tool starts flush immediately.
//
// The bundled style withholds everything until Finish and relays the whole
// job output as one message (segmented only by the hard length limit). The
// final style relays only the last completed turn.
package streambuf

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"switchboard/pkg/api"
)

// Style selects how buffered text becomes outbound messages.
type Style string

const (
	StyleStreaming Style = "streaming"
	StyleBundled   Style = "bundled"
	StyleFinal     Style = "final"
)

// Recorder is notified of every relayed text so echo suppression can
// fingerprint the bot's own output. The echo guard satisfies it.
type Recorder interface {
	Record(text string)
}

// Config tunes the coalescing behavior.
type Config struct {
	// MinChars is the minimum accumulated text before a mid-turn flush.
	MinChars int
	// MaxInterval bounds how long text may sit buffered before a flush.
	MaxInterval time.Duration
	// MessageLimit is the hard per-message length cap; longer flushes are
	// segmented. <= 0 means unlimited.
	MessageLimit int
	// Style selects streaming, bundled or final delivery.
	Style Style
}

// Effective returns a copy with defaults filled in for zero values.
func (c Config) Effective() Config {
	out := c
	if out.MinChars <= 0 {
		out.MinChars = 200
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = 1500 * time.Millisecond
	}
	if out.Style == "" {
		out.Style = StyleStreaming
	}
	return out
}

// Buffer accumulates one job's worker text and relays it through a single
// ReplySink. It is tied to a single job (one inbound event, one worker run).
// All relays happen under the internal mutex, which is what keeps outbound
// segments in order even when the idle timer races a turn boundary.
type Buffer struct {
	cfg      Config
	sink     api.ReplySink
	recorder Recorder
	ctx      context.Context

	mu        sync.Mutex
	buf       strings.Builder
	turns     []string // completed turns, bundled/final styles only
	done      bool
	flushed   bool // at least one message was relayed
	idleTimer *time.Timer
}

// New creates a Buffer for one job. ctx bounds all relay calls; recorder may
// be nil.
func New(ctx context.Context, cfg Config, sink api.ReplySink, recorder Recorder) *Buffer {
	return &Buffer{
		cfg:      cfg.Effective(),
		sink:     sink,
		recorder: recorder,
		ctx:      ctx,
	}
}

// Write appends an incremental text fragment.
func (b *Buffer) Write(delta string) {
	if delta == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.buf.WriteString(delta)

	if b.cfg.Style != StyleStreaming {
		return
	}

	b.resetIdleTimerLocked()
	if b.buf.Len() >= b.cfg.MinChars {
		b.flushLocked(true)
	}
}

// TurnEnd marks a semantic boundary: buffered text is completed as a message
// of its own (streaming) or banked as a finished turn (bundled/final).
func (b *Buffer) TurnEnd() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.completeTurnLocked()
}

// ToolStart is called when the worker begins a side action. Buffered text is
// pushed out first so the user sees the lead-in before the action runs.
func (b *Buffer) ToolStart(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	slog.Debug("Worker tool started", "tool", name)
	b.completeTurnLocked()
}

// Finish delivers whatever the style still owes and seals the buffer.
// Idempotent; all later calls and writes are ignored.
func (b *Buffer) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true
	if b.idleTimer != nil {
		b.idleTimer.Stop()
	}

	switch b.cfg.Style {
	case StyleStreaming:
		b.flushLocked(false)
	case StyleBundled:
		b.completeTurnLocked()
		if all := strings.TrimSpace(strings.Join(b.turns, "\n\n")); all != "" {
			b.relayLocked(all)
		}
	case StyleFinal:
		b.completeTurnLocked()
		for i := len(b.turns) - 1; i >= 0; i-- {
			if last := strings.TrimSpace(b.turns[i]); last != "" {
				b.relayLocked(last)
				break
			}
		}
	}
}

// Flushed reports whether at least one message was relayed.
func (b *Buffer) Flushed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

// completeTurnLocked ends the current turn for the active style.
func (b *Buffer) completeTurnLocked() {
	if b.cfg.Style == StyleStreaming {
		if b.idleTimer != nil {
			b.idleTimer.Stop()
		}
		b.flushLocked(false)
		return
	}
	if b.buf.Len() > 0 {
		b.turns = append(b.turns, b.buf.String())
		b.buf.Reset()
	}
}

// resetIdleTimerLocked restarts the max-interval flush timer. When the worker
// pauses (tool call, thinking), the timer fires and flushes whatever is
// buffered so the user sees progress. Must hold mu.
func (b *Buffer) resetIdleTimerLocked() {
	if b.idleTimer != nil {
		b.idleTimer.Stop()
	}
	b.idleTimer = time.AfterFunc(b.cfg.MaxInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.done || b.buf.Len() == 0 {
			return
		}
		b.flushLocked(false)
	})
}

// flushLocked relays buffered text. With partial=true the flush cuts at a
// natural break past MinChars and keeps the remainder buffered; otherwise the
// whole buffer goes out. Must hold mu.
func (b *Buffer) flushLocked(partial bool) {
	text := b.buf.String()
	if strings.TrimSpace(text) == "" {
		b.buf.Reset()
		return
	}

	sendText := text
	remainder := ""
	if partial && len(text) > b.cfg.MinChars {
		upper := len(text)
		if b.cfg.MessageLimit > 0 && b.cfg.MessageLimit < upper {
			upper = b.cfg.MessageLimit
		}
		if cut := findBreakBetween(text, b.cfg.MinChars, upper); cut > 0 && cut < len(text) {
			sendText = text[:cut]
			remainder = text[cut:]
		}
	}

	b.relayLocked(sendText)

	b.buf.Reset()
	if remainder != "" {
		b.buf.WriteString(remainder)
	}
}

// relayLocked segments text by the hard limit and relays each piece in
// order, recording every piece for echo suppression. Must hold mu.
func (b *Buffer) relayLocked(text string) {
	for _, seg := range Segment(text, b.cfg.MessageLimit) {
		if err := b.sink.Relay(b.ctx, seg); err != nil {
			slog.Warn("Failed to relay message segment", "error", err)
			continue
		}
		if b.recorder != nil {
			b.recorder.Record(seg)
		}
		b.flushed = true
	}
}
