// Package echoguard suppresses self-loop feedback: some surfaces echo the
// bot's own outbound reply back as a new inbound message, and without a guard
// the agent would answer itself forever. The guard keeps a bounded,
// time-windowed set of recently-relayed text fingerprints per adapter and is
// consulted before any inbound text is treated as new work.
//
// The text match is a heuristic, not a correctness guarantee: a user who
// repeats the bot's exact words inside the window is treated as an echo. That
// false positive is accepted in exchange for robust loop suppression;
// adapters with a reliable sender-identity signal should additionally check
// it before handing the event to the core.
package echoguard

import (
	"strings"
	"sync"
	"time"
)

// DefaultWindow is how long a relayed text is considered a potential echo.
const DefaultWindow = time.Minute

// DefaultCapacity bounds the number of retained fingerprints per guard.
const DefaultCapacity = 256

type fingerprint struct {
	text   string
	sentAt time.Time
}

// Guard is a per-adapter, time-windowed echo fingerprint store. Concurrent
// reads are allowed; writes are serialized internally.
type Guard struct {
	mu       sync.Mutex
	entries  []fingerprint // oldest first
	window   time.Duration
	capacity int
	now      func() time.Time
}

// Option customizes a Guard.
type Option func(*Guard)

// WithWindow overrides the echo window.
func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithCapacity overrides the fingerprint capacity.
func WithCapacity(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.capacity = n
		}
	}
}

// WithClock injects a time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a Guard with the default window and capacity.
func New(opts ...Option) *Guard {
	g := &Guard{
		window:   DefaultWindow,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Record remembers text the bot just relayed. Whitespace-only text is ignored.
func (g *Guard) Record(text string) {
	key := normalize(text)
	if key == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked()
	g.entries = append(g.entries, fingerprint{text: key, sentAt: g.now()})

	// Oldest-first eviction when over capacity.
	if over := len(g.entries) - g.capacity; over > 0 {
		g.entries = g.entries[over:]
	}
}

// IsEcho reports whether text matches a fingerprint recorded inside the
// window. Expired entries are pruned on the way.
func (g *Guard) IsEcho(text string) bool {
	key := normalize(text)
	if key == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked()
	for _, fp := range g.entries {
		if fp.text == key {
			return true
		}
	}
	return false
}

// Len returns the current number of retained fingerprints.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked()
	return len(g.entries)
}

// pruneLocked drops entries older than the window. Must hold mu.
func (g *Guard) pruneLocked() {
	cutoff := g.now().Add(-g.window)
	i := 0
	for i < len(g.entries) && !g.entries[i].sentAt.After(cutoff) {
		i++
	}
	if i > 0 {
		g.entries = g.entries[i:]
	}
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
