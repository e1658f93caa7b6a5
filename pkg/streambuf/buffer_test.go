package streambuf

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordSink) Relay(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *recordSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type recordGuard struct {
	mu       sync.Mutex
	recorded []string
}

func (g *recordGuard) Record(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorded = append(g.recorded, text)
}

// A MaxInterval long enough that the idle timer never fires during a test.
const quietInterval = time.Hour

func newTestBuffer(style Style, minChars, limit int, sink *recordSink, rec Recorder) *Buffer {
	return New(context.Background(), Config{
		MinChars:     minChars,
		MaxInterval:  quietInterval,
		MessageLimit: limit,
		Style:        style,
	}, sink, rec)
}

func TestStreamingHoldsBelowMinChars(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleStreaming, 100, 0, sink, nil)

	b.Write("short fragment")
	if got := sink.messages(); len(got) != 0 {
		t.Fatalf("flushed below MinChars: %q", got)
	}

	b.TurnEnd()
	got := sink.messages()
	if len(got) != 1 || got[0] != "short fragment" {
		t.Fatalf("got %q", got)
	}
}

func TestStreamingFlushesAtNaturalBreak(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleStreaming, 20, 0, sink, nil)

	b.Write("First paragraph done.\n\nSecond para")
	got := sink.messages()
	if len(got) != 1 {
		t.Fatalf("expected one flush, got %q", got)
	}
	if got[0] != "First paragraph done." {
		t.Errorf("flush should cut at the paragraph break, got %q", got[0])
	}

	b.Finish()
	got = sink.messages()
	if len(got) != 2 || got[1] != "Second para" {
		t.Fatalf("remainder not delivered on finish: %q", got)
	}
}

func TestStreamingTurnSeparation(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleStreaming, 1000, 0, sink, nil)

	b.Write("turn one text")
	b.TurnEnd()
	b.Write("turn two text")
	b.TurnEnd()
	b.Finish()

	got := sink.messages()
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %q", len(got), got)
	}
	if got[0] != "turn one text" || got[1] != "turn two text" {
		t.Errorf("turns mixed: %q", got)
	}
}

func TestStreamingToolStartFlushes(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleStreaming, 1000, 0, sink, nil)

	b.Write("let me check that")
	b.ToolStart("web_search")

	got := sink.messages()
	if len(got) != 1 || got[0] != "let me check that" {
		t.Fatalf("lead-in text not flushed before tool: %q", got)
	}
}

func TestBundledDeliversOnceAtFinish(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleBundled, 10, 0, sink, nil)

	b.Write("part one")
	b.TurnEnd()
	b.Write("part two")
	if got := sink.messages(); len(got) != 0 {
		t.Fatalf("bundled style leaked mid-job: %q", got)
	}

	b.Finish()
	got := sink.messages()
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1: %q", len(got), got)
	}
	if got[0] != "part one\n\npart two" {
		t.Errorf("got %q", got[0])
	}
}

func TestFinalDeliversLastTurnOnly(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleFinal, 10, 0, sink, nil)

	b.Write("working on it...")
	b.TurnEnd()
	b.Write("here is the answer")
	b.TurnEnd()
	b.Finish()

	got := sink.messages()
	if len(got) != 1 || got[0] != "here is the answer" {
		t.Fatalf("got %q", got)
	}
}

func TestFinalWithNoTextSendsNothing(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleFinal, 10, 0, sink, nil)
	b.Finish()
	if got := sink.messages(); len(got) != 0 {
		t.Fatalf("got %q, want none", got)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleStreaming, 10, 0, sink, nil)

	b.Write("only once")
	b.Finish()
	b.Finish()
	b.Write("after the end")
	b.TurnEnd()

	got := sink.messages()
	if len(got) != 1 || got[0] != "only once" {
		t.Fatalf("got %q", got)
	}
	if b.Flushed() != true {
		t.Error("Flushed should report true after a delivery")
	}
}

func TestLongFlushIsSegmented(t *testing.T) {
	sink := &recordSink{}
	b := newTestBuffer(StyleBundled, 10, 50, sink, nil)

	b.Write(strings.Repeat("lorem ipsum ", 20))
	b.Finish()

	got := sink.messages()
	if len(got) < 2 {
		t.Fatalf("expected segmentation, got %d messages", len(got))
	}
	for i, m := range got {
		if len(m) > 50 {
			t.Errorf("message %d exceeds limit: %d chars", i, len(m))
		}
	}
}

func TestEveryRelayIsRecorded(t *testing.T) {
	sink := &recordSink{}
	rec := &recordGuard{}
	b := newTestBuffer(StyleStreaming, 5, 0, sink, rec)

	b.Write("first turn here")
	b.TurnEnd()
	b.Write("second turn here")
	b.Finish()

	sent := sink.messages()
	rec.mu.Lock()
	recorded := append([]string(nil), rec.recorded...)
	rec.mu.Unlock()

	if len(sent) == 0 || len(sent) != len(recorded) {
		t.Fatalf("sent %d, recorded %d", len(sent), len(recorded))
	}
	for i := range sent {
		if sent[i] != recorded[i] {
			t.Errorf("message %d: sent %q recorded %q", i, sent[i], recorded[i])
		}
	}
}

func TestIdleTimerFlushes(t *testing.T) {
	sink := &recordSink{}
	b := New(context.Background(), Config{
		MinChars:    1000,
		MaxInterval: 20 * time.Millisecond,
		Style:       StyleStreaming,
	}, sink, nil)

	b.Write("slow worker text")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := sink.messages(); len(msgs) == 1 {
			if msgs[0] != "slow worker text" {
				t.Fatalf("got %q", msgs[0])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("idle timer never flushed")
}
