package streambuf

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSegmentShortTextPassesThrough(t *testing.T) {
	got := Segment("hello world", 100)
	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestSegmentEmpty(t *testing.T) {
	if got := Segment("   \n ", 100); got != nil {
		t.Errorf("got %q, want nil", got)
	}
}

func TestSegmentNoLimit(t *testing.T) {
	long := strings.Repeat("x", 10000)
	if got := Segment(long, 0); len(got) != 1 {
		t.Errorf("limit 0 should not segment, got %d pieces", len(got))
	}
}

func TestSegmentPrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)
	got := Segment(text, 80)
	if len(got) != 2 {
		t.Fatalf("got %d pieces, want 2", len(got))
	}
	if got[0] != strings.Repeat("a", 50) {
		t.Errorf("first piece should end at the paragraph break, got %q", got[0])
	}
	if got[1] != strings.Repeat("b", 50) {
		t.Errorf("second piece = %q", got[1])
	}
}

func TestSegmentWordBoundary(t *testing.T) {
	words := strings.Fields(strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 250)))
	text := strings.Join(words, " ")

	pieces := Segment(text, 1900)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces for %d chars, got %d", len(text), len(pieces))
	}

	for i, p := range pieces {
		if len(p) > 1900 {
			t.Errorf("piece %d exceeds limit: %d chars", i, len(p))
		}
	}

	// No word may be split and nothing may be lost.
	rejoined := strings.Fields(strings.Join(pieces, " "))
	if len(rejoined) != len(words) {
		t.Fatalf("word count changed: %d -> %d", len(words), len(rejoined))
	}
	for i := range words {
		if words[i] != rejoined[i] {
			t.Fatalf("word %d changed: %q -> %q", i, words[i], rejoined[i])
		}
	}
}

func TestSegmentHardCutIsRuneSafe(t *testing.T) {
	// No spaces or newlines, multi-byte runes only: forces hard cuts.
	text := strings.Repeat("日本語テキスト", 100)
	for _, p := range Segment(text, 100) {
		if !utf8.ValidString(p) {
			t.Fatalf("piece is not valid UTF-8: %q", p)
		}
		if n := utf8.RuneCountInString(p); n > 100 {
			t.Fatalf("piece exceeds limit: %d runes", n)
		}
	}
}

func TestSegmentLimitCountsRunes(t *testing.T) {
	// 120 runes but 360 bytes: platform limits count characters, so this
	// must pass through whole under a 200-character limit.
	text := strings.Repeat("語", 120)
	got := Segment(text, 200)
	if len(got) != 1 || got[0] != text {
		t.Errorf("multi-byte text under the rune limit was split: %d pieces", len(got))
	}

	// And an exact rune budget is filled, not a third of it.
	pieces := Segment(strings.Repeat("語", 250), 100)
	if len(pieces) != 3 {
		t.Fatalf("got %d pieces, want 3", len(pieces))
	}
	if n := utf8.RuneCountInString(pieces[0]); n != 100 {
		t.Errorf("first piece holds %d runes, want 100", n)
	}
}

func TestFindBreakBetweenHonorsFloor(t *testing.T) {
	// The newline sits before minIdx, so it must not be chosen.
	text := "ab\n" + strings.Repeat("c", 50) + " " + strings.Repeat("d", 50)
	cut := findBreakBetween(text, 10, 80)
	if cut <= 10 {
		t.Errorf("cut %d ignores the floor", cut)
	}
	if text[cut-1] != ' ' {
		t.Errorf("cut %d should land after the word boundary, context %q", cut, text[cut-3:cut+2])
	}
}
