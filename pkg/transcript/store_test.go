package transcript

import (
	"testing"
)

func TestAppendAndRecent(t *testing.T) {
	s := NewStore(t.TempDir(), 0)

	s.Append("telegram:42", "user", "hello")
	s.Append("telegram:42", "assistant", "hi there")

	turns := s.Recent("telegram:42")
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Text != "hello" {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Text != "hi there" {
		t.Errorf("turn 1 = %+v", turns[1])
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := NewStore(t.TempDir(), 0)

	s.Append("telegram:1", "user", "one")
	s.Append("telegram:2", "user", "two")

	if turns := s.Recent("telegram:1"); len(turns) != 1 || turns[0].Text != "one" {
		t.Errorf("session 1 = %+v", turns)
	}
	if turns := s.Recent("telegram:2"); len(turns) != 1 || turns[0].Text != "two" {
		t.Errorf("session 2 = %+v", turns)
	}
}

func TestRecentAppliesWindow(t *testing.T) {
	s := NewStore("", 3)

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		s.Append("web:x", "user", text)
	}

	turns := s.Recent("web:x")
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[0].Text != "c" || turns[2].Text != "e" {
		t.Errorf("window kept wrong turns: %+v", turns)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s1 := NewStore(dir, 0)
	s1.Append("web:conn-1", "user", "remember me")
	s1.Append("web:conn-1", "assistant", "noted")

	// A fresh store must see what the first one wrote.
	s2 := NewStore(dir, 0)
	turns := s2.Recent("web:conn-1")
	if len(turns) != 2 || turns[1].Text != "noted" {
		t.Fatalf("reload got %+v", turns)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)

	s.Append("telegram:9", "user", "gone soon")
	s.Clear("telegram:9")

	if turns := s.Recent("telegram:9"); len(turns) != 0 {
		t.Errorf("got %+v after clear", turns)
	}

	// Disk copy must be gone too.
	s2 := NewStore(dir, 0)
	if turns := s2.Recent("telegram:9"); len(turns) != 0 {
		t.Errorf("disk transcript survived clear: %+v", turns)
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	s := NewStore("", 0)
	s.Append("k", "user", "")
	if turns := s.Recent("k"); len(turns) != 0 {
		t.Errorf("empty text stored: %+v", turns)
	}
}
