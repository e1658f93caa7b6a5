// Package transcript persists per-session conversation history for workers
// that do not keep their own state. Each session's transcript lives in its
// own JSON file and is replayed (windowed) into the worker request.
package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"switchboard/pkg/worker"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var filenameSafeRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Store manages transcripts isolated by session key. Loads are lazy: a
// session's file is read on first access and kept in memory afterwards.
type Store struct {
	mu       sync.RWMutex
	logs     map[string][]worker.Turn
	dir      string
	maxTurns int
}

// NewStore initializes a Store with a storage directory. An empty dir keeps
// transcripts in memory only. maxTurns bounds the replay window; 0 means
// unbounded.
func NewStore(dir string, maxTurns int) *Store {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Warn("Could not create transcript directory", "dir", dir, "error", err)
			dir = ""
		}
	}
	return &Store{
		logs:     make(map[string][]worker.Turn),
		dir:      dir,
		maxTurns: maxTurns,
	}
}

// Append records one turn and persists the session's transcript.
func (s *Store) Append(sessionKey, role, text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	turns := s.loadLocked(sessionKey)
	turns = append(turns, worker.Turn{Role: role, Text: text})
	s.logs[sessionKey] = turns
	s.mu.Unlock()

	if err := s.save(sessionKey, turns); err != nil {
		slog.Warn("Failed to persist transcript", "session", sessionKey, "error", err)
	}
}

// Recent returns the windowed transcript for a session, oldest first.
func (s *Store) Recent(sessionKey string) []worker.Turn {
	s.mu.Lock()
	turns := s.loadLocked(sessionKey)
	s.mu.Unlock()

	if s.maxTurns > 0 && len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	cp := make([]worker.Turn, len(turns))
	copy(cp, turns)
	return cp
}

// Clear drops a session's transcript from memory and disk.
func (s *Store) Clear(sessionKey string) {
	s.mu.Lock()
	delete(s.logs, sessionKey)
	s.mu.Unlock()

	if s.dir != "" {
		_ = os.Remove(s.path(sessionKey))
	}
}

// loadLocked returns the in-memory transcript, reading it from disk on first
// access. Must hold mu.
func (s *Store) loadLocked(sessionKey string) []worker.Turn {
	if turns, ok := s.logs[sessionKey]; ok {
		return turns
	}

	var turns []worker.Turn
	if s.dir != "" {
		if data, err := os.ReadFile(s.path(sessionKey)); err == nil {
			if err := json.Unmarshal(data, &turns); err != nil {
				slog.Warn("Corrupt transcript file ignored", "session", sessionKey, "error", err)
				turns = nil
			}
		}
	}
	s.logs[sessionKey] = turns
	return turns
}

func (s *Store) save(sessionKey string, turns []worker.Turn) error {
	if s.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(sessionKey), data, 0644)
}

func (s *Store) path(sessionKey string) string {
	safeKey := filenameSafeRegex.ReplaceAllString(sessionKey, "_")
	return filepath.Join(s.dir, fmt.Sprintf("transcript_%s.json", safeKey))
}
