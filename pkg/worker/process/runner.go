// Package process implements the canonical worker backend: a child process
// launched per job that reads one JSON request on stdin and emits its output
// as line-delimited JSON events on stdout.
//
// Wire protocol, one JSON object per line:
//
//	{"type":"delta","text":"..."}          incremental assistant text
//	{"type":"turn"}                        turn boundary
//	{"type":"tool","name":"..."}           side action announcement
//	{"type":"result","status":"ok"}        terminal success
//	{"type":"result","status":"failed","error":"..."}
//
// Unknown event types are skipped so the protocol can grow without breaking
// older routers. Cancellation sends SIGINT and gives the child a drain window
// to flush its result before it is killed.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"switchboard/pkg/worker"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLineSize bounds one stdout line. Deltas are small; this guards against
// a worker dumping a whole document on a single line.
const maxLineSize = 1 << 20

type wireEvent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// decode translates one stdout line into a worker.Event. The bool is false
// for blank lines and unknown event types.
func decode(line []byte) (worker.Event, bool, error) {
	if len(line) == 0 {
		return worker.Event{}, false, nil
	}
	var we wireEvent
	if err := json.Unmarshal(line, &we); err != nil {
		return worker.Event{}, false, fmt.Errorf("malformed worker event: %w", err)
	}
	switch we.Type {
	case "delta":
		return worker.Event{Kind: worker.KindTextDelta, Text: we.Text}, true, nil
	case "turn":
		return worker.Event{Kind: worker.KindTurnEnd}, true, nil
	case "tool":
		return worker.Event{Kind: worker.KindToolStart, Text: we.Name}, true, nil
	case "result":
		ev := worker.Event{Kind: worker.KindResult, OK: we.Status == "ok", Err: we.Error}
		if !ev.OK && ev.Err == "" {
			ev.Err = "worker reported failure"
		}
		return ev, true, nil
	default:
		return worker.Event{}, false, nil
	}
}

// Runner launches one child process per job.
type Runner struct {
	command      []string
	eventBuffer  int
	drainTimeout time.Duration
}

// NewRunner creates a process Runner for the given argv.
func NewRunner(command []string, eventBuffer int, drainTimeout time.Duration) (*Runner, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("process worker requires a non-empty command")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("worker binary not found: %w", err)
	}
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	return &Runner{
		command:      command,
		eventBuffer:  eventBuffer,
		drainTimeout: drainTimeout,
	}, nil
}

// Start implements worker.Runner.
func (r *Runner) Start(ctx context.Context, req worker.Request) (worker.Handle, error) {
	cmd := exec.Command(r.command[0], r.command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker process: %w", err)
	}

	slog.Debug("Worker process started", "pid", cmd.Process.Pid, "session", req.SessionKey)

	pipe := worker.NewPipe(r.eventBuffer, func() {
		// Graceful stop: SIGINT, then kill after the drain window.
		if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
			slog.Debug("Worker signal failed", "pid", cmd.Process.Pid, "error", err)
		}
		time.AfterFunc(r.drainTimeout, func() {
			_ = cmd.Process.Kill()
		})
	})

	// The job context cancels the child the same way an explicit Cancel does.
	go func() {
		<-ctx.Done()
		pipe.Cancel()
	}()

	// Feed the request and close stdin so the worker knows input is complete.
	go func() {
		defer stdin.Close()
		enc, err := json.Marshal(req)
		if err != nil {
			slog.Error("Failed to encode worker request", "error", err)
			return
		}
		if _, err := stdin.Write(append(enc, '\n')); err != nil {
			slog.Debug("Worker stdin write failed", "pid", cmd.Process.Pid, "error", err)
		}
	}()

	// Surface the worker's stderr in our logs.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Debug("Worker stderr", "pid", cmd.Process.Pid, "line", scanner.Text())
		}
	}()

	go r.consume(cmd, stdout, pipe, req.SessionKey)

	return pipe, nil
}

// consume reads the event stream until EOF, then reaps the process. If the
// stream ended without a result event (crash, kill), a failed result is
// synthesized so the stream contract holds.
func (r *Runner) consume(cmd *exec.Cmd, stdout io.Reader, pipe *worker.Pipe, sessionKey string) {
	gotResult := false

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		ev, ok, err := decode(scanner.Bytes())
		if err != nil {
			slog.Warn("Skipping malformed worker event", "session", sessionKey, "error", err)
			continue
		}
		if !ok {
			continue
		}

		switch ev.Kind {
		case worker.KindTextDelta:
			pipe.Delta(ev.Text)
		case worker.KindTurnEnd:
			pipe.TurnEnd()
		case worker.KindToolStart:
			pipe.ToolStart(ev.Text)
		case worker.KindResult:
			gotResult = true
			pipe.Result(ev.OK, ev.Err)
		}

		if gotResult {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Worker stdout read error", "session", sessionKey, "error", err)
	}

	err := cmd.Wait()
	if !gotResult {
		detail := "worker exited without a result"
		if err != nil {
			detail = fmt.Sprintf("worker exited without a result: %v", err)
		}
		slog.Warn("Worker stream ended abnormally", "session", sessionKey, "error", err)
		pipe.Result(false, detail)
	} else if err != nil {
		slog.Debug("Worker exited non-zero after result", "session", sessionKey, "error", err)
	}
}
