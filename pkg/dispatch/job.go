package dispatch

import (
	"context"
	"sync"
	"time"

	"switchboard/pkg/api"
	"switchboard/pkg/worker"

	"github.com/google/uuid"
)

// JobState tracks a job through its life. Transitions are running ->
// cancelling -> done or running -> done; done is terminal.
type JobState int32

const (
	JobRunning JobState = iota
	JobCancelling
	JobDone
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobCancelling:
		return "cancelling"
	case JobDone:
		return "done"
	default:
		return "unknown"
	}
}

// Job is one admitted unit of work: an event being answered by a worker run.
type Job struct {
	ID        string
	Event     *api.Event
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  JobState
	handle worker.Handle // nil until the worker accepts the job
	failed bool
}

func newJob(parent context.Context, ev *api.Event, timeout time.Duration) *Job {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &Job{
		ID:        uuid.NewString(),
		Event:     ev,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// State returns the job's current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// attachHandle records the accepted worker handle. If cancellation already
// happened while the worker was starting, it is forwarded immediately.
func (j *Job) attachHandle(h worker.Handle) {
	j.mu.Lock()
	j.handle = h
	cancelled := j.state == JobCancelling
	j.mu.Unlock()

	if cancelled {
		h.Cancel()
	}
}

// requestCancel moves a running job to cancelling and signals the worker.
// The worker is expected to flush buffered output and still deliver its
// result; the stream keeps being consumed until then. No-op unless running.
func (j *Job) requestCancel() {
	j.mu.Lock()
	if j.state != JobRunning {
		j.mu.Unlock()
		return
	}
	j.state = JobCancelling
	h := j.handle
	j.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
	j.cancel()
}

// markDone finalizes the job. failed records whether the worker reported
// (or suffered) a failure.
func (j *Job) markDone(failed bool) {
	j.mu.Lock()
	if j.state == JobDone {
		j.mu.Unlock()
		return
	}
	j.state = JobDone
	j.failed = failed
	j.mu.Unlock()

	j.cancel()
}

// Failed reports whether the job ended in failure. Meaningful once done.
func (j *Job) Failed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failed
}
