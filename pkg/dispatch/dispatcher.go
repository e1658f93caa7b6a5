// Package dispatch is the scheduling heart of the routing core. The
// Dispatcher receives normalized events from all adapters, consults the
// session registry for the owning session's policy, and decides per event
// whether it runs now, waits in line, or pre-empts the work in progress.
// It then drives the worker's event stream into a per-job stream buffer and
// back out through the adapter's reply sink.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"switchboard/pkg/api"
	"switchboard/pkg/config"
	"switchboard/pkg/echoguard"
	"switchboard/pkg/monitor"
	"switchboard/pkg/streambuf"
	"switchboard/pkg/transcript"
	"switchboard/pkg/worker"
)

// slot is one serialization unit: a session (concurrency=session) or a whole
// adapter (concurrency=global). All admit/queue/interrupt transitions for a
// slot happen under its mutex, so two near-simultaneous events can never
// both believe they may run immediately.
type slot struct {
	mu      sync.Mutex
	running *Job
	pending []*api.Event
}

// Dispatcher routes events to worker jobs. It implements api.AdapterContext.
type Dispatcher struct {
	runner       worker.Runner
	registry     *Registry
	transcripts  *transcript.Store
	sys          *config.SystemConfig
	systemPrompt string

	baseCtx context.Context
	sem     chan struct{} // global running-job cap; nil when uncapped

	mu       sync.RWMutex
	adapters map[string]api.Adapter
	guards   map[string]*echoguard.Guard
	slots    map[string]*slot
	mon      monitor.Monitor
}

// NewDispatcher assembles a Dispatcher. ctx bounds every job it ever starts;
// cancel it on shutdown.
func NewDispatcher(ctx context.Context, runner worker.Runner, registry *Registry,
	transcripts *transcript.Store, sys *config.SystemConfig, systemPrompt string) *Dispatcher {

	var sem chan struct{}
	if sys.MaxConcurrentJobs > 0 {
		sem = make(chan struct{}, sys.MaxConcurrentJobs)
	}

	return &Dispatcher{
		runner:       runner,
		registry:     registry,
		transcripts:  transcripts,
		sys:          sys,
		systemPrompt: systemPrompt,
		baseCtx:      ctx,
		sem:          sem,
		adapters:     make(map[string]api.Adapter),
		guards:       make(map[string]*echoguard.Guard),
		slots:        make(map[string]*slot),
	}
}

// SetMonitor attaches a traffic monitor.
func (d *Dispatcher) SetMonitor(m monitor.Monitor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mon = m
}

// Register adds an adapter. Call before StartAll.
func (d *Dispatcher) Register(a api.Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[a.ID()] = a
}

// Adapter returns a registered adapter by ID.
func (d *Dispatcher) Adapter(id string) (api.Adapter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.adapters[id]
	return a, ok
}

// StartAll starts every registered adapter with the dispatcher as context.
func (d *Dispatcher) StartAll() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, a := range d.adapters {
		slog.Info("Starting adapter", "adapter", id)
		if err := a.Start(d); err != nil {
			return fmt.Errorf("failed to start adapter %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every adapter. Errors are logged, not returned; shutdown
// should not stop halfway.
func (d *Dispatcher) StopAll() {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, a := range d.adapters {
		slog.Info("Stopping adapter", "adapter", id)
		if err := a.Stop(); err != nil {
			slog.Error("Error stopping adapter", "adapter", id, "error", err)
		}
	}
}

// OnEvent implements api.AdapterContext: the single entry point for inbound
// events regardless of whether the adapter polls or subscribes. Echoes of
// our own recent output are dropped here, before any scheduling.
func (d *Dispatcher) OnEvent(adapterID string, ev *api.Event) {
	if ev == nil || ev.SessionKey == "" {
		slog.Warn("Dropping event without session key", "adapter", adapterID)
		return
	}

	if ev.Message.IsMessage && d.guardFor(adapterID).IsEcho(ev.Message.Text) {
		slog.Debug("Dropping echoed message", "adapter", adapterID, "session", ev.SessionKey)
		return
	}

	if mon := d.monitor(); mon != nil && ev.Message.IsMessage {
		mon.OnMessage(monitor.Message{
			Timestamp:  time.Now(),
			Direction:  monitor.DirectionIn,
			AdapterID:  adapterID,
			SessionKey: ev.SessionKey,
			Username:   ev.Message.From,
			Content:    ev.Message.Text,
		})
	}

	d.Submit(ev)
}

// Submit admits one event under the owning session's policy. Safe for
// concurrent use.
func (d *Dispatcher) Submit(ev *api.Event) {
	sess := d.registry.Resolve(ev.AdapterID, ev.SessionKey)
	pol := sess.Policy

	if pol.Concurrency == ConcurrencyNone {
		job := d.makeJob(ev)
		go d.runJob(job, nil, pol)
		return
	}

	sl := d.slotFor(slotKey(pol, ev))
	sl.mu.Lock()

	if sl.running == nil {
		job := d.makeJob(ev)
		sl.running = job
		sl.mu.Unlock()
		go d.runJob(job, sl, pol)
		return
	}

	if pol.Queue == QueueInterrupt {
		old := sl.running
		dropped := len(sl.pending)
		sl.pending = nil
		// The old job reaches cancelling before the new one exists; its
		// worker still drains and its stream is consumed to the end.
		old.requestCancel()
		job := d.makeJob(ev)
		sl.running = job
		sl.mu.Unlock()

		slog.Info("Interrupting running job", "session", ev.SessionKey,
			"cancelled", old.ID, "dropped_pending", dropped)
		go d.runJob(job, sl, pol)
		return
	}

	sl.pending = append(sl.pending, ev)
	depth := len(sl.pending)
	sl.mu.Unlock()

	slog.Debug("Event queued", "session", ev.SessionKey, "depth", depth)
}

// runJob drives one job from admission to completion.
func (d *Dispatcher) runJob(job *Job, sl *slot, pol Policy) {
	ev := job.Event
	ctx := monitor.WithSessionKey(job.ctx, ev.SessionKey)

	// Global running-job cap, shared across adapters.
	if d.sem != nil {
		select {
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
		case <-ctx.Done():
			slog.Debug("Job cancelled while waiting for capacity", "job", job.ID)
			d.finish(job, sl, true)
			return
		}
	}

	adapter, ok := d.Adapter(ev.AdapterID)
	if !ok {
		slog.Error("No adapter for event", "adapter", ev.AdapterID, "session", ev.SessionKey)
		d.finish(job, sl, true)
		return
	}
	sink := adapter.CreateReplySink(ev)

	// Relays outlive job cancellation: an interrupted worker is still
	// allowed to flush the output it already produced.
	relayCtx := context.WithoutCancel(ctx)

	guard := d.guardFor(ev.AdapterID)
	buf := streambuf.New(relayCtx, streambuf.Config{
		MinChars:     d.sys.StreamMinChars,
		MaxInterval:  time.Duration(d.sys.StreamMaxIntervalMs) * time.Millisecond,
		MessageLimit: d.sys.MessageLimit,
		Style:        pol.Response,
	}, d.tapped(sink, ev), guard)

	req := worker.Request{
		SessionKey:   ev.SessionKey,
		Prompt:       ev.Prompt,
		SystemPrompt: d.composePrompt(adapter),
	}
	if pol.Memory == MemoryTranscript {
		req.History = d.transcripts.Recent(ev.SessionKey)
	}

	handle, err := d.runner.Start(ctx, req)
	if err != nil {
		slog.Error("Worker spawn failed", "session", ev.SessionKey, "job", job.ID, "error", err)
		d.finish(job, sl, true)
		return
	}
	job.attachHandle(handle)

	typing := newTypingController(relayCtx, sink,
		time.Duration(d.sys.TypingRefreshMs)*time.Millisecond)
	defer typing.stop()

	var full strings.Builder
	failed := false
	for wev := range handle.Events() {
		switch wev.Kind {
		case worker.KindTextDelta:
			typing.ensureStarted()
			buf.Write(wev.Text)
			full.WriteString(wev.Text)
		case worker.KindTurnEnd:
			buf.TurnEnd()
		case worker.KindToolStart:
			buf.ToolStart(wev.Text)
		case worker.KindResult:
			failed = !wev.OK
			if failed {
				slog.Warn("Worker reported failure", "session", ev.SessionKey,
					"job", job.ID, "detail", wev.Err)
			}
		}
	}

	buf.Finish()
	typing.stop()

	if !failed && pol.Memory == MemoryTranscript {
		d.transcripts.Append(ev.SessionKey, "user", ev.Prompt)
		d.transcripts.Append(ev.SessionKey, "assistant", full.String())
	}

	d.finish(job, sl, failed)
}

// finish finalizes a job and, if it still owns its slot, hands the slot to
// the oldest queued event. A job superseded by an interrupt no longer owns
// the slot and must not touch the queue.
func (d *Dispatcher) finish(job *Job, sl *slot, failed bool) {
	job.markDone(failed)
	slog.Debug("Job finished", "job", job.ID, "session", job.Event.SessionKey,
		"failed", failed, "took", time.Since(job.StartedAt).Round(time.Millisecond))

	if sl == nil {
		return
	}

	sl.mu.Lock()
	if sl.running != job {
		sl.mu.Unlock()
		return
	}
	sl.running = nil

	if len(sl.pending) == 0 {
		sl.mu.Unlock()
		return
	}

	next := sl.pending[0]
	sl.pending = sl.pending[1:]
	// Policy is re-resolved so reconfiguration applies between queued jobs.
	sess := d.registry.Resolve(next.AdapterID, next.SessionKey)
	njob := d.makeJob(next)
	sl.running = njob
	sl.mu.Unlock()

	go d.runJob(njob, sl, sess.Policy)
}

func (d *Dispatcher) makeJob(ev *api.Event) *Job {
	return newJob(d.baseCtx, ev, time.Duration(d.sys.WorkerTimeoutMs)*time.Millisecond)
}

// composePrompt joins the global system prompt with any surface-specific
// guidance the adapter contributes.
func (d *Dispatcher) composePrompt(adapter api.Adapter) string {
	parts := make([]string, 0, 2)
	if d.systemPrompt != "" {
		parts = append(parts, d.systemPrompt)
	}
	if p, ok := adapter.(api.Prompter); ok {
		if custom := p.CustomPrompt(); custom != "" {
			parts = append(parts, custom)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (d *Dispatcher) monitor() monitor.Monitor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mon
}

// guardFor returns the adapter's echo guard, creating it on first use.
func (d *Dispatcher) guardFor(adapterID string) *echoguard.Guard {
	d.mu.RLock()
	g, ok := d.guards[adapterID]
	d.mu.RUnlock()
	if ok {
		return g
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok = d.guards[adapterID]; ok {
		return g
	}
	g = echoguard.New(
		echoguard.WithWindow(time.Duration(d.sys.EchoWindowMs)*time.Millisecond),
		echoguard.WithCapacity(d.sys.EchoCapacity),
	)
	d.guards[adapterID] = g
	return g
}

// slotFor returns the serialization slot for a key, creating it on first use.
func (d *Dispatcher) slotFor(key string) *slot {
	d.mu.RLock()
	sl, ok := d.slots[key]
	d.mu.RUnlock()
	if ok {
		return sl
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if sl, ok = d.slots[key]; ok {
		return sl
	}
	sl = &slot{}
	d.slots[key] = sl
	return sl
}

// slotKey picks the serialization unit: the session thread or the whole
// adapter, depending on concurrency mode.
func slotKey(pol Policy, ev *api.Event) string {
	if pol.Concurrency == ConcurrencyGlobal {
		return "adapter/" + ev.AdapterID
	}
	return "session/" + ev.SessionKey
}

// tapped wraps a sink so every successful relay is mirrored to the monitor.
// The raw sink is kept for typing/reaction capability checks.
type tappedSink struct {
	inner api.ReplySink
	d     *Dispatcher
	ev    *api.Event
}

func (d *Dispatcher) tapped(sink api.ReplySink, ev *api.Event) api.ReplySink {
	return &tappedSink{inner: sink, d: d, ev: ev}
}

func (t *tappedSink) Relay(ctx context.Context, text string) error {
	if err := t.inner.Relay(ctx, text); err != nil {
		return err
	}
	if mon := t.d.monitor(); mon != nil {
		mon.OnMessage(monitor.Message{
			Timestamp:  time.Now(),
			Direction:  monitor.DirectionOut,
			AdapterID:  t.ev.AdapterID,
			SessionKey: t.ev.SessionKey,
			Content:    text,
		})
	}
	return nil
}

// typingController manages the typing/reaction indicator for one job: start
// on first content, periodic refresh for surfaces whose indicator expires,
// and exactly one stop regardless of which completion path fires first.
type typingController struct {
	ctx     context.Context
	sink    api.ReplySink
	refresh time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopCh    chan struct{}
}

func newTypingController(ctx context.Context, sink api.ReplySink, refresh time.Duration) *typingController {
	return &typingController{
		ctx:     ctx,
		sink:    sink,
		refresh: refresh,
		stopCh:  make(chan struct{}),
	}
}

func (t *typingController) ensureStarted() {
	t.startOnce.Do(func() {
		t.started = true
		if err := api.StartTyping(t.ctx, t.sink); err != nil {
			slog.Debug("Start typing failed", "error", err)
		}
		if err := api.StartReaction(t.ctx, t.sink); err != nil {
			slog.Debug("Start reaction failed", "error", err)
		}
		if t.refresh <= 0 {
			return
		}
		go func() {
			ticker := time.NewTicker(t.refresh)
			defer ticker.Stop()
			for {
				select {
				case <-t.stopCh:
					return
				case <-ticker.C:
					_ = api.StartTyping(t.ctx, t.sink)
					_ = api.StartReaction(t.ctx, t.sink)
				}
			}
		}()
	})
}

func (t *typingController) stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		if !t.started {
			return
		}
		if err := api.StopTyping(t.ctx, t.sink); err != nil {
			slog.Debug("Stop typing failed", "error", err)
		}
		if err := api.StopReaction(t.ctx, t.sink); err != nil {
			slog.Debug("Stop reaction failed", "error", err)
		}
	})
}
