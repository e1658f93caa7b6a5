package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"switchboard/pkg/config"
)

// Session is the registry's record of one conversation thread. Sessions are
// created lazily on first event for a key and never deleted; policy is
// re-resolved on every event, so reconfiguration applies on the next event
// and never disturbs a running job.
type Session struct {
	Key       string
	AdapterID string
	CreatedAt time.Time
	LastSeen  time.Time
	Policy    Policy
}

// Registry maps session keys to sessions and resolves their routing policy
// from three configuration layers: per-session overrides, per-adapter
// defaults, and global defaults. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	layers   config.SessionsConfig
	sessions map[string]*Session
}

// NewRegistry creates a Registry with the given configuration layers.
func NewRegistry(layers config.SessionsConfig) *Registry {
	return &Registry{
		layers:   layers,
		sessions: make(map[string]*Session),
	}
}

// Resolve returns a snapshot of the session for key, creating it on first
// sight, with its policy freshly resolved from the configuration layers. The
// snapshot is a copy: the registry keeps rewriting the live record on every
// event, so handing out the pointer would race concurrent callers.
func (r *Registry) Resolve(adapterID, key string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	pol := r.resolvePolicyLocked(adapterID, key)

	sess, ok := r.sessions[key]
	if !ok {
		sess = &Session{
			Key:       key,
			AdapterID: adapterID,
			CreatedAt: time.Now(),
		}
		r.sessions[key] = sess
		slog.Debug("Session created", "session", key, "adapter", adapterID,
			"concurrency", pol.Concurrency, "queue", pol.Queue)
	}
	sess.LastSeen = time.Now()
	sess.Policy = pol
	return *sess
}

// Configure merges a per-session override. Empty fields keep their current
// value. The new policy takes effect on the session's next event.
func (r *Registry) Configure(key string, pc config.PolicyConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.layers.Overrides == nil {
		r.layers.Overrides = make(map[string]config.PolicyConfig)
	}
	r.layers.Overrides[key] = pc.Merge(r.layers.Overrides[key])
	slog.Info("Session policy configured", "session", key)
}

// ReloadPolicies replaces all configuration layers, typically after a config
// file change. Existing sessions pick the new policy up on their next event.
func (r *Registry) ReloadPolicies(layers config.SessionsConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.layers = layers
	slog.Info("Session policies reloaded",
		"adapter_defaults", len(layers.Adapters), "overrides", len(layers.Overrides))
}

// Sessions returns a snapshot of all known sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// resolvePolicyLocked merges override -> adapter -> defaults. Must hold mu.
func (r *Registry) resolvePolicyLocked(adapterID, key string) Policy {
	pc := r.layers.Overrides[key]
	pc = pc.Merge(r.layers.Adapters[adapterID])
	pc = pc.Merge(r.layers.Defaults)
	return PolicyFromConfig(pc)
}
