package dispatch

import (
	"testing"

	"switchboard/pkg/config"
	"switchboard/pkg/streambuf"
)

func layeredConfig() config.SessionsConfig {
	return config.SessionsConfig{
		Defaults: config.PolicyConfig{
			Concurrency: "session", Queue: "queue", Memory: "session", Response: "streaming",
		},
		Adapters: map[string]config.PolicyConfig{
			"telegram": {Queue: "interrupt"},
		},
		Overrides: map[string]config.PolicyConfig{
			"telegram:42": {Response: "final"},
		},
	}
}

func TestResolveMergesLayers(t *testing.T) {
	r := NewRegistry(layeredConfig())

	// Unknown adapter, unknown session: pure defaults.
	sess := r.Resolve("web", "web:conn-1")
	if sess.Policy.Queue != QueueWait || sess.Policy.Response != streambuf.StyleStreaming {
		t.Errorf("defaults not applied: %+v", sess.Policy)
	}

	// Adapter layer overrides queue mode.
	sess = r.Resolve("telegram", "telegram:7")
	if sess.Policy.Queue != QueueInterrupt {
		t.Errorf("adapter layer ignored: %+v", sess.Policy)
	}
	if sess.Policy.Concurrency != ConcurrencySession {
		t.Errorf("default concurrency lost: %+v", sess.Policy)
	}

	// Session override wins over both.
	sess = r.Resolve("telegram", "telegram:42")
	if sess.Policy.Response != streambuf.StyleFinal {
		t.Errorf("override layer ignored: %+v", sess.Policy)
	}
	if sess.Policy.Queue != QueueInterrupt {
		t.Errorf("adapter layer lost under override: %+v", sess.Policy)
	}
}

func TestSessionCreatedOnceAndUpdated(t *testing.T) {
	r := NewRegistry(layeredConfig())

	a := r.Resolve("web", "web:x")
	b := r.Resolve("web", "web:x")
	if a.CreatedAt != b.CreatedAt {
		t.Error("session recreated on second resolve")
	}
	if len(r.Sessions()) != 1 {
		t.Errorf("got %d sessions, want 1", len(r.Sessions()))
	}
}

func TestConfigureAppliesOnNextResolve(t *testing.T) {
	r := NewRegistry(layeredConfig())

	before := r.Resolve("web", "web:y")
	if before.Policy.Queue != QueueWait {
		t.Fatalf("unexpected starting policy: %+v", before.Policy)
	}

	r.Configure("web:y", config.PolicyConfig{Queue: "interrupt"})

	after := r.Resolve("web", "web:y")
	if after.Policy.Queue != QueueInterrupt {
		t.Errorf("configured policy not applied: %+v", after.Policy)
	}
	// Untouched knobs keep their resolved value.
	if after.Policy.Concurrency != ConcurrencySession {
		t.Errorf("unrelated knob changed: %+v", after.Policy)
	}
}

func TestReloadPoliciesSwapsLayers(t *testing.T) {
	r := NewRegistry(layeredConfig())
	r.Resolve("telegram", "telegram:7")

	r.ReloadPolicies(config.SessionsConfig{
		Defaults: config.PolicyConfig{Concurrency: "none"},
	})

	sess := r.Resolve("telegram", "telegram:7")
	if sess.Policy.Concurrency != ConcurrencyNone {
		t.Errorf("reload not applied: %+v", sess.Policy)
	}
}

func TestPolicyFromConfigRejectsUnknownValues(t *testing.T) {
	pol := PolicyFromConfig(config.PolicyConfig{
		Concurrency: "bogus",
		Queue:       "bogus",
		Memory:      "bogus",
		Response:    "bogus",
	})

	def := DefaultPolicy()
	if pol != def {
		t.Errorf("unknown values should fall back to defaults, got %+v", pol)
	}
}

func TestPolicyFromConfigAcceptsValidValues(t *testing.T) {
	pol := PolicyFromConfig(config.PolicyConfig{
		Concurrency: "global",
		Queue:       "queue",
		Memory:      "transcript",
		Response:    "bundled",
	})

	if pol.Concurrency != ConcurrencyGlobal || pol.Queue != QueueWait ||
		pol.Memory != MemoryTranscript || pol.Response != streambuf.StyleBundled {
		t.Errorf("got %+v", pol)
	}
}
