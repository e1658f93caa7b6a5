package process

import (
	"testing"

	"switchboard/pkg/worker"
)

func TestDecodeDelta(t *testing.T) {
	ev, ok, err := decode([]byte(`{"type":"delta","text":"Hello, "}`))
	if err != nil || !ok {
		t.Fatalf("decode failed: ok=%v err=%v", ok, err)
	}
	if ev.Kind != worker.KindTextDelta || ev.Text != "Hello, " {
		t.Errorf("got %+v", ev)
	}
}

func TestDecodeTurnAndTool(t *testing.T) {
	ev, ok, _ := decode([]byte(`{"type":"turn"}`))
	if !ok || ev.Kind != worker.KindTurnEnd {
		t.Errorf("turn: got ok=%v %+v", ok, ev)
	}

	ev, ok, _ = decode([]byte(`{"type":"tool","name":"web_search"}`))
	if !ok || ev.Kind != worker.KindToolStart || ev.Text != "web_search" {
		t.Errorf("tool: got ok=%v %+v", ok, ev)
	}
}

func TestDecodeResult(t *testing.T) {
	ev, ok, _ := decode([]byte(`{"type":"result","status":"ok"}`))
	if !ok || ev.Kind != worker.KindResult || !ev.OK {
		t.Errorf("ok result: got ok=%v %+v", ok, ev)
	}

	ev, ok, _ = decode([]byte(`{"type":"result","status":"failed","error":"boom"}`))
	if !ok || ev.OK || ev.Err != "boom" {
		t.Errorf("failed result: got ok=%v %+v", ok, ev)
	}

	// A failed result always carries some detail.
	ev, _, _ = decode([]byte(`{"type":"result","status":"failed"}`))
	if ev.Err == "" {
		t.Error("failed result without error text should synthesize a detail")
	}
}

func TestDecodeSkipsUnknownAndBlank(t *testing.T) {
	if _, ok, err := decode([]byte(`{"type":"heartbeat"}`)); ok || err != nil {
		t.Errorf("unknown type should be skipped silently, ok=%v err=%v", ok, err)
	}
	if _, ok, err := decode(nil); ok || err != nil {
		t.Errorf("blank line should be skipped silently, ok=%v err=%v", ok, err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, _, err := decode([]byte(`{"type":`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestNewRunnerValidation(t *testing.T) {
	if _, err := NewRunner(nil, 10, 0); err == nil {
		t.Error("expected error for empty command")
	}
	if _, err := NewRunner([]string{"definitely-not-a-real-binary-42"}, 10, 0); err == nil {
		t.Error("expected error for missing binary")
	}
}
