package telegram

import (
	"context"
	"testing"

	"switchboard/pkg/api"
)

func TestCreateReplySinkForeignPayloadFailsOnRelay(t *testing.T) {
	a := &Adapter{}
	sink := a.CreateReplySink(&api.Event{ID: "ev-1", Payload: "not a telegram payload"})
	if sink == nil {
		t.Fatal("sink must never be nil")
	}
	if err := sink.Relay(context.Background(), "hello"); err == nil {
		t.Error("relay on a foreign-payload sink should fail")
	}
}
