package web

import (
	"context"
	"encoding/base64"
	"os"
	"testing"

	"switchboard/pkg/api"
)

func TestCreateReplySinkForeignPayloadFailsOnRelay(t *testing.T) {
	a := NewAdapter(Config{}, t.TempDir())
	sink := a.CreateReplySink(&api.Event{ID: "ev-1", Payload: 42})
	if sink == nil {
		t.Fatal("sink must never be nil")
	}
	if err := sink.Relay(context.Background(), "hello"); err == nil {
		t.Error("relay on a foreign-payload sink should fail")
	}
}

func TestParseFramePlainTextFallback(t *testing.T) {
	a := NewAdapter(Config{}, t.TempDir())
	text, atts := a.parseFrame([]byte("just some text"))
	if text != "just some text" || len(atts) != 0 {
		t.Errorf("got %q with %d attachments", text, len(atts))
	}
}

func TestParseFrameSavesInlineImage(t *testing.T) {
	a := NewAdapter(Config{}, t.TempDir())
	payload := []byte(`{"text":"look","images":[{"name":"pic.png","mime":"image/png","data":"` +
		base64.StdEncoding.EncodeToString([]byte("fake image bytes")) + `"}]}`)

	text, atts := a.parseFrame(payload)
	if text != "look" {
		t.Errorf("text = %q", text)
	}
	if len(atts) != 1 {
		t.Fatalf("got %d attachments, want 1", len(atts))
	}
	if atts[0].MimeType != "image/png" {
		t.Errorf("mime = %q", atts[0].MimeType)
	}
	data, err := os.ReadFile(atts[0].Path)
	if err != nil {
		t.Fatalf("saved file unreadable: %v", err)
	}
	if string(data) != "fake image bytes" {
		t.Error("saved bytes differ from the upload")
	}
}
