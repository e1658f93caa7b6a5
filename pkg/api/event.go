package api

import "time"

// NormalizedMessage is the adapter-neutral view of an inbound unit of work.
// Adapters translate whatever their platform delivers (a chat update, an
// inbox item, a console frame) into this shape before handing it to the core.
type NormalizedMessage struct {
	// Text is the plain-text content of the message, if any.
	Text string `json:"text,omitempty"`
	// From is the platform-specific sender identity, if the surface exposes one.
	From string `json:"from,omitempty"`
	// IsMessage distinguishes real user messages from synthetic events
	// (presence changes, system notices) that still flow through the pipeline.
	IsMessage bool `json:"is_message"`
}

// Attachment references a file an adapter has already fetched to local
// storage. The core never downloads anything itself; it only injects the
// reference into the worker prompt.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Path     string `json:"path"`
}

// Event is the canonical inbound unit of work shared by all adapters.
// An Event is immutable after creation and consumed exactly once by the
// dispatcher. SessionKey groups events that require joint serialization
// and queuing (e.g. "telegram-12345" for one Telegram chat).
type Event struct {
	// ID uniquely identifies this event for logging and job correlation.
	ID string `json:"id"`
	// AdapterID names the surface that produced the event (e.g. "telegram").
	AdapterID string `json:"adapter_id"`
	// SessionKey is the conversation-thread identity derived by the adapter.
	SessionKey string `json:"session_key"`
	// Prompt is the text handed to the worker, including any attachment
	// references the adapter injected.
	Prompt string `json:"prompt"`
	// Payload carries the original platform-specific object, opaque to the core.
	Payload any `json:"-"`
	// Message is the normalized view used for echo suppression and transcripts.
	Message NormalizedMessage `json:"message"`
	// Attachments lists files the adapter fetched for this event.
	Attachments []Attachment `json:"attachments,omitempty"`
	// ReceivedAt is when the adapter accepted the inbound unit.
	ReceivedAt time.Time `json:"received_at"`
}
