// Package web exposes the routing core over a WebSocket endpoint, intended
// for a decoupled browser UI. Each connection is its own session.
package web

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"switchboard/pkg/api"
	"switchboard/pkg/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

// Config holds the web surface settings.
type Config struct {
	Port int `json:"port"` // Default: 9453
}

// Payload identifies the originating connection for an Event.
type Payload struct {
	ConnID string
}

// incomingFrame is what the browser sends: text plus optional inline images.
type incomingFrame struct {
	Text   string `json:"text"`
	Images []struct {
		Name string `json:"name"`
		Mime string `json:"mime"`
		Data string `json:"data"` // Base64 encoded
	} `json:"images"`
}

// safeConn serializes writes: gorilla/websocket allows only one concurrent
// writer per connection.
type safeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *safeConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

// Adapter serves the WebSocket endpoint and tracks live connections.
type Adapter struct {
	config         Config
	attachmentsDir string
	server         *http.Server
	connections    map[string]*safeConn
	mu             sync.RWMutex
}

// NewAdapter prepares the web surface.
func NewAdapter(cfg Config, attachmentsDir string) *Adapter {
	if cfg.Port == 0 {
		cfg.Port = 9453
	}
	return &Adapter{
		config:         cfg,
		attachmentsDir: attachmentsDir,
		connections:    make(map[string]*safeConn),
	}
}

// ID returns the unique platform identifier "web".
func (a *Adapter) ID() string {
	return "web"
}

// SessionKey derives the conversation-thread key: one per connection.
func (a *Adapter) SessionKey(payload any) string {
	if p, ok := payload.(*Payload); ok {
		return "web:" + p.ConnID
	}
	return ""
}

// CustomPrompt implements api.Prompter.
func (a *Adapter) CustomPrompt() string {
	return "You are replying inside a web chat UI. Markdown is rendered; prefer it for structure."
}

// Start begins serving the /ws endpoint. It must not block.
func (a *Adapter) Start(ctx api.AdapterContext) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.handleWebSocket(w, r, ctx)
	})

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: mux,
	}

	slog.Info("Web API listening", "port", a.config.Port)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

// Stop closes the HTTP server and all live connections.
func (a *Adapter) Stop() error {
	if a.server != nil {
		return a.server.Close()
	}
	return nil
}

func (a *Adapter) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.AdapterContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS upgrade failed", "error", err)
		return
	}

	conn := &safeConn{Conn: rawConn}
	connID := uuid.NewString()[:8]

	a.mu.Lock()
	a.connections[connID] = conn
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.connections, connID)
		a.mu.Unlock()
		conn.Close()
	}()

	slog.Info("Web client connected", "conn", connID, "remote", r.RemoteAddr)
	payload := &Payload{ConnID: connID}

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		text, attachments := a.parseFrame(msgBytes)
		if text == "" && len(attachments) == 0 {
			continue
		}

		ctx.OnEvent(a.ID(), &api.Event{
			ID:         uuid.NewString(),
			AdapterID:  a.ID(),
			SessionKey: a.SessionKey(payload),
			Prompt:     buildPrompt(text, attachments),
			Payload:    payload,
			Message: api.NormalizedMessage{
				Text:      text,
				From:      "web:" + connID,
				IsMessage: true,
			},
			Attachments: attachments,
			ReceivedAt:  time.Now(),
		})
	}

	slog.Info("Web client disconnected", "conn", connID)
}

// parseFrame decodes one inbound frame, saving any inline images to disk.
// Non-JSON input is treated as plain text for backward compatibility.
func (a *Adapter) parseFrame(msgBytes []byte) (string, []api.Attachment) {
	var incoming incomingFrame
	if err := json.Unmarshal(msgBytes, &incoming); err != nil {
		return string(msgBytes), nil
	}

	var attachments []api.Attachment
	for _, img := range incoming.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			slog.Error("Failed to decode base64 image", "name", img.Name, "error", err)
			continue
		}

		if err := os.MkdirAll(a.attachmentsDir, 0755); err != nil {
			slog.Error("Failed to create attachments dir", "error", err)
			continue
		}

		// Content-hash names deduplicate repeated uploads; the timestamp
		// prefix keeps expiry checks metadata-free.
		hash := sha256.Sum256(data)
		mimeType, ext := utils.DetectMimeAndExt(data)
		localPath := filepath.Join(a.attachmentsDir,
			utils.TimestampPrefix()+hex.EncodeToString(hash[:8])+ext)

		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			if err := os.WriteFile(localPath, data, 0644); err != nil {
				slog.Error("Failed to save image to disk", "path", localPath, "error", err)
				continue
			}
		}

		if img.Mime != "" {
			mimeType = img.Mime
		}
		attachments = append(attachments, api.Attachment{
			Filename: img.Name,
			MimeType: mimeType,
			Path:     localPath,
		})
		slog.Debug("Saved web upload", "name", img.Name, "path", localPath)
	}

	return incoming.Text, attachments
}

func buildPrompt(text string, attachments []api.Attachment) string {
	if len(attachments) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	for _, att := range attachments {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[attached file: %s (%s)]", att.Path, att.MimeType)
	}
	return sb.String()
}

// replySink delivers output frames to one connection.
type replySink struct {
	adapter *Adapter
	connID  string
}

// deadSink is handed out when no usable sink can be built. Every relay
// fails with the construction error instead of panicking mid-job.
type deadSink struct{ err error }

func (s deadSink) Relay(context.Context, string) error { return s.err }

// CreateReplySink builds the outbound capability object for one Event.
func (a *Adapter) CreateReplySink(ev *api.Event) api.ReplySink {
	p, ok := ev.Payload.(*Payload)
	if !ok {
		slog.Error("Web event carries foreign payload", "event", ev.ID)
		return deadSink{err: fmt.Errorf("event %s has no web payload", ev.ID)}
	}
	return &replySink{adapter: a, connID: p.ConnID}
}

func (s *replySink) conn() (*safeConn, error) {
	s.adapter.mu.RLock()
	conn, ok := s.adapter.connections[s.connID]
	s.adapter.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("web connection %s is gone", s.connID)
	}
	return conn, nil
}

// Relay sends one reply frame. The browser renders each frame as a bubble.
func (s *replySink) Relay(ctx context.Context, text string) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	return conn.writeJSON(map[string]string{"type": "reply", "text": text})
}

// StartTyping shows the typing indicator in the UI.
func (s *replySink) StartTyping(ctx context.Context) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	return conn.writeJSON(map[string]any{"type": "typing", "active": true})
}

// StopTyping hides it again. Unlike Telegram, the web indicator never
// expires on its own, so this must be delivered.
func (s *replySink) StopTyping(ctx context.Context) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	return conn.writeJSON(map[string]any{"type": "typing", "active": false})
}
