// Package ollama provides an in-process worker backend backed by a local
// Ollama instance. It exists for setups where the assistant is a plain model
// rather than an agent binary; the event stream is a single turn of deltas
// followed by a result.
package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"switchboard/pkg/worker"

	"github.com/ollama/ollama/api"
)

// Runner drives one Ollama model.
type Runner struct {
	client      *api.Client
	model       string
	options     map[string]any
	eventBuffer int
}

// NewRunner creates an Ollama runner. An empty baseURL falls back to the
// OLLAMA_HOST environment convention.
func NewRunner(model string, baseURL string, options map[string]any, eventBuffer int) (*Runner, error) {
	// No client-side timeout: generation legitimately takes minutes.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 0,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 0}

	var client *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		client = api.NewClient(u, httpClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama worker initialized", "model", model, "base_url", baseURL)

	return &Runner{
		client:      client,
		model:       model,
		options:     options,
		eventBuffer: eventBuffer,
	}, nil
}

// Start implements worker.Runner.
func (r *Runner) Start(ctx context.Context, req worker.Request) (worker.Handle, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	pipe := worker.NewPipe(r.eventBuffer, cancel)

	messages := convertRequest(req)
	streamVal := true
	chatReq := &api.ChatRequest{
		Model:    r.model,
		Messages: messages,
		Options:  r.options,
		Stream:   &streamVal,
	}

	go func() {
		defer cancel()

		err := r.client.Chat(jobCtx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				pipe.Delta(resp.Message.Content)
			}
			if resp.Done {
				pipe.TurnEnd()
			}
			return nil
		})
		if err != nil {
			slog.Error("Ollama stream error", "model", r.model, "error", err)
			pipe.Result(false, err.Error())
			return
		}
		pipe.Result(true, "")
	}()

	return pipe, nil
}

// convertRequest flattens a worker request into the Ollama message list.
func convertRequest(req worker.Request) []api.Message {
	var msgs []api.Message
	if req.SystemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, turn := range req.History {
		msgs = append(msgs, api.Message{Role: turn.Role, Content: turn.Text})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: req.Prompt})
	return msgs
}
