// Package gemini provides an in-process worker backend for Google's Gemini
// API.
package gemini

import (
	"context"
	"log/slog"
	"strings"

	"switchboard/pkg/worker"

	"google.golang.org/genai"
)

// Runner drives one Gemini model.
type Runner struct {
	client      *genai.Client
	model       string
	eventBuffer int
}

// NewRunner creates a Gemini runner.
func NewRunner(apiKey string, model string, eventBuffer int) (*Runner, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Gemini worker initialized", "model", model)

	return &Runner{
		client:      client,
		model:       model,
		eventBuffer: eventBuffer,
	}, nil
}

// Start implements worker.Runner.
func (r *Runner) Start(ctx context.Context, req worker.Request) (worker.Handle, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	pipe := worker.NewPipe(r.eventBuffer, cancel)

	contents, sysInstruction := convertRequest(req)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: sysInstruction,
	}

	go func() {
		defer cancel()

		for resp, err := range r.client.Models.GenerateContentStream(jobCtx, r.model, contents, cfg) {
			if err != nil {
				slog.Error("Gemini stream error", "model", r.model, "error", err)
				pipe.Result(false, err.Error())
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					pipe.Delta(part.Text)
				}
			}
		}
		pipe.TurnEnd()
		pipe.Result(true, "")
	}()

	return pipe, nil
}

// convertRequest flattens a worker request into Gemini contents plus an
// optional system instruction.
func convertRequest(req worker.Request) ([]*genai.Content, *genai.Content) {
	var sysInstruction *genai.Content
	if req.SystemPrompt != "" {
		sysInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	var contents []*genai.Content
	for _, turn := range req.History {
		role := genai.RoleUser
		if strings.EqualFold(turn.Role, "assistant") {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Prompt}},
	})
	return contents, sysInstruction
}
