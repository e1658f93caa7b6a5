// Package openai provides an in-process worker backend for OpenAI-compatible
// chat completion APIs.
package openai

import (
	"context"
	"log/slog"
	"strings"

	"switchboard/pkg/worker"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Runner drives one chat-completions model.
type Runner struct {
	client      *openai.Client
	model       string
	eventBuffer int
}

// NewRunner creates an OpenAI runner. A non-empty baseURL targets any
// compatible endpoint (proxies, local inference servers).
func NewRunner(apiKey string, model string, baseURL string, eventBuffer int) (*Runner, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	slog.Info("OpenAI worker initialized", "model", model, "base_url", baseURL)

	return &Runner{
		client:      &client,
		model:       model,
		eventBuffer: eventBuffer,
	}, nil
}

// Start implements worker.Runner.
func (r *Runner) Start(ctx context.Context, req worker.Request) (worker.Handle, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	pipe := worker.NewPipe(r.eventBuffer, cancel)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(r.model),
		Messages: convertRequest(req),
	}

	go func() {
		defer cancel()

		stream := r.client.Chat.Completions.NewStreaming(jobCtx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			pipe.Delta(chunk.Choices[0].Delta.Content)
		}

		if err := stream.Err(); err != nil {
			slog.Error("OpenAI stream error", "model", r.model, "error", err)
			pipe.Result(false, err.Error())
			return
		}
		pipe.TurnEnd()
		pipe.Result(true, "")
	}()

	return pipe, nil
}

// convertRequest flattens a worker request into the chat message list.
func convertRequest(req worker.Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, turn := range req.History {
		if strings.EqualFold(turn.Role, "assistant") {
			msgs = append(msgs, openai.AssistantMessage(turn.Text))
		} else {
			msgs = append(msgs, openai.UserMessage(turn.Text))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	return msgs
}
