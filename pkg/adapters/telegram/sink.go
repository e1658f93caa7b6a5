package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"switchboard/pkg/api"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// replySink delivers output for one Event back into the originating chat.
type replySink struct {
	bot          *tgbotapi.BotAPI
	chatID       int64
	messageLimit int
}

// deadSink is handed out when no usable sink can be built. Every relay
// fails with the construction error instead of panicking mid-job.
type deadSink struct{ err error }

func (s deadSink) Relay(context.Context, string) error { return s.err }

// CreateReplySink builds the outbound capability object for one Event.
func (a *Adapter) CreateReplySink(ev *api.Event) api.ReplySink {
	p, ok := ev.Payload.(*Payload)
	if !ok {
		slog.Error("Telegram event carries foreign payload", "event", ev.ID)
		return deadSink{err: fmt.Errorf("event %s has no telegram payload", ev.ID)}
	}
	return &replySink{bot: a.bot, chatID: p.ChatID, messageLimit: a.messageLimit}
}

// Relay sends text to the chat, splitting on the platform message limit.
// Chunking counts runes, not bytes: Telegram's limit is in characters and
// splitting mid-rune would corrupt multi-byte text.
func (s *replySink) Relay(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	for len(runes) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := runes
		if len(chunk) > s.messageLimit {
			chunk = chunk[:s.messageLimit]
		}
		runes = runes[len(chunk):]

		msg := tgbotapi.NewMessage(s.chatID, string(chunk))
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	return nil
}

// StartTyping flashes the platform "typing..." chat action. Telegram expires
// the indicator on its own after a few seconds, so the core refreshes it
// periodically while a job runs.
func (s *replySink) StartTyping(ctx context.Context) error {
	action := tgbotapi.NewChatAction(s.chatID, tgbotapi.ChatTyping)
	if _, err := s.bot.Request(action); err != nil {
		return fmt.Errorf("failed to send chat action: %w", err)
	}
	return nil
}

// StopTyping is a no-op: the Telegram indicator expires by itself.
func (s *replySink) StopTyping(ctx context.Context) error {
	return nil
}
