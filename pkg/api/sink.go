package api

import "context"

// ReplySink is the capability object an adapter creates per Event for
// delivering output back to the originating surface. Relay must not return
// until the transport has accepted (or rejected) the text; the stream buffer
// relies on this to keep outbound segments ordered.
type ReplySink interface {
	Relay(ctx context.Context, text string) error
}

// TypingSink is an optional extension for surfaces with a typing indicator.
// Platforms whose indicator expires on its own (e.g. Telegram chat actions)
// may implement StopTyping as a no-op; the core re-sends StartTyping on a
// fixed interval for the lifetime of a job.
type TypingSink interface {
	StartTyping(ctx context.Context) error
	StopTyping(ctx context.Context) error
}

// ReactionSink is an optional extension for surfaces that can pin an
// acknowledgement reaction (e.g. an emoji on the triggering message) while
// work is in progress.
type ReactionSink interface {
	StartReaction(ctx context.Context) error
	StopReaction(ctx context.Context) error
}

// StartTyping invokes the typing capability if the sink supports it.
func StartTyping(ctx context.Context, sink ReplySink) error {
	if ts, ok := sink.(TypingSink); ok {
		return ts.StartTyping(ctx)
	}
	return nil
}

// StopTyping invokes the typing-stop capability if the sink supports it.
func StopTyping(ctx context.Context, sink ReplySink) error {
	if ts, ok := sink.(TypingSink); ok {
		return ts.StopTyping(ctx)
	}
	return nil
}

// StartReaction invokes the reaction capability if the sink supports it.
func StartReaction(ctx context.Context, sink ReplySink) error {
	if rs, ok := sink.(ReactionSink); ok {
		return rs.StartReaction(ctx)
	}
	return nil
}

// StopReaction invokes the reaction-stop capability if the sink supports it.
func StopReaction(ctx context.Context, sink ReplySink) error {
	if rs, ok := sink.(ReactionSink); ok {
		return rs.StopReaction(ctx)
	}
	return nil
}
