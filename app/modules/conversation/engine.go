package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout is how long a conversation waits for each answer.
const DefaultTimeout = 60 * time.Second

const (
	timedOutMessage  = "No answer received in time, the command was abandoned."
	cancelledMessage = "Cancelled."
	internalMessage  = "Something went wrong while handling that command. Please try again later."
)

// Engine drives flows over a chat channel.
type Engine struct {
	dispatcher *Dispatcher
	sender     Sender
	timeout    time.Duration
	logger     *slog.Logger
}

func NewEngine(dispatcher *Dispatcher, sender Sender, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		dispatcher: dispatcher,
		sender:     sender,
		timeout:    timeout,
		logger:     logger,
	}
}

// Dispatcher returns the dispatcher the engine waits on.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// Dispatch forwards an inbound message to the conversation waiting on key.
func (e *Engine) Dispatch(key Key, text string) bool { return e.dispatcher.Dispatch(key, text) }

// Run drives flow to completion. Prefilled answers are consumed by asked
// questions before any real input; a retry state discards the ones left.
func (e *Engine) Run(ctx context.Context, sess Session, flow Flow, prefill []string) error {
	ctx, inbox, release := e.dispatcher.Open(ctx, sess.key())
	defer release()

	logger := e.logger.With(
		slog.String("conversation_id", inbox.ID()),
		slog.String("user_id", sess.UserID),
		slog.String("channel_id", sess.ChannelID),
	)
	logger.DebugContext(ctx, "Conversation started", slog.Int("prefilled", len(prefill)))

	state := Start
	for !state.IsDone() {
		prompt, ask := flow.Question(state)
		if state.IsRetry() {
			prefill = nil
		}

		var answer string
		switch {
		case !ask:
		case len(prefill) > 0:
			answer, prefill = prefill[0], prefill[1:]
		default:
			if err := e.sender.Reply(ctx, sess.ChannelID, prompt); err != nil {
				return fmt.Errorf("failed to send prompt: %w", err)
			}
			next, err := inbox.Next(ctx, e.timeout)
			if err != nil {
				return e.abandon(ctx, logger, sess, state, err)
			}
			answer = next
		}

		next, err := flow.Consume(ctx, state, answer)
		if err != nil {
			return e.fail(ctx, logger, sess, state, err)
		}
		logger.DebugContext(ctx, "Conversation advanced", slog.String("from", state.String()), slog.String("to", next.String()))
		state = next
	}

	if result := flow.Result(); result != "" {
		if err := e.sender.Reply(ctx, sess.ChannelID, result); err != nil {
			return fmt.Errorf("failed to send result: %w", err)
		}
	}
	logger.InfoContext(ctx, "Conversation completed")
	return nil
}

func (e *Engine) abandon(ctx context.Context, logger *slog.Logger, sess Session, state State, err error) error {
	// ctx may already be cancelled here.
	replyCtx := context.WithoutCancel(ctx)
	switch {
	case errors.Is(err, ErrTimedOut):
		logger.InfoContext(ctx, "Conversation timed out", slog.String("state", state.String()))
		e.notify(replyCtx, logger, sess, timedOutMessage)
	case errors.Is(err, ErrCancelled):
		logger.InfoContext(ctx, "Conversation cancelled", slog.String("state", state.String()))
		e.notify(replyCtx, logger, sess, cancelledMessage)
	case errors.Is(err, ErrSuperseded):
		logger.InfoContext(ctx, "Conversation superseded", slog.String("state", state.String()))
	}
	return err
}

func (e *Engine) fail(ctx context.Context, logger *slog.Logger, sess Session, state State, err error) error {
	var failure *Failure
	if errors.As(err, &failure) {
		logger.InfoContext(ctx, "Conversation ended with failure", slog.String("state", state.String()), slog.Any("error", err))
		e.notify(ctx, logger, sess, failure.Error())
		return err
	}
	logger.ErrorContext(ctx, "Conversation aborted", slog.String("state", state.String()), slog.Any("error", err))
	e.notify(context.WithoutCancel(ctx), logger, sess, internalMessage)
	return err
}

func (e *Engine) notify(ctx context.Context, logger *slog.Logger, sess Session, text string) {
	if err := e.sender.Reply(ctx, sess.ChannelID, text); err != nil {
		logger.WarnContext(ctx, "Failed to notify user", slog.Any("error", err))
	}
}
