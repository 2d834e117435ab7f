package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation/flows"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	"github.com/Black-And-White-Club/osrs-event-bot/app/observability"
)

const usageMessage = "Usage: `%s <command> [answers...]`. Commands: create, signup, unsignup, score, end, delete, lock, unlock, update, join, leave, list."

// Conversations runs flows and routes answers to them.
type Conversations interface {
	Run(ctx context.Context, sess conversation.Session, flow conversation.Flow, prefill []string) error
	Dispatch(key conversation.Key, text string) bool
}

// Inbound is a guild message from a user.
type Inbound struct {
	MessageID string
	UserID    string
	GuildID   string
	ChannelID string
	Content   string
}

// Router turns inbound messages into conversations.
type Router struct {
	ctx           context.Context
	prefix        string
	conversations Conversations
	sender        conversation.Sender
	deps          flows.Deps
	logger        *slog.Logger
}

// NewRouter creates a router whose conversations live until ctx is cancelled.
func NewRouter(ctx context.Context, prefix string, conversations Conversations, sender conversation.Sender, deps flows.Deps, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ctx:           ctx,
		prefix:        prefix,
		conversations: conversations,
		sender:        sender,
		deps:          deps,
		logger:        logger,
	}
}

// HandleMessageCreate is the discordgo handler for new messages.
func (r *Router) HandleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	r.Route(Inbound{
		MessageID: m.ID,
		UserID:    m.Author.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	})
}

// Route starts a conversation for a command, or hands the message to the
// conversation already waiting on its author. It reports whether the message
// was used.
func (r *Router) Route(in Inbound) bool {
	ctx := observability.WithCorrelationID(r.ctx, in.MessageID)

	cmd, ok := ParseCommand(r.prefix, in.Content)
	if !ok {
		return r.conversations.Dispatch(conversation.Key{UserID: in.UserID, ChannelID: in.ChannelID}, in.Content)
	}

	factory, found := flows.Lookup(cmd.Name)
	if !found {
		r.reply(ctx, in.ChannelID, fmt.Sprintf(usageMessage, r.prefix))
		return true
	}

	actor := eventservice.Actor{UserID: in.UserID, GuildID: in.GuildID, ChannelID: in.ChannelID}
	sess := conversation.Session{UserID: in.UserID, GuildID: in.GuildID, ChannelID: in.ChannelID}
	flow := factory(r.deps, actor)

	r.logger.InfoContext(ctx, "Starting conversation",
		observability.CorrelationAttr(ctx),
		slog.String("command", cmd.Name),
		slog.String("user_id", in.UserID),
		slog.String("guild_id", in.GuildID),
	)
	go func() {
		start := time.Now()
		err := r.conversations.Run(ctx, sess, flow, cmd.Args)
		attrs := []any{
			observability.CorrelationAttr(ctx),
			slog.String("command", cmd.Name),
			slog.Duration("duration", time.Since(start)),
		}
		var failure *conversation.Failure
		switch {
		case err == nil,
			errors.As(err, &failure),
			errors.Is(err, conversation.ErrTimedOut),
			errors.Is(err, conversation.ErrCancelled),
			errors.Is(err, conversation.ErrSuperseded):
			r.logger.DebugContext(ctx, "Conversation finished", append(attrs, slog.Any("outcome", err))...)
		default:
			r.logger.ErrorContext(ctx, "Conversation failed", append(attrs, slog.Any("error", err))...)
		}
	}()
	return true
}

func (r *Router) reply(ctx context.Context, channelID, text string) {
	if err := r.sender.Reply(ctx, channelID, text); err != nil {
		r.logger.WarnContext(ctx, "Failed to reply", slog.Any("error", err))
	}
}
