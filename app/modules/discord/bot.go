package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Bot owns the gateway connection.
type Bot struct {
	Session *discordgo.Session
	logger  *slog.Logger
}

// NewBot creates a session authenticated with token. It does not connect.
func NewBot(token string, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers

	b := &Bot{Session: session, logger: logger}
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Bot is ready", slog.String("session_id", r.SessionID), slog.Int("guilds", len(r.Guilds)))
	})
	return b, nil
}

// Attach routes new messages through r.
func (b *Bot) Attach(r *Router) {
	b.Session.AddHandler(r.HandleMessageCreate)
}

// Run connects and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.InfoContext(ctx, "Connected to Discord")

	<-ctx.Done()
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	if err := b.Session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}
