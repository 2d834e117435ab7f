// Package discord adapts a discordgo session to the event bot: posting and
// cleaning up scoreboards, resolving names, and routing inbound commands.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Session is the part of *discordgo.Session the client uses.
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

// MemberCache is the gateway's member state, filled by guild and member events.
type MemberCache interface {
	Member(guildID, userID string) (*discordgo.Member, error)
	MemberAdd(member *discordgo.Member) error
}

var (
	_ Session             = (*discordgo.Session)(nil)
	_ MemberCache         = (*discordgo.State)(nil)
	_ eventservice.Chat   = (*Client)(nil)
	_ conversation.Sender = (*Client)(nil)
)

// Client implements eventservice.Chat and conversation.Sender over Discord.
type Client struct {
	session Session
	members MemberCache
	limit   int
	logger  *slog.Logger
}

// NewClient returns a client over session. members may be nil, in which case
// every name lookup goes to the REST API.
func NewClient(session Session, members MemberCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{session: session, members: members, limit: MessageLimit, logger: logger}
}

// Send posts text as one or more messages. Attachments go on the last one.
func (c *Client) Send(ctx context.Context, channelID, text string, opts eventservice.SendOptions) ([]eventdomain.MessageRef, error) {
	chunks := SplitMessage(text, c.limit)
	refs := make([]eventdomain.MessageRef, 0, len(chunks))
	for i, chunk := range chunks {
		msg := &discordgo.MessageSend{
			Content:         chunk,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		}
		if i == len(chunks)-1 {
			for _, a := range opts.Attachments {
				msg.Files = append(msg.Files, &discordgo.File{
					Name:        a.Name,
					ContentType: a.ContentType,
					Reader:      bytes.NewReader(a.Data),
				})
			}
		}
		sent, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
		if err != nil {
			return refs, fmt.Errorf("failed to send message %d/%d to channel %s: %w", i+1, len(chunks), channelID, err)
		}
		refs = append(refs, eventdomain.MessageRef{ChannelID: sent.ChannelID, MessageID: sent.ID})
	}
	return refs, nil
}

// Reply implements conversation.Sender.
func (c *Client) Reply(ctx context.Context, channelID, text string) error {
	_, err := c.Send(ctx, channelID, text, eventservice.SendOptions{})
	return err
}

// Delete removes a message; one that is already gone counts as deleted.
func (c *Client) Delete(ctx context.Context, ref eventdomain.MessageRef) error {
	err := c.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete message %s: %w", ref.MessageID, err)
	}
	return nil
}

// Fetch loads a message, returning nil when it no longer exists.
func (c *Client) Fetch(ctx context.Context, ref eventdomain.MessageRef) (*eventservice.Message, error) {
	m, err := c.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", ref.MessageID, err)
	}
	msg := &eventservice.Message{Ref: ref, Content: m.Content}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg, nil
}

// DisplayNames resolves each user's name in guildID, in order. Members already
// in the gateway state are answered from it; only the rest cost a REST call.
// Users who left the guild keep their id.
func (c *Client) DisplayNames(ctx context.Context, guildID string, userIDs []string) ([]string, error) {
	names := make([]string, len(userIDs))
	resolved := make(map[string]string, len(userIDs))
	for i, id := range userIDs {
		if name, ok := resolved[id]; ok {
			names[i] = name
			continue
		}
		if member := c.cachedMember(guildID, id); member != nil {
			names[i] = memberName(member, id)
			resolved[id] = names[i]
			continue
		}

		member, err := c.session.GuildMember(guildID, id, discordgo.WithContext(ctx))
		switch {
		case isNotFound(err):
			names[i] = id
		case err != nil:
			return nil, fmt.Errorf("failed to resolve member %s: %w", id, err)
		default:
			names[i] = memberName(member, id)
			c.cacheMember(guildID, member)
		}
		resolved[id] = names[i]
	}
	return names, nil
}

func (c *Client) cachedMember(guildID, userID string) *discordgo.Member {
	if c.members == nil {
		return nil
	}
	member, err := c.members.Member(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func (c *Client) cacheMember(guildID string, member *discordgo.Member) {
	if c.members == nil || member == nil || member.User == nil {
		return
	}
	if member.GuildID == "" {
		member.GuildID = guildID
	}
	if err := c.members.MemberAdd(member); err != nil {
		c.logger.Debug("Member not cached", slog.String("guild_id", guildID), slog.String("user_id", member.User.ID), slog.Any("error", err))
	}
}

// GuildName returns the guild's display name.
func (c *Client) GuildName(ctx context.Context, guildID string) (string, error) {
	g, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to load guild %s: %w", guildID, err)
	}
	return g.Name, nil
}

func memberName(m *discordgo.Member, fallback string) string {
	switch {
	case m == nil:
		return fallback
	case m.Nick != "":
		return m.Nick
	case m.User == nil:
		return fallback
	case m.User.GlobalName != "":
		return m.User.GlobalName
	case m.User.Username != "":
		return m.User.Username
	}
	return fallback
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
