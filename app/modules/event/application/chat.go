package eventservice

import (
	"context"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Attachment is a file posted alongside a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// SendOptions carries the optional parts of a post.
type SendOptions struct {
	Attachments []Attachment
}

// Message is a posted chat message.
type Message struct {
	Ref      eventdomain.MessageRef
	AuthorID string
	Content  string
}

// Chat is the chat platform collaborator.
//
// Error semantics:
//   - Fetch returns (nil, nil) when the message no longer exists
//   - DisplayNames returns one name per id, in order, falling back to the id itself
//   - anything else is a transport failure
type Chat interface {
	// Send posts text to channelID, splitting it into as many messages as the platform needs.
	Send(ctx context.Context, channelID, text string, opts SendOptions) ([]eventdomain.MessageRef, error)
	Delete(ctx context.Context, ref eventdomain.MessageRef) error
	Fetch(ctx context.Context, ref eventdomain.MessageRef) (*Message, error)
	DisplayNames(ctx context.Context, guildID string, userIDs []string) ([]string, error)
	GuildName(ctx context.Context, guildID string) (string, error)
}
