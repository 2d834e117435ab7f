// Package conversation runs turn-based dialogues that collect and validate a
// user's answers before a command commits anything.
package conversation

import (
	"context"
	"errors"
)

var (
	ErrTimedOut   = errors.New("conversation timed out waiting for an answer")
	ErrCancelled  = errors.New("conversation cancelled")
	ErrSuperseded = errors.New("conversation replaced by a newer one")
)

// Flow is one multi-step command.
//
// Question returns the prompt for state, or false when the state needs no
// input (Consume is then called with an empty answer). Consume advances the
// flow; a non-nil error ends the conversation. Result is sent once the flow
// reaches Done.
type Flow interface {
	Question(state State) (string, bool)
	Consume(ctx context.Context, state State, answer string) (State, error)
	Result() string
}

// Session identifies the invocation a conversation belongs to.
type Session struct {
	UserID    string
	GuildID   string
	ChannelID string
}

func (s Session) key() Key { return Key{UserID: s.UserID, ChannelID: s.ChannelID} }

// Sender posts conversation text to a channel.
type Sender interface {
	Reply(ctx context.Context, channelID, text string) error
}

// Failure is a terminal error whose text is meant for the user.
type Failure struct {
	Err error
}

// Fail marks err as user-facing.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Err: err}
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }
