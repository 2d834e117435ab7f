package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExitSentinel cancels the sender's conversation in that channel.
const ExitSentinel = "exit"

// inboxSize bounds answers queued ahead of the flow; extra messages are dropped.
const inboxSize = 8

// IsExit reports whether text is the exit sentinel.
func IsExit(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), ExitSentinel)
}

// Key routes inbound messages to a waiting conversation.
type Key struct {
	UserID    string
	ChannelID string
}

// Inbox receives the answers of one conversation.
type Inbox struct {
	id      string
	answers chan string
	cancel  context.CancelCauseFunc
}

// ID identifies the conversation in logs.
func (in *Inbox) ID() string { return in.id }

// Next waits up to timeout for the next answer.
func (in *Inbox) Next(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case answer := <-in.answers:
		return answer, nil
	case <-timer.C:
		return "", ErrTimedOut
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if errors.Is(cause, ErrCancelled) || errors.Is(cause, ErrSuperseded) {
			return "", cause
		}
		return "", ctx.Err()
	}
}

// Dispatcher tracks the conversation waiting on each (user, channel).
type Dispatcher struct {
	mu      sync.Mutex
	waiting map[Key]*Inbox
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{waiting: make(map[Key]*Inbox)}
}

// Open registers a conversation for key, cancelling any older one. The returned
// context is cancelled when the conversation is cancelled or superseded; release
// must be called when the conversation ends.
func (d *Dispatcher) Open(ctx context.Context, key Key) (context.Context, *Inbox, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	in := &Inbox{
		id:      uuid.NewString(),
		answers: make(chan string, inboxSize),
		cancel:  cancel,
	}

	d.mu.Lock()
	if old, ok := d.waiting[key]; ok {
		old.cancel(ErrSuperseded)
	}
	d.waiting[key] = in
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		if d.waiting[key] == in {
			delete(d.waiting, key)
		}
		d.mu.Unlock()
		cancel(nil)
	}
	return ctx, in, release
}

// Dispatch hands text to the conversation waiting on key. The exit sentinel
// cancels it instead. It reports whether a conversation consumed the message.
func (d *Dispatcher) Dispatch(key Key, text string) bool {
	d.mu.Lock()
	in, ok := d.waiting[key]
	d.mu.Unlock()
	if !ok {
		return false
	}

	if IsExit(text) {
		in.cancel(ErrCancelled)
		return true
	}

	select {
	case in.answers <- text:
	default:
	}
	return true
}

// Active reports whether a conversation is waiting on key.
func (d *Dispatcher) Active(key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.waiting[key]
	return ok
}
