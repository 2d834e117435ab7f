package conversation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sess = Session{UserID: "U1", GuildID: "G1", ChannelID: "C1"}

func newEngine(timeout time.Duration) (*Engine, *FakeSender) {
	sender := NewFakeSender()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(NewDispatcher(), sender, timeout, logger), sender
}

// run starts the conversation and returns a channel with its outcome.
func run(e *Engine, flow Flow, prefill ...string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), sess, flow, prefill) }()
	return done
}

func expectSent(t *testing.T, s *FakeSender, want string) {
	t.Helper()
	select {
	case got := <-s.Sent:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("conversation did not finish")
		return nil
	}
}

func TestEngine_PrefilledAnswersSkipPrompts(t *testing.T) {
	e, sender := newEngine(time.Second)
	flow := &twoStepFlow{}

	require.NoError(t, wait(t, run(e, flow, "a", "b")))
	assert.Equal(t, []string{"got a,b"}, sender.Replies())
	assert.False(t, e.Dispatcher().Active(sess.key()))
}

func TestEngine_WaitsForAnswers(t *testing.T) {
	e, sender := newEngine(time.Second)
	flow := &twoStepFlow{}
	done := run(e, flow, "a")

	expectSent(t, sender, "second?")
	assert.False(t, e.Dispatcher().Dispatch(Key{UserID: "U2", ChannelID: "C1"}, "other user"))
	assert.True(t, e.Dispatcher().Dispatch(sess.key(), "b"))

	require.NoError(t, wait(t, done))
	expectSent(t, sender, "got a,b")
}

func TestEngine_RetryDropsRemainingPrefill(t *testing.T) {
	e, sender := newEngine(time.Second)
	flow := &twoStepFlow{}
	done := run(e, flow, "bad", "b")

	expectSent(t, sender, "try again: first?")
	e.Dispatcher().Dispatch(sess.key(), "a")
	expectSent(t, sender, "second?")
	e.Dispatcher().Dispatch(sess.key(), "c")

	require.NoError(t, wait(t, done))
	expectSent(t, sender, "got a,c")
	assert.Equal(t, []State{Question(1), Retry(1), Question(2)}, flow.states)
}

func TestEngine_TimeoutAbandons(t *testing.T) {
	e, sender := newEngine(20 * time.Millisecond)
	done := run(e, &twoStepFlow{})

	expectSent(t, sender, "first?")
	assert.ErrorIs(t, wait(t, done), ErrTimedOut)
	expectSent(t, sender, timedOutMessage)
}

func TestEngine_ExitCancels(t *testing.T) {
	e, sender := newEngine(time.Second)
	done := run(e, &twoStepFlow{}, "a")

	expectSent(t, sender, "second?")
	assert.True(t, e.Dispatcher().Dispatch(sess.key(), "  EXIT "))

	assert.ErrorIs(t, wait(t, done), ErrCancelled)
	expectSent(t, sender, cancelledMessage)
}

func TestEngine_NewConversationSupersedesOld(t *testing.T) {
	e, sender := newEngine(time.Second)
	first := run(e, &twoStepFlow{})
	expectSent(t, sender, "first?")

	second := run(e, &twoStepFlow{}, "x")
	assert.ErrorIs(t, wait(t, first), ErrSuperseded)
	expectSent(t, sender, "second?")

	e.Dispatcher().Dispatch(sess.key(), "y")
	require.NoError(t, wait(t, second))
	expectSent(t, sender, "got x,y")
}

func TestEngine_Failures(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{name: "user facing", answer: "boom", want: "that did not work"},
		{name: "internal", answer: "crash", want: internalMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sender := newEngine(time.Second)
			err := wait(t, run(e, &twoStepFlow{}, tt.answer))
			require.Error(t, err)
			assert.Equal(t, []string{tt.want}, sender.Replies())
		})
	}
}

func TestState(t *testing.T) {
	assert.Equal(t, 1, Start.Step())
	assert.Equal(t, 3, Retry(3).Step())
	assert.True(t, Retry(3).IsRetry())
	assert.Equal(t, 0, Confirm.Step())
	assert.True(t, Done.IsDone())
	assert.Equal(t, "Q2", Question(2).String())
	assert.Equal(t, "Q2_ERR", Retry(2).String())
	assert.Equal(t, "CONFIRM", Confirm.String())
}

func TestDispatcher_IgnoresUnknownKeys(t *testing.T) {
	d := NewDispatcher()
	assert.False(t, d.Dispatch(Key{UserID: "U1", ChannelID: "C1"}, "hello"))
	assert.False(t, d.Dispatch(Key{UserID: "U1", ChannelID: "C1"}, "exit"))

	_, _, release := d.Open(context.Background(), Key{UserID: "U1", ChannelID: "C1"})
	assert.True(t, d.Active(Key{UserID: "U1", ChannelID: "C1"}))
	assert.False(t, d.Active(Key{UserID: "U1", ChannelID: "C2"}))
	release()
	assert.False(t, d.Active(Key{UserID: "U1", ChannelID: "C1"}))
}
