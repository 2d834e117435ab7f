package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// FakeSender records replies and signals each one on Sent.
type FakeSender struct {
	mu        sync.Mutex
	replies   []string
	Sent      chan string
	ReplyFunc func(ctx context.Context, channelID, text string) error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{Sent: make(chan string, 32)}
}

func (f *FakeSender) Reply(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	f.replies = append(f.replies, text)
	f.mu.Unlock()
	f.Sent <- text
	if f.ReplyFunc != nil {
		return f.ReplyFunc(ctx, channelID, text)
	}
	return nil
}

func (f *FakeSender) Replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replies...)
}

// twoStepFlow asks two questions. "bad" is retried, "boom" fails with a
// user-facing error and "crash" with an internal one.
type twoStepFlow struct {
	answers []string
	states  []State
}

func (f *twoStepFlow) Question(state State) (string, bool) {
	prompt := []string{"", "first?", "second?"}[state.Step()]
	if state.IsRetry() {
		return "try again: " + prompt, true
	}
	return prompt, true
}

func (f *twoStepFlow) Consume(_ context.Context, state State, answer string) (State, error) {
	f.states = append(f.states, state)
	switch answer {
	case "bad":
		return Retry(state.Step()), nil
	case "boom":
		return state, Fail(errors.New("that did not work"))
	case "crash":
		return state, errors.New("database unavailable")
	}
	f.answers = append(f.answers, answer)
	if state.Step() == 2 {
		return Done, nil
	}
	return Question(state.Step() + 1), nil
}

func (f *twoStepFlow) Result() string { return "got " + strings.Join(f.answers, ",") }
