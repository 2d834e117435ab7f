package conversation

import "fmt"

type stateKind int

const (
	kindQuestion stateKind = iota
	kindRetry
	kindConfirm
	kindDone
)

// State is a position in a flow: a numbered question, the error variant of a
// question, the confirmation step, or the end.
type State struct {
	kind stateKind
	step int
}

// Question is the state asking question n (1-based).
func Question(n int) State { return State{kind: kindQuestion, step: n} }

// Retry is the state asking question n again after a bad answer.
func Retry(n int) State { return State{kind: kindRetry, step: n} }

var (
	// Start is the first state of every flow.
	Start = Question(1)
	// Confirm asks the user to approve the collected answers.
	Confirm = State{kind: kindConfirm}
	// Done ends the conversation.
	Done = State{kind: kindDone}
)

// Step is the question number of a Question or Retry state, and 0 otherwise.
func (s State) Step() int {
	if s.kind == kindQuestion || s.kind == kindRetry {
		return s.step
	}
	return 0
}

func (s State) IsRetry() bool   { return s.kind == kindRetry }
func (s State) IsConfirm() bool { return s.kind == kindConfirm }
func (s State) IsDone() bool    { return s.kind == kindDone }

func (s State) String() string {
	switch s.kind {
	case kindQuestion:
		return fmt.Sprintf("Q%d", s.step)
	case kindRetry:
		return fmt.Sprintf("Q%d_ERR", s.step)
	case kindConfirm:
		return "CONFIRM"
	default:
		return "DONE"
	}
}
