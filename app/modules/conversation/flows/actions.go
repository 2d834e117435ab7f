package flows

import (
	"context"
	"fmt"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Action is a command against one event: pick the event, optionally confirm,
// then run.
type Action struct {
	event   eventStep
	confirm func(e *eventdomain.Event) string
	run     func(ctx context.Context, id int64) (string, error)
	result  string
}

func newAction(deps Deps, actor eventservice.Actor, confirm func(*eventdomain.Event) string, run func(context.Context, int64) (string, error)) *Action {
	return &Action{
		event:   eventStep{deps: deps, actor: actor},
		confirm: confirm,
		run:     run,
	}
}

func (f *Action) Question(state conversation.State) (string, bool) {
	if state.IsConfirm() {
		return f.confirm(f.event.Event) + confirmSuffix, true
	}
	if state.Step() == 1 {
		return f.event.question(state), true
	}
	return "", false
}

func (f *Action) Consume(ctx context.Context, state conversation.State, answer string) (conversation.State, error) {
	if state.IsConfirm() {
		yes, ok := parseYesNo(answer)
		if !ok {
			return conversation.Confirm, nil
		}
		if !yes {
			f.result = abortedMessage
			return conversation.Done, nil
		}
		return f.execute(ctx)
	}

	next, ok, err := f.event.consume(ctx, state, answer)
	if err != nil || !ok {
		return next, err
	}
	if f.confirm != nil {
		return conversation.Confirm, nil
	}
	return f.execute(ctx)
}

func (f *Action) execute(ctx context.Context) (conversation.State, error) {
	msg, err := f.run(ctx, f.event.ID)
	if err != nil {
		return conversation.Done, result(err)
	}
	f.result = msg
	return conversation.Done, nil
}

func (f *Action) Result() string { return f.result }

// NewUnsignup removes the invoking user from an event.
func NewUnsignup(deps Deps, actor eventservice.Actor) *Action {
	return newAction(deps, actor,
		func(e *eventdomain.Event) string {
			return fmt.Sprintf("Remove all your accounts from %s?", eventLabel(e))
		},
		func(ctx context.Context, id int64) (string, error) {
			e, err := deps.Service.Unsignup(ctx, actor, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("You left %s.", eventLabel(e)), nil
		})
}

// NewEnd ends a running event now.
func NewEnd(deps Deps, actor eventservice.Actor) *Action {
	return newAction(deps, actor,
		func(e *eventdomain.Event) string {
			return fmt.Sprintf("End %s now? Final scores will be posted.", eventLabel(e))
		},
		func(ctx context.Context, id int64) (string, error) {
			e, err := deps.Service.EndEvent(ctx, actor, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Ended %s.", eventLabel(e)), nil
		})
}

// NewDelete deletes an event that has not started.
func NewDelete(deps Deps, actor eventservice.Actor) *Action {
	return newAction(deps, actor,
		func(e *eventdomain.Event) string {
			return fmt.Sprintf("Delete %s? This cannot be undone.", eventLabel(e))
		},
		func(ctx context.Context, id int64) (string, error) {
			e, err := deps.Service.DeleteEvent(ctx, actor, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Deleted %s.", eventLabel(e)), nil
		})
}

// NewSetLocked locks or unlocks signups.
func NewSetLocked(deps Deps, actor eventservice.Actor, locked bool) *Action {
	return newAction(deps, actor, nil,
		func(ctx context.Context, id int64) (string, error) {
			e, err := deps.Service.SetLocked(ctx, actor, id, locked)
			if err != nil {
				return "", err
			}
			if locked {
				return fmt.Sprintf("Signups for %s are locked.", eventLabel(e)), nil
			}
			return fmt.Sprintf("Signups for %s are open.", eventLabel(e)), nil
		})
}

// NewForceUpdate asks for an immediate score refresh.
func NewForceUpdate(deps Deps, actor eventservice.Actor) *Action {
	return newAction(deps, actor, nil,
		func(ctx context.Context, id int64) (string, error) {
			if err := deps.Service.ForceUpdate(ctx, actor, id); err != nil {
				return "", err
			}
			return "Scores will be refreshed shortly.", nil
		})
}

// NewJoinGlobal adds the invoking server to a global event.
func NewJoinGlobal(deps Deps, actor eventservice.Actor) *Action {
	f := newAction(deps, actor, nil,
		func(ctx context.Context, id int64) (string, error) {
			e, err := deps.Service.JoinGlobal(ctx, actor, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("This server joined %s.", eventLabel(e)), nil
		})
	f.event.idOnly = true
	return f
}

// NewLeaveGlobal removes the invoking server and its team from a global event.
func NewLeaveGlobal(deps Deps, actor eventservice.Actor) *Action {
	return newAction(deps, actor,
		func(e *eventdomain.Event) string {
			return fmt.Sprintf("Leave %s? This server's team will be removed.", eventLabel(e))
		},
		func(ctx context.Context, id int64) (string, error) {
			e, err := deps.Service.LeaveGlobal(ctx, actor, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("This server left %s.", eventLabel(e)), nil
		})
}
