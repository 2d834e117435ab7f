package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

const (
	signupEvent = iota + 1
	signupRSN
	signupTeam
)

// Signup registers an account of the invoking user, asking for a team only when
// the user has none yet.
type Signup struct {
	event   eventStep
	rsn     string
	problem string
	result  string
}

func NewSignup(deps Deps, actor eventservice.Actor) *Signup {
	return &Signup{event: eventStep{deps: deps, actor: actor}}
}

func (f *Signup) Question(state conversation.State) (string, bool) {
	var prompt string
	switch state.Step() {
	case signupEvent:
		return f.event.question(state), true
	case signupRSN:
		prompt = "What is the RSN of the account to sign up?"
	case signupTeam:
		if !f.needsTeam() {
			return "", false
		}
		prompt = "Which team? Reply with an existing team name or a new one." + f.teamList()
	default:
		return "", false
	}
	if state.IsRetry() {
		prompt = f.problem + "\n" + prompt
	}
	return prompt, true
}

func (f *Signup) Consume(ctx context.Context, state conversation.State, answer string) (conversation.State, error) {
	switch state.Step() {
	case signupEvent:
		next, ok, err := f.event.consume(ctx, state, answer)
		if err != nil || !ok {
			return next, err
		}
		return conversation.Question(signupRSN), nil
	case signupRSN:
		rsn := strings.TrimSpace(answer)
		if rsn == "" {
			f.problem = eventdomain.ErrRSNRequired.Error()
			return conversation.Retry(signupRSN), nil
		}
		f.rsn = rsn
		return conversation.Question(signupTeam), nil
	case signupTeam:
		return f.commit(ctx, strings.TrimSpace(answer))
	}
	return conversation.Done, nil
}

func (f *Signup) commit(ctx context.Context, team string) (conversation.State, error) {
	e, err := f.event.deps.Service.Signup(ctx, f.event.actor, f.event.ID, f.rsn, team)
	switch {
	case errors.Is(err, statsource.ErrPlayerNotFound),
		errors.Is(err, statsource.ErrInvalidName),
		errors.Is(err, eventdomain.ErrRSNAlreadyUsed):
		f.problem = err.Error()
		return conversation.Retry(signupRSN), nil
	case errors.Is(err, eventdomain.ErrTeamNameTaken),
		errors.Is(err, eventdomain.ErrTeamNameRequired):
		f.problem = err.Error()
		return conversation.Retry(signupTeam), nil
	case err != nil:
		return conversation.Done, result(err)
	}
	f.result = fmt.Sprintf("Signed up **%s** for %s.", f.rsn, eventLabel(e))
	return conversation.Done, nil
}

func (f *Signup) Result() string { return f.result }

// needsTeam reports whether the signup has to name a team.
func (f *Signup) needsTeam() bool {
	e := f.event.Event
	if e == nil {
		return true
	}
	if _, _, ok := e.FindParticipant(f.event.actor.UserID); ok {
		return false
	}
	if e.Global {
		for _, t := range e.Teams {
			if t.GuildID == f.event.actor.GuildID {
				return false
			}
		}
	}
	return true
}

func (f *Signup) teamList() string {
	e := f.event.Event
	if e == nil || len(e.Teams) == 0 {
		return ""
	}
	names := make([]string, len(e.Teams))
	for i, t := range e.Teams {
		names[i] = t.Name
	}
	return "\nTeams: " + strings.Join(names, ", ")
}
