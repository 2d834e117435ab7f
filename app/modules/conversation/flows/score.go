package flows

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
)

const (
	scoreEvent = iota + 1
	scoreUser
	scoreDelta
)

var mention = regexp.MustCompile(`^<@!?(\d+)>$`)

// AddScore adjusts a participant's custom score.
type AddScore struct {
	event   eventStep
	userID  string
	problem string
	result  string
}

func NewAddScore(deps Deps, actor eventservice.Actor) *AddScore {
	return &AddScore{event: eventStep{deps: deps, actor: actor}}
}

func (f *AddScore) Question(state conversation.State) (string, bool) {
	var prompt string
	switch state.Step() {
	case scoreEvent:
		return f.event.question(state), true
	case scoreUser:
		prompt = "Whose score? Mention the participant."
	case scoreDelta:
		prompt = "How many points to add? Use a negative number to subtract."
	default:
		return "", false
	}
	if state.IsRetry() {
		prompt = f.problem + "\n" + prompt
	}
	return prompt, true
}

func (f *AddScore) Consume(ctx context.Context, state conversation.State, answer string) (conversation.State, error) {
	answer = strings.TrimSpace(answer)
	switch state.Step() {
	case scoreEvent:
		next, ok, err := f.event.consume(ctx, state, answer)
		if err != nil || !ok {
			return next, err
		}
		return conversation.Question(scoreUser), nil
	case scoreUser:
		userID, ok := parseUser(answer)
		if !ok {
			f.problem = "That is not a user mention."
			return conversation.Retry(scoreUser), nil
		}
		if e := f.event.Event; e != nil {
			if _, _, found := e.FindParticipant(userID); !found {
				f.problem = "That user is not signed up for this event."
				return conversation.Retry(scoreUser), nil
			}
		}
		f.userID = userID
		return conversation.Question(scoreDelta), nil
	case scoreDelta:
		delta, err := strconv.ParseInt(answer, 10, 64)
		if err != nil || delta == 0 {
			f.problem = "Please reply with a non-zero whole number."
			return conversation.Retry(scoreDelta), nil
		}
		e, err := f.event.deps.Service.AddScore(ctx, f.event.actor, f.event.ID, f.userID, delta)
		if err != nil {
			return conversation.Done, result(err)
		}
		f.result = fmt.Sprintf("Added %d to <@%s> in %s.", delta, f.userID, eventLabel(e))
	}
	return conversation.Done, nil
}

func (f *AddScore) Result() string { return f.result }

// parseUser accepts a mention or a raw snowflake id.
func parseUser(s string) (string, bool) {
	if m := mention.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return s, true
	}
	return "", false
}
