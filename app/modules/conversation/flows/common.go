// Package flows holds the conversations behind every event command.
package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

// Deps are the collaborators every flow needs.
type Deps struct {
	Service  eventservice.Service
	Clock    eventutil.Clock
	Times    *eventutil.TimeParser
	Location *time.Location
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now()
}

const (
	eventIDPrompt  = "Which event? Reply with the event id."
	badEventID     = "That is not an event id. Ids are whole numbers like `12`."
	confirmSuffix  = "\nReply `yes` to continue or `no` to stop."
	abortedMessage = "Okay, nothing was changed."
)

// result maps a service error to the conversation outcome: domain failures are
// shown to the user, anything else aborts as internal.
func result(err error) error {
	if err == nil {
		return nil
	}
	if eventservice.IsFailure(err) {
		return conversation.Fail(err)
	}
	return err
}

// parseEventID accepts "12" or "#12".
func parseEventID(answer string) (int64, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(answer), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseYesNo reads a yes/no answer.
func parseYesNo(answer string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "true", "confirm":
		return true, true
	case "n", "no", "false", "cancel":
		return false, true
	}
	return false, false
}

// eventStep is the shared "which event?" question. It looks the event up so a
// wrong id is retried instead of failing the whole command.
type eventStep struct {
	deps  Deps
	actor eventservice.Actor

	// idOnly skips the lookup, for events the guild is not part of yet.
	idOnly  bool
	problem string
	ID      int64
	Event   *eventdomain.Event
}

func (s *eventStep) question(state conversation.State) string {
	if state.IsRetry() {
		return s.problem + "\n" + eventIDPrompt
	}
	return eventIDPrompt
}

// consume resolves the answer into an event, returning the retry state on failure.
func (s *eventStep) consume(ctx context.Context, state conversation.State, answer string) (conversation.State, bool, error) {
	id, ok := parseEventID(answer)
	if !ok {
		s.problem = badEventID
		return conversation.Retry(state.Step()), false, nil
	}
	if s.idOnly {
		s.ID = id
		return state, true, nil
	}
	e, err := s.deps.Service.GetEvent(ctx, s.actor, id)
	if errors.Is(err, eventservice.ErrEventNotFound) {
		s.problem = fmt.Sprintf("Event %d was not found in this server.", id)
		return conversation.Retry(state.Step()), false, nil
	}
	if err != nil {
		return state, false, result(err)
	}
	s.ID, s.Event = id, e
	return state, true, nil
}

func eventLabel(e *eventdomain.Event) string {
	if e == nil {
		return "the event"
	}
	return fmt.Sprintf("**%s** (#%d)", e.Name, e.IDValue())
}

func formatTime(t time.Time) string {
	if !t.Before(eventdomain.InfiniteEnd) {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
