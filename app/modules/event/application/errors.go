package eventservice

import (
	"errors"
	"strings"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Orchestration failures shown to users verbatim.
var (
	ErrEventNotFound      = errors.New("no event with that id exists in this server")
	ErrForceUpdateDropped = errors.New("an update for this event ran recently, so this request may be dropped; try again later")
	ErrNotLockable        = errors.New("global events cannot be locked manually")
	ErrPlayerUnavailable  = errors.New("could not reach the hiscores to verify that RSN; try again later")
)

// ValidationError reports every rule a new event breaks.
type ValidationError struct {
	Violations []eventdomain.Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message()
	}
	return strings.Join(msgs, "\n")
}
