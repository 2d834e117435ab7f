package eventservice

import eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"

// Lifecycle topics. Every will_* is published before the change is applied and
// every did_* after it has been persisted.
const (
	TopicWillAdd          = "event.will_add"
	TopicDidAdd           = "event.did_add"
	TopicWillSignup       = "event.will_signup"
	TopicDidSignup        = "event.did_signup"
	TopicWillUnsignup     = "event.will_unsignup"
	TopicDidUnsignup      = "event.did_unsignup"
	TopicWillStart        = "event.will_start"
	TopicDidStart         = "event.did_start"
	TopicWillUpdateScores = "event.will_update_scores"
	TopicDidUpdateScores  = "event.did_update_scores"
	TopicWillEnd          = "event.will_end"
	TopicDidEnd           = "event.did_end"
	TopicWillDelete       = "event.will_delete"
	TopicDidDelete        = "event.did_delete"
	TopicWillForceUpdate  = "event.will_force_update"
)

// Topics lists every lifecycle topic.
var Topics = []string{
	TopicWillAdd, TopicDidAdd,
	TopicWillSignup, TopicDidSignup,
	TopicWillUnsignup, TopicDidUnsignup,
	TopicWillStart, TopicDidStart,
	TopicWillUpdateScores, TopicDidUpdateScores,
	TopicWillEnd, TopicDidEnd,
	TopicWillDelete, TopicDidDelete,
	TopicWillForceUpdate,
}

// Signal is the payload carried on every topic.
type Signal struct {
	EventID int64              `json:"event_id"`
	Event   *eventdomain.Event `json:"event,omitempty"`
	UserID  string             `json:"user_id,omitempty"`

	// Score update parameters, only meaningful on will_update_scores.
	Force bool   `json:"force,omitempty"`
	Final bool   `json:"final,omitempty"`
	Then  string `json:"then,omitempty"`
}

func signalFor(e *eventdomain.Event) Signal {
	return Signal{EventID: e.IDValue(), Event: e}
}
