package flows

import (
	"strings"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
)

// Factory builds the flow of one command invocation.
type Factory func(deps Deps, actor eventservice.Actor) conversation.Flow

var commands = map[string]Factory{
	"create":   func(d Deps, a eventservice.Actor) conversation.Flow { return NewCreate(d, a) },
	"signup":   func(d Deps, a eventservice.Actor) conversation.Flow { return NewSignup(d, a) },
	"unsignup": func(d Deps, a eventservice.Actor) conversation.Flow { return NewUnsignup(d, a) },
	"score":    func(d Deps, a eventservice.Actor) conversation.Flow { return NewAddScore(d, a) },
	"end":      func(d Deps, a eventservice.Actor) conversation.Flow { return NewEnd(d, a) },
	"delete":   func(d Deps, a eventservice.Actor) conversation.Flow { return NewDelete(d, a) },
	"lock":     func(d Deps, a eventservice.Actor) conversation.Flow { return NewSetLocked(d, a, true) },
	"unlock":   func(d Deps, a eventservice.Actor) conversation.Flow { return NewSetLocked(d, a, false) },
	"update":   func(d Deps, a eventservice.Actor) conversation.Flow { return NewForceUpdate(d, a) },
	"join":     func(d Deps, a eventservice.Actor) conversation.Flow { return NewJoinGlobal(d, a) },
	"leave":    func(d Deps, a eventservice.Actor) conversation.Flow { return NewLeaveGlobal(d, a) },
	"list":     func(d Deps, a eventservice.Actor) conversation.Flow { return NewList(d, a) },
}

// Lookup finds the factory of a command name, case-insensitively.
func Lookup(name string) (Factory, bool) {
	f, ok := commands[strings.ToLower(name)]
	return f, ok
}
