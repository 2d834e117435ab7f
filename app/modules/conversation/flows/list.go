package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
)

// List shows the events of the invoking server.
type List struct {
	deps   Deps
	actor  eventservice.Actor
	result string
}

func NewList(deps Deps, actor eventservice.Actor) *List {
	return &List{deps: deps, actor: actor}
}

func (f *List) Question(conversation.State) (string, bool) { return "", false }

func (f *List) Consume(ctx context.Context, _ conversation.State, _ string) (conversation.State, error) {
	events, err := f.deps.Service.ListGuildEvents(ctx, f.actor.GuildID)
	if err != nil {
		return conversation.Done, result(err)
	}
	if len(events) == 0 {
		f.result = "This server has no events."
		return conversation.Done, nil
	}

	now := f.deps.now()
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "`#%d` **%s** (%s) %s to %s", e.IDValue(), e.Name, e.Status(now), formatTime(e.Window.Start), formatTime(e.Window.End))
		if e.Global {
			b.WriteString(" [global]")
		}
		b.WriteByte('\n')
	}
	f.result = strings.TrimRight(b.String(), "\n")
	return conversation.Done, nil
}

func (f *List) Result() string { return f.result }
