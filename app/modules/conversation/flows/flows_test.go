package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

var (
	testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	actor   = eventservice.Actor{UserID: "100", GuildID: "G1", ChannelID: "C1"}
)

var errOutOfAnswers = errors.New("flow asked more questions than answered")

// drive feeds answers to every asked question until the flow is done.
func drive(flow conversation.Flow, answers ...string) ([]string, []conversation.State, error) {
	var (
		prompts []string
		states  []conversation.State
	)
	state := conversation.Start
	for !state.IsDone() {
		prompt, ask := flow.Question(state)
		answer := ""
		if ask {
			prompts = append(prompts, prompt)
			if len(answers) == 0 {
				return prompts, states, errOutOfAnswers
			}
			answer, answers = answers[0], answers[1:]
		}
		states = append(states, state)
		next, err := flow.Consume(context.Background(), state, answer)
		if err != nil {
			return prompts, states, err
		}
		state = next
	}
	return prompts, states, nil
}

func deps(svc *FakeService) Deps {
	return Deps{
		Service:  svc,
		Clock:    eventutil.NewFakeClock(testNow),
		Times:    eventutil.NewTimeParser(),
		Location: time.UTC,
	}
}

func storedEvent(id int64) *eventdomain.Event {
	return &eventdomain.Event{
		ID:       &id,
		Name:     "Boss Week",
		Window:   eventdomain.Window{Start: testNow.Add(time.Hour), End: testNow.Add(49 * time.Hour)},
		Guilds:   eventdomain.Guilds{Creator: eventdomain.GuildRef{GuildID: "G1", ChannelID: "C1"}},
		Tracking: eventdomain.Tracking{Category: eventdomain.CategoryBosses, What: []string{"zulrah"}},
		Teams: []eventdomain.Team{{
			Name:         "Red",
			Participants: []eventdomain.Participant{{UserID: "200", Accounts: []eventdomain.Account{{RSN: "Zezima"}}}},
		}},
	}
}

func getEvent(id int64) func(context.Context, eventservice.Actor, int64) (*eventdomain.Event, error) {
	return func(_ context.Context, _ eventservice.Actor, got int64) (*eventdomain.Event, error) {
		if got != id {
			return nil, eventservice.ErrEventNotFound
		}
		return storedEvent(id), nil
	}
}

func TestCreate(t *testing.T) {
	t.Run("collects every answer", func(t *testing.T) {
		var got eventservice.CreateEventRequest
		svc := &FakeService{CreateEventFunc: func(_ context.Context, a eventservice.Actor, req eventservice.CreateEventRequest) (*eventdomain.Event, error) {
			assert.Equal(t, actor, a)
			got = req
			e := storedEvent(7)
			e.Name = req.Name
			return e, nil
		}}
		flow := NewCreate(deps(svc), actor)

		prompts, _, err := drive(flow, "Boss Week", "2026-05-02 18:00", "2026-05-04 18:00", "Bosses", "Zulrah, Vorkath, zulrah", "no", "yes")
		require.NoError(t, err)

		assert.Len(t, prompts, 7)
		assert.Equal(t, eventservice.CreateEventRequest{
			Name:     "Boss Week",
			Start:    time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC),
			End:      time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC),
			Category: eventdomain.CategoryBosses,
			What:     []string{"zulrah", "vorkath"},
		}, got)
		assert.Contains(t, flow.Result(), "Created **Boss Week** (#7)")
	})

	t.Run("categories without metrics skip the metric question", func(t *testing.T) {
		var got eventservice.CreateEventRequest
		svc := &FakeService{CreateEventFunc: func(_ context.Context, _ eventservice.Actor, req eventservice.CreateEventRequest) (*eventdomain.Event, error) {
			got = req
			return storedEvent(8), nil
		}}

		prompts, _, err := drive(NewCreate(deps(svc), actor), "Clan Cup", "now", "never", "custom", "yes", "y")
		require.NoError(t, err)
		assert.Len(t, prompts, 6)
		assert.Equal(t, testNow, got.Start)
		assert.Equal(t, eventdomain.InfiniteEnd, got.End)
		assert.Nil(t, got.What)
		assert.True(t, got.Global)
	})

	t.Run("bad answers are retried", func(t *testing.T) {
		svc := &FakeService{CreateEventFunc: func(context.Context, eventservice.Actor, eventservice.CreateEventRequest) (*eventdomain.Event, error) {
			return storedEvent(9), nil
		}}
		prompts, states, err := drive(NewCreate(deps(svc), actor),
			"", "Boss Week",
			"2026-05-02 18:00",
			"2026-05-01 18:00", "2026-05-03 18:00",
			"pets", "skills",
			"sailing", "attack",
			"maybe", "no",
			"sure", "yes",
		)
		require.NoError(t, err)
		assert.Contains(t, states, conversation.Retry(createName))
		assert.Contains(t, states, conversation.Retry(createEnd))
		assert.Contains(t, states, conversation.Retry(createCategory))
		assert.Contains(t, states, conversation.Retry(createMetrics))
		assert.Contains(t, states, conversation.Retry(createGlobal))
		assert.Contains(t, prompts[1], "Names must be between 1 and 50 characters.")
		assert.Contains(t, prompts[len(prompts)-1], confirmSuffix)
	})

	t.Run("declining changes nothing", func(t *testing.T) {
		svc := &FakeService{}
		flow := NewCreate(deps(svc), actor)
		_, _, err := drive(flow, "Boss Week", "2026-05-02 18:00", "2026-05-04 18:00", "custom", "no", "no")
		require.NoError(t, err)
		assert.Empty(t, svc.Trace())
		assert.Equal(t, abortedMessage, flow.Result())
	})

	t.Run("validation failures are shown to the user", func(t *testing.T) {
		verr := &eventservice.ValidationError{Violations: []eventdomain.Violation{eventdomain.ViolationGlobalStartTooSoon}}
		svc := &FakeService{CreateEventFunc: func(context.Context, eventservice.Actor, eventservice.CreateEventRequest) (*eventdomain.Event, error) {
			return nil, verr
		}}
		_, _, err := drive(NewCreate(deps(svc), actor), "Boss Week", "now", "2026-05-02 18:00", "custom", "yes", "yes")

		var failure *conversation.Failure
		require.ErrorAs(t, err, &failure)
		assert.ErrorIs(t, err, verr)
	})
}

func TestEventStep(t *testing.T) {
	svc := &FakeService{
		GetEventFunc: getEvent(5),
		SetLockedFunc: func(_ context.Context, _ eventservice.Actor, id int64, locked bool) (*eventdomain.Event, error) {
			assert.True(t, locked)
			return storedEvent(id), nil
		},
	}
	flow := NewSetLocked(deps(svc), actor, true)

	prompts, states, err := drive(flow, "twelve", "#6", "#5")
	require.NoError(t, err)
	assert.Equal(t, []conversation.State{conversation.Question(1), conversation.Retry(1), conversation.Retry(1)}, states)
	assert.Contains(t, prompts[1], badEventID)
	assert.Contains(t, prompts[2], "Event 6 was not found")
	assert.Equal(t, "Signups for **Boss Week** (#5) are locked.", flow.Result())
}

func TestSignup(t *testing.T) {
	t.Run("new participant names a team", func(t *testing.T) {
		svc := &FakeService{
			GetEventFunc: getEvent(5),
			SignupFunc: func(_ context.Context, _ eventservice.Actor, id int64, rsn, team string) (*eventdomain.Event, error) {
				assert.Equal(t, int64(5), id)
				assert.Equal(t, "Lynx Titan", rsn)
				assert.Equal(t, "Red", team)
				return storedEvent(id), nil
			},
		}
		flow := NewSignup(deps(svc), actor)
		prompts, _, err := drive(flow, "5", " Lynx Titan ", "Red")
		require.NoError(t, err)
		assert.Contains(t, prompts[2], "Teams: Red")
		assert.Equal(t, "Signed up **Lynx Titan** for **Boss Week** (#5).", flow.Result())
	})

	t.Run("existing participant is not asked for a team", func(t *testing.T) {
		svc := &FakeService{
			GetEventFunc: getEvent(5),
			SignupFunc: func(_ context.Context, _ eventservice.Actor, _ int64, _, team string) (*eventdomain.Event, error) {
				assert.Empty(t, team)
				return storedEvent(5), nil
			},
		}
		alt := eventservice.Actor{UserID: "200", GuildID: "G1", ChannelID: "C1"}
		prompts, _, err := drive(NewSignup(deps(svc), alt), "5", "Zezima Alt")
		require.NoError(t, err)
		assert.Len(t, prompts, 2)
	})

	t.Run("unknown players are retried", func(t *testing.T) {
		calls := 0
		svc := &FakeService{
			GetEventFunc: getEvent(5),
			SignupFunc: func(_ context.Context, _ eventservice.Actor, _ int64, rsn, _ string) (*eventdomain.Event, error) {
				calls++
				if rsn == "nobody" {
					return nil, statsource.ErrPlayerNotFound
				}
				return storedEvent(5), nil
			},
		}
		_, states, err := drive(NewSignup(deps(svc), actor), "5", "nobody", "Red", "Lynx Titan", "Red")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Contains(t, states, conversation.Retry(signupRSN))
	})

	t.Run("domain failures end the conversation", func(t *testing.T) {
		svc := &FakeService{
			GetEventFunc: getEvent(5),
			SignupFunc: func(context.Context, eventservice.Actor, int64, string, string) (*eventdomain.Event, error) {
				return nil, eventdomain.ErrLockedByAdmin
			},
		}
		_, _, err := drive(NewSignup(deps(svc), actor), "5", "Lynx Titan", "Red")
		var failure *conversation.Failure
		require.ErrorAs(t, err, &failure)
		assert.ErrorIs(t, err, eventdomain.ErrLockedByAdmin)
	})
}

func TestAddScore(t *testing.T) {
	svc := &FakeService{
		GetEventFunc: getEvent(5),
		AddScoreFunc: func(_ context.Context, _ eventservice.Actor, _ int64, userID string, delta int64) (*eventdomain.Event, error) {
			assert.Equal(t, "200", userID)
			assert.Equal(t, int64(-3), delta)
			return storedEvent(5), nil
		},
	}
	flow := NewAddScore(deps(svc), actor)
	_, states, err := drive(flow, "5", "someone", "<@300>", "<@!200>", "0", "-3")
	require.NoError(t, err)
	assert.Equal(t, []conversation.State{
		conversation.Question(scoreEvent),
		conversation.Question(scoreUser),
		conversation.Retry(scoreUser),
		conversation.Retry(scoreUser),
		conversation.Question(scoreDelta),
		conversation.Retry(scoreDelta),
	}, states)
	assert.Equal(t, "Added -3 to <@200> in **Boss Week** (#5).", flow.Result())
}

func TestActions(t *testing.T) {
	t.Run("delete asks for confirmation", func(t *testing.T) {
		svc := &FakeService{
			GetEventFunc:    getEvent(5),
			DeleteEventFunc: func(_ context.Context, _ eventservice.Actor, id int64) (*eventdomain.Event, error) { return storedEvent(id), nil },
		}
		flow := NewDelete(deps(svc), actor)
		prompts, _, err := drive(flow, "5", "what", "yes")
		require.NoError(t, err)
		assert.Contains(t, prompts[1], "Delete **Boss Week** (#5)?")
		assert.Equal(t, []string{"GetEvent", "DeleteEvent"}, svc.Trace())
		assert.Equal(t, "Deleted **Boss Week** (#5).", flow.Result())
	})

	t.Run("end declined", func(t *testing.T) {
		svc := &FakeService{GetEventFunc: getEvent(5)}
		flow := NewEnd(deps(svc), actor)
		_, _, err := drive(flow, "5", "no")
		require.NoError(t, err)
		assert.Equal(t, []string{"GetEvent"}, svc.Trace())
		assert.Equal(t, abortedMessage, flow.Result())
	})

	t.Run("dropped force update is reported", func(t *testing.T) {
		svc := &FakeService{
			GetEventFunc: getEvent(5),
			ForceUpdateFunc: func(context.Context, eventservice.Actor, int64) error {
				return eventservice.ErrForceUpdateDropped
			},
		}
		_, _, err := drive(NewForceUpdate(deps(svc), actor), "5")
		var failure *conversation.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, eventservice.ErrForceUpdateDropped.Error(), failure.Error())
	})

	t.Run("join skips the guild lookup", func(t *testing.T) {
		svc := &FakeService{
			JoinGlobalFunc: func(_ context.Context, _ eventservice.Actor, id int64) (*eventdomain.Event, error) { return storedEvent(id), nil },
		}
		flow := NewJoinGlobal(deps(svc), actor)
		_, _, err := drive(flow, "9")
		require.NoError(t, err)
		assert.Equal(t, []string{"JoinGlobal"}, svc.Trace())
	})

	t.Run("infrastructure errors are not user facing", func(t *testing.T) {
		svc := &FakeService{
			GetEventFunc: getEvent(5),
			UnsignupFunc: func(context.Context, eventservice.Actor, int64) (*eventdomain.Event, error) {
				return nil, errors.New("connection reset")
			},
		}
		_, _, err := drive(NewUnsignup(deps(svc), actor), "5", "yes")
		require.Error(t, err)
		var failure *conversation.Failure
		assert.False(t, errors.As(err, &failure))
	})
}

func TestList(t *testing.T) {
	global := storedEvent(3)
	global.Global = true
	global.Window = eventdomain.Window{Start: testNow.Add(-time.Hour), End: eventdomain.InfiniteEnd}
	svc := &FakeService{ListGuildEventsFunc: func(_ context.Context, guildID string) ([]*eventdomain.Event, error) {
		assert.Equal(t, "G1", guildID)
		return []*eventdomain.Event{storedEvent(2), global}, nil
	}}

	flow := NewList(deps(svc), actor)
	prompts, _, err := drive(flow)
	require.NoError(t, err)
	assert.Empty(t, prompts)
	assert.Equal(t,
		"`#2` **Boss Week** (scheduled) 2026-05-01 13:00 UTC to 2026-05-03 13:00 UTC\n"+
			"`#3` **Boss Week** (active) 2026-05-01 11:00 UTC to never [global]",
		flow.Result())

	empty := NewList(deps(&FakeService{ListGuildEventsFunc: func(context.Context, string) ([]*eventdomain.Event, error) { return nil, nil }}), actor)
	_, _, err = drive(empty)
	require.NoError(t, err)
	assert.Equal(t, "This server has no events.", empty.Result())
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"create", "SIGNUP", "unsignup", "score", "end", "delete", "lock", "unlock", "update", "join", "leave", "list"} {
		f, ok := Lookup(name)
		require.True(t, ok, name)
		assert.NotNil(t, f(deps(&FakeService{}), actor))
	}
	_, ok := Lookup("help")
	assert.False(t, ok)
}
