package eventservice

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

var (
	actorG1 = Actor{UserID: "U1", GuildID: "G1", ChannelID: "C1"}
	actorG2 = Actor{UserID: "U2", GuildID: "G2", ChannelID: "C2"}
)

type harness struct {
	svc   *EventService
	repo  *FakeRepository
	stats *FakeStats
	chat  *FakeChat
	pub   *FakePublisher
	sched *FakeScheduler
	clock *eventutil.FakeClock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:  NewFakeRepository(),
		stats: &FakeStats{},
		chat:  NewFakeChat(),
		pub:   &FakePublisher{},
		sched: &FakeScheduler{},
		clock: eventutil.NewFakeClock(testNow),
	}
	h.svc = NewEventService(
		h.repo, h.stats, h.chat, h.pub, h.sched, h.clock,
		discardLogger(), nil, noop.NewTracerProvider().Tracer("test"), nil, DefaultConfig(),
	)
	return h
}

// event builds a skills event owned by G1 over [start, end) relative to testNow.
func event(start, end time.Duration) *eventdomain.Event {
	return &eventdomain.Event{
		Name:     "Attack Race",
		Window:   eventdomain.Window{Start: testNow.Add(start), End: testNow.Add(end)},
		Guilds:   eventdomain.Guilds{Creator: eventdomain.GuildRef{GuildID: "G1", ChannelID: "C1"}},
		Tracking: eventdomain.Tracking{Category: eventdomain.CategorySkills, What: []string{"attack"}},
	}
}

func withTeam(e *eventdomain.Event, name string, participants ...eventdomain.Participant) *eventdomain.Event {
	e.Teams = append(e.Teams, eventdomain.Team{Name: name, Participants: participants})
	return e
}

func participant(userID string, rsns ...string) eventdomain.Participant {
	p := eventdomain.Participant{UserID: userID}
	for _, rsn := range rsns {
		p.Accounts = append(p.Accounts, eventdomain.Account{RSN: rsn})
	}
	return p
}

func xpOf(s *eventdomain.Snapshot) int64 {
	st, _ := s.Lookup(eventdomain.CategorySkills, "attack")
	return st.XP
}
