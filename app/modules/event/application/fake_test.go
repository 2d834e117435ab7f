package eventservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventdb "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories"
)

// FakeRepository is an in-memory Repository. Any ...Func field overrides the
// default behavior.
type FakeRepository struct {
	mu     sync.Mutex
	rows   map[int64]*eventdomain.Event
	nextID int64
	trace  []string

	GetByIDFunc     func(ctx context.Context, db bun.IDB, id int64) (*eventdomain.Event, error)
	UpsertFunc      func(ctx context.Context, db bun.IDB, e *eventdomain.Event) (*eventdomain.Event, error)
	ListBetweenFunc func(ctx context.Context, db bun.IDB, from, to time.Time) ([]*eventdomain.Event, error)
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{rows: make(map[int64]*eventdomain.Event)}
}

func (f *FakeRepository) record(op string) {
	f.trace = append(f.trace, op)
}

// Trace returns the operations performed, in order.
func (f *FakeRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Put stores e directly, assigning an ID when it has none.
func (f *FakeRepository) Put(e *eventdomain.Event) *eventdomain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(e)
}

func (f *FakeRepository) putLocked(e *eventdomain.Event) *eventdomain.Event {
	stored := e.Clone()
	if stored.ID == nil {
		f.nextID++
		id := f.nextID
		stored.ID = &id
	}
	f.rows[*stored.ID] = stored
	return stored.Clone()
}

// Get returns the stored copy of id, or nil.
func (f *FakeRepository) Get(id int64) *eventdomain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.rows[id]; ok {
		return e.Clone()
	}
	return nil
}

func (f *FakeRepository) Upsert(ctx context.Context, db bun.IDB, e *eventdomain.Event) (*eventdomain.Event, error) {
	f.mu.Lock()
	f.record(fmt.Sprintf("Upsert:%d", e.IDValue()))
	f.mu.Unlock()
	if f.UpsertFunc != nil {
		return f.UpsertFunc(ctx, db, e)
	}
	if v := e.ValidateStructure(); len(v) > 0 {
		return nil, eventdb.ErrInvariantViolated
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID != nil {
		if _, ok := f.rows[*e.ID]; !ok {
			return nil, eventdb.ErrNotFound
		}
	}
	return f.putLocked(e), nil
}

func (f *FakeRepository) GetByID(ctx context.Context, db bun.IDB, id int64) (*eventdomain.Event, error) {
	f.mu.Lock()
	f.record(fmt.Sprintf("GetByID:%d", id))
	f.mu.Unlock()
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, db, id)
	}
	if e := f.Get(id); e != nil {
		return e, nil
	}
	return nil, eventdb.ErrNotFound
}

func (f *FakeRepository) ListByGuild(_ context.Context, _ bun.IDB, guildID string) ([]*eventdomain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*eventdomain.Event
	for _, e := range f.rows {
		if e.Guilds.Contains(guildID) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (f *FakeRepository) ListRunning(_ context.Context, _ bun.IDB, now time.Time) ([]*eventdomain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*eventdomain.Event
	for _, e := range f.rows {
		if e.Status(now) == eventdomain.StatusActive {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (f *FakeRepository) ListBetween(ctx context.Context, db bun.IDB, from, to time.Time) ([]*eventdomain.Event, error) {
	if f.ListBetweenFunc != nil {
		return f.ListBetweenFunc(ctx, db, from, to)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	in := func(t time.Time) bool { return !t.Before(from) && !t.After(to) }
	var out []*eventdomain.Event
	for _, e := range f.rows {
		if in(e.Window.Start) || in(e.Window.End) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (f *FakeRepository) Delete(_ context.Context, _ bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("Delete:%d", id))
	if _, ok := f.rows[id]; !ok {
		return eventdb.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

var _ eventdb.Repository = (*FakeRepository)(nil)

// FakeStats serves snapshots from FetchFunc, or a fixed attack XP of 100 per call.
type FakeStats struct {
	mu    sync.Mutex
	calls []string
	force []bool

	FetchFunc func(ctx context.Context, rsn string, force bool) statsource.Result
}

func (f *FakeStats) Fetch(ctx context.Context, rsn string, force bool) statsource.Result {
	f.mu.Lock()
	f.calls = append(f.calls, rsn)
	f.force = append(f.force, force)
	f.mu.Unlock()
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, rsn, force)
	}
	return statsource.Result{Snapshot: attackSnapshot(100)}
}

func (f *FakeStats) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeStats) Forced() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.force...)
}

func attackSnapshot(xp int64) *eventdomain.Snapshot {
	return &eventdomain.Snapshot{eventdomain.CategorySkills: {"attack": {XP: xp}}}
}

type sentMessage struct {
	ChannelID   string
	Text        string
	Attachments []Attachment
}

// FakeChat records posts and deletions. Messages it has posted and not deleted
// are reported by Fetch.
type FakeChat struct {
	mu      sync.Mutex
	nextID  int
	live    map[string]bool
	sent    []sentMessage
	deleted []string

	SendFunc         func(ctx context.Context, channelID, text string, opts SendOptions) ([]eventdomain.MessageRef, error)
	DisplayNamesFunc func(ctx context.Context, guildID string, userIDs []string) ([]string, error)
}

func NewFakeChat() *FakeChat {
	return &FakeChat{live: make(map[string]bool)}
}

func (f *FakeChat) Send(ctx context.Context, channelID, text string, opts SendOptions) ([]eventdomain.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Text: text, Attachments: opts.Attachments})
	f.mu.Unlock()
	if f.SendFunc != nil {
		return f.SendFunc(ctx, channelID, text, opts)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("M%d", f.nextID)
	f.live[id] = true
	return []eventdomain.MessageRef{{ChannelID: channelID, MessageID: id}}, nil
}

func (f *FakeChat) Delete(_ context.Context, ref eventdomain.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref.MessageID)
	delete(f.live, ref.MessageID)
	return nil
}

func (f *FakeChat) Fetch(_ context.Context, ref eventdomain.MessageRef) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[ref.MessageID] {
		return nil, nil
	}
	return &Message{Ref: ref}, nil
}

func (f *FakeChat) DisplayNames(ctx context.Context, guildID string, userIDs []string) ([]string, error) {
	if f.DisplayNamesFunc != nil {
		return f.DisplayNamesFunc(ctx, guildID, userIDs)
	}
	out := make([]string, len(userIDs))
	for i, id := range userIDs {
		out[i] = "name-" + id
	}
	return out, nil
}

func (f *FakeChat) GuildName(_ context.Context, guildID string) (string, error) {
	return "guild-" + guildID, nil
}

func (f *FakeChat) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *FakeChat) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

var _ Chat = (*FakeChat)(nil)

type published struct {
	Topic  string
	Signal Signal
}

// FakePublisher records every signal.
type FakePublisher struct {
	mu      sync.Mutex
	signals []published
}

func (f *FakePublisher) Publish(_ context.Context, topic string, sig Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, published{Topic: topic, Signal: sig})
	return nil
}

func (f *FakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.signals))
	for i, p := range f.signals {
		out[i] = p.Topic
	}
	return out
}

func (f *FakePublisher) Find(topic string) (Signal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.signals {
		if p.Topic == topic {
			return p.Signal, true
		}
	}
	return Signal{}, false
}

// FakeScheduler records Arm and Disarm calls.
type FakeScheduler struct {
	mu       sync.Mutex
	armed    []int64
	disarmed []int64
}

func (f *FakeScheduler) Arm(_ context.Context, e *eventdomain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = append(f.armed, e.IDValue())
	return nil
}

func (f *FakeScheduler) Disarm(_ context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disarmed = append(f.disarmed, eventID)
	return nil
}

func (f *FakeScheduler) Rescan(context.Context) error { return nil }

func (f *FakeScheduler) Disarmed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.disarmed...)
}

func (f *FakeScheduler) Armed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.armed...)
}

var _ Scheduler = (*FakeScheduler)(nil)

// FakeRouter records handler registrations.
type FakeRouter struct {
	handlers map[string]SignalHandler
}

func (f *FakeRouter) Handle(topic string, h SignalHandler) {
	if f.handlers == nil {
		f.handlers = make(map[string]SignalHandler)
	}
	f.handlers[topic] = h
}
