package eventservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventdb "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

// Boundary is one end of an event window.
type Boundary string

const (
	BoundaryStart Boundary = "start"
	BoundaryEnd   Boundary = "end"
)

// DefaultLookahead is how far ahead a rescan arms boundaries.
const DefaultLookahead = 25 * time.Hour

// DefaultRescanInterval is how often the scheduler looks for new boundaries.
const DefaultRescanInterval = 24 * time.Hour

// Scheduler arms one-shot triggers for event boundaries.
type Scheduler interface {
	// Arm schedules e's upcoming boundaries inside the lookahead. Boundaries that
	// are already armed for the same instant are left alone.
	Arm(ctx context.Context, e *eventdomain.Event) error
	// Disarm cancels every pending trigger for eventID.
	Disarm(ctx context.Context, eventID int64) error
	// Rescan arms every boundary falling inside the lookahead.
	Rescan(ctx context.Context) error
}

// FireFunc is called when a boundary armed for at comes due.
type FireFunc func(ctx context.Context, eventID int64, boundary Boundary, at time.Time) error

// Firer turns a due boundary into a will_start or will_end signal carrying the
// freshly reloaded event.
type Firer struct {
	repo      eventdb.Repository
	publisher Publisher
	logger    *slog.Logger
}

// NewFirer creates a Firer.
func NewFirer(repo eventdb.Repository, publisher Publisher, logger *slog.Logger) *Firer {
	return &Firer{repo: repo, publisher: publisher, logger: logger}
}

// Fire reloads the event and publishes the boundary signal, unless the event was
// deleted or its boundary moved since the trigger was armed.
func (f *Firer) Fire(ctx context.Context, eventID int64, boundary Boundary, at time.Time) error {
	e, err := f.repo.GetByID(ctx, nil, eventID)
	if errors.Is(err, eventdb.ErrNotFound) {
		f.logger.InfoContext(ctx, "Boundary fired for deleted event", slog.Int64("event_id", eventID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload event %d: %w", eventID, err)
	}

	topic := TopicWillStart
	current := e.Window.Start
	if boundary == BoundaryEnd {
		topic = TopicWillEnd
		current = e.Window.End
	}
	if !sameInstant(current, at) {
		f.logger.InfoContext(ctx, "Skipping stale boundary",
			slog.Int64("event_id", eventID),
			slog.String("boundary", string(boundary)),
			slog.Time("armed_for", at),
			slog.Time("current", current),
		)
		return nil
	}

	return f.publisher.Publish(ctx, topic, signalFor(e))
}

// BoundaryAt pairs a boundary with its instant.
type BoundaryAt struct {
	Boundary Boundary
	At       time.Time
}

// Boundaries returns e's start and end with their instants.
func Boundaries(e *eventdomain.Event) []BoundaryAt {
	return []BoundaryAt{
		{Boundary: BoundaryStart, At: e.Window.Start},
		{Boundary: BoundaryEnd, At: e.Window.End},
	}
}

func sameInstant(a, b time.Time) bool {
	d := a.Sub(b)
	return d > -time.Second && d < time.Second
}

type timerKey struct {
	eventID  int64
	boundary Boundary
}

type armedTimer struct {
	at    time.Time
	timer eventutil.Timer
}

// TimerScheduler keeps boundary triggers as in-process timers. Timers are lost on
// restart and recreated by the startup rescan.
type TimerScheduler struct {
	repo      eventdb.Repository
	clock     eventutil.Clock
	fire      FireFunc
	lookahead time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	armed map[timerKey]armedTimer
	ctx   context.Context
}

// NewTimerScheduler creates a TimerScheduler.
func NewTimerScheduler(repo eventdb.Repository, clock eventutil.Clock, fire FireFunc, lookahead time.Duration, logger *slog.Logger) *TimerScheduler {
	if clock == nil {
		clock = eventutil.RealClock{}
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &TimerScheduler{
		repo:      repo,
		clock:     clock,
		fire:      fire,
		lookahead: lookahead,
		logger:    logger,
		armed:     make(map[timerKey]armedTimer),
		ctx:       context.Background(),
	}
}

// Arm implements Scheduler.
func (s *TimerScheduler) Arm(_ context.Context, e *eventdomain.Event) error {
	if e.ID == nil {
		return errors.New("cannot arm an unsaved event")
	}
	now := s.clock.Now()
	for _, b := range Boundaries(e) {
		if !b.At.After(now) || b.At.Sub(now) > s.lookahead {
			continue
		}
		s.armOne(timerKey{eventID: *e.ID, boundary: b.Boundary}, b.At, now)
	}
	return nil
}

func (s *TimerScheduler) armOne(key timerKey, at, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.armed[key]; ok {
		if cur.at.Equal(at) {
			return
		}
		cur.timer.Stop()
	}

	s.armed[key] = armedTimer{
		at:    at,
		timer: s.clock.AfterFunc(at.Sub(now), func() { s.fired(key, at) }),
	}
	s.logger.Info("Armed event boundary",
		slog.Int64("event_id", key.eventID),
		slog.String("boundary", string(key.boundary)),
		slog.Time("at", at),
	)
}

func (s *TimerScheduler) fired(key timerKey, at time.Time) {
	s.mu.Lock()
	if cur, ok := s.armed[key]; ok && cur.at.Equal(at) {
		delete(s.armed, key)
	}
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.fire(ctx, key.eventID, key.boundary, at); err != nil {
		s.logger.ErrorContext(ctx, "Failed to fire event boundary",
			slog.Int64("event_id", key.eventID),
			slog.String("boundary", string(key.boundary)),
			slog.Any("error", err),
		)
	}
}

// Disarm implements Scheduler.
func (s *TimerScheduler) Disarm(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range []Boundary{BoundaryStart, BoundaryEnd} {
		key := timerKey{eventID: eventID, boundary: b}
		if cur, ok := s.armed[key]; ok {
			cur.timer.Stop()
			delete(s.armed, key)
		}
	}
	return nil
}

// Rescan implements Scheduler.
func (s *TimerScheduler) Rescan(ctx context.Context) error {
	now := s.clock.Now()
	events, err := s.repo.ListBetween(ctx, nil, now, now.Add(s.lookahead))
	if err != nil {
		return fmt.Errorf("failed to list upcoming events: %w", err)
	}
	for _, e := range events {
		if err := s.Arm(ctx, e); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "Rescanned event boundaries",
		slog.Int("events", len(events)),
		slog.Int("armed", s.Armed()),
	)
	return nil
}

// Armed reports how many timers are pending.
func (s *TimerScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// Run rescans immediately and then every interval until ctx is cancelled, at
// which point every pending timer is stopped.
func (s *TimerScheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRescanInterval
	}
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Rescan(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Startup rescan failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for key, cur := range s.armed {
				cur.timer.Stop()
				delete(s.armed, key)
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			if err := s.Rescan(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Rescan failed", slog.Any("error", err))
			}
		}
	}
}
