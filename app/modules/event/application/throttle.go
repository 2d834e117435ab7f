package eventservice

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

// throttlePruneThreshold is the map size above which idle limiters are dropped.
const throttlePruneThreshold = 500

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle allows at most one request per window for each event id. Requests
// inside the window are dropped, not queued.
type Throttle struct {
	mu       sync.Mutex
	limiters map[int64]*throttleEntry
	window   time.Duration
	clock    eventutil.Clock
}

// NewThrottle creates a Throttle with one token per window and a burst of one.
func NewThrottle(window time.Duration, clock eventutil.Clock) *Throttle {
	if clock == nil {
		clock = eventutil.RealClock{}
	}
	return &Throttle{
		limiters: make(map[int64]*throttleEntry),
		window:   window,
		clock:    clock,
	}
}

// Allow reports whether a request for eventID may go ahead now.
func (t *Throttle) Allow(eventID int64) bool {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.limiters) > throttlePruneThreshold {
		cutoff := now.Add(-t.window)
		for id, e := range t.limiters {
			if e.lastSeen.Before(cutoff) {
				delete(t.limiters, id)
			}
		}
	}

	e, ok := t.limiters[eventID]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(rate.Every(t.window), 1)}
		t.limiters[eventID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
