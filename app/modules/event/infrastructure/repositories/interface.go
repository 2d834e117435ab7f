package eventdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Repository persists events. Every method accepts an optional bun.IDB so callers
// can run it inside a transaction; nil uses the default connection.
//
// Error semantics:
//   - ErrNotFound: no event with that id
//   - ErrInvariantViolated: the event breaks a structural invariant and was not written
//   - anything else is an infrastructure failure
type Repository interface {
	// Upsert inserts a new event (nil ID) or replaces an existing one, returning it with its ID.
	Upsert(ctx context.Context, db bun.IDB, e *eventdomain.Event) (*eventdomain.Event, error)

	// GetByID loads one event.
	GetByID(ctx context.Context, db bun.IDB, id int64) (*eventdomain.Event, error)

	// ListByGuild lists events the guild created or joined, newest start first.
	ListByGuild(ctx context.Context, db bun.IDB, guildID string) ([]*eventdomain.Event, error)

	// ListRunning lists events active at now.
	ListRunning(ctx context.Context, db bun.IDB, now time.Time) ([]*eventdomain.Event, error)

	// ListBetween lists events whose start or end falls in [from, to].
	ListBetween(ctx context.Context, db bun.IDB, from, to time.Time) ([]*eventdomain.Event, error)

	// Delete removes an event.
	Delete(ctx context.Context, db bun.IDB, id int64) error
}
