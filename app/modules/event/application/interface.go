package eventservice

import (
	"context"
	"time"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Actor identifies who issued a command and where.
type Actor struct {
	UserID    string
	GuildID   string
	ChannelID string
}

// CreateEventRequest holds the answers collected by the create flow.
type CreateEventRequest struct {
	Name     string
	Start    time.Time
	End      time.Time
	Category eventdomain.Category
	What     []string
	Global   bool
}

// Service is the command surface used by conversations.
//
// Error semantics: domain failures (eventdomain sentinels, ErrEventNotFound,
// ErrForceUpdateDropped, ErrNotLockable, ErrPlayerUnavailable, *ValidationError)
// come back unwrapped and their text is meant for users. Anything else is an
// infrastructure failure.
type Service interface {
	CreateEvent(ctx context.Context, actor Actor, req CreateEventRequest) (*eventdomain.Event, error)
	Signup(ctx context.Context, actor Actor, eventID int64, rsn, team string) (*eventdomain.Event, error)
	Unsignup(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error)
	AddScore(ctx context.Context, actor Actor, eventID int64, userID string, delta int64) (*eventdomain.Event, error)
	EndEvent(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error)
	DeleteEvent(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error)
	SetLocked(ctx context.Context, actor Actor, eventID int64, locked bool) (*eventdomain.Event, error)
	JoinGlobal(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error)
	LeaveGlobal(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error)
	ForceUpdate(ctx context.Context, actor Actor, eventID int64) error
	GetEvent(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error)
	ListGuildEvents(ctx context.Context, guildID string) ([]*eventdomain.Event, error)
}

var _ Service = (*EventService)(nil)
