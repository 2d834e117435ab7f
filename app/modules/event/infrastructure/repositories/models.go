package eventdb

import (
	"time"

	"github.com/uptrace/bun"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Event is the persisted form of an event. Nested state lives in jsonb columns;
// guild_ids duplicates every participating guild for indexed lookups.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          int64                `bun:"id,pk,autoincrement"`
	Name        string               `bun:"name,notnull"`
	StartAt     time.Time            `bun:"start_at,notnull"`
	EndAt       time.Time            `bun:"end_at,notnull"`
	Global      bool                 `bun:"global,notnull,default:false"`
	AdminLocked bool                 `bun:"admin_locked,notnull,default:false"`
	GuildIDs    []string             `bun:"guild_ids,array,notnull"`
	Guilds      eventdomain.Guilds   `bun:"guilds,type:jsonb,notnull"`
	Teams       []eventdomain.Team   `bun:"teams,type:jsonb,notnull"`
	Tracking    eventdomain.Tracking `bun:"tracking,type:jsonb,notnull"`
	CreatedAt   time.Time            `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time            `bun:"updated_at,notnull,default:current_timestamp"`
}

func fromDomain(e *eventdomain.Event) *Event {
	row := &Event{
		ID:          e.IDValue(),
		Name:        e.Name,
		StartAt:     e.Window.Start.UTC(),
		EndAt:       e.Window.End.UTC(),
		Global:      e.Global,
		AdminLocked: e.AdminLocked,
		Guilds:      e.Guilds,
		Teams:       e.Teams,
		Tracking:    e.Tracking,
	}
	if row.Teams == nil {
		row.Teams = []eventdomain.Team{}
	}
	for _, g := range e.Guilds.All() {
		row.GuildIDs = append(row.GuildIDs, g.GuildID)
	}
	return row
}

func (r *Event) toDomain() *eventdomain.Event {
	id := r.ID
	e := &eventdomain.Event{
		ID:          &id,
		Name:        r.Name,
		Window:      eventdomain.Window{Start: r.StartAt.UTC(), End: r.EndAt.UTC()},
		Guilds:      r.Guilds,
		Teams:       r.Teams,
		Tracking:    r.Tracking,
		AdminLocked: r.AdminLocked,
		Global:      r.Global,
	}
	if len(e.Teams) == 0 {
		e.Teams = nil
	}
	return e
}
