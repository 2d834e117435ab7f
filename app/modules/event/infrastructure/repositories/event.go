package eventdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

var (
	// ErrNotFound is returned when an event does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrInvariantViolated is returned when a write would store an invalid event.
	ErrInvariantViolated = errors.New("event violates a structural invariant")
)

// Impl implements Repository using Bun.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new event repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// Upsert writes e and returns the stored copy.
func (r *Impl) Upsert(ctx context.Context, db bun.IDB, e *eventdomain.Event) (*eventdomain.Event, error) {
	db = r.resolveDB(db)
	if v := e.ValidateStructure(); len(v) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvariantViolated, joinViolations(v))
	}

	row := fromDomain(e)
	row.UpdatedAt = time.Now().UTC()

	if e.ID == nil {
		row.CreatedAt = row.UpdatedAt
		_, err := db.NewInsert().
			Model(row).
			ExcludeColumn("id").
			Returning("id").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to insert event: %w", err)
		}
		return row.toDomain(), nil
	}

	res, err := db.NewUpdate().
		Model(row).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return row.toDomain(), nil
}

// GetByID retrieves an event by its ID.
func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id int64) (*eventdomain.Event, error) {
	db = r.resolveDB(db)
	row := new(Event)
	err := db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}
	return row.toDomain(), nil
}

// ListByGuild lists events a guild takes part in.
func (r *Impl) ListByGuild(ctx context.Context, db bun.IDB, guildID string) ([]*eventdomain.Event, error) {
	var rows []Event
	err := r.resolveDB(db).NewSelect().
		Model(&rows).
		Where("? = ANY(guild_ids)", guildID).
		Order("start_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by guild: %w", err)
	}
	return toDomainList(rows), nil
}

// ListRunning lists events whose window contains now.
func (r *Impl) ListRunning(ctx context.Context, db bun.IDB, now time.Time) ([]*eventdomain.Event, error) {
	var rows []Event
	err := r.resolveDB(db).NewSelect().
		Model(&rows).
		Where("start_at <= ?", now.UTC()).
		Where("end_at > ?", now.UTC()).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running events: %w", err)
	}
	return toDomainList(rows), nil
}

// ListBetween lists events with a boundary inside [from, to].
func (r *Impl) ListBetween(ctx context.Context, db bun.IDB, from, to time.Time) ([]*eventdomain.Event, error) {
	var rows []Event
	err := r.resolveDB(db).NewSelect().
		Model(&rows).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("start_at BETWEEN ? AND ?", from.UTC(), to.UTC()).
				WhereOr("end_at BETWEEN ? AND ?", from.UTC(), to.UTC())
		}).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events between dates: %w", err)
	}
	return toDomainList(rows), nil
}

// Delete removes an event by ID.
func (r *Impl) Delete(ctx context.Context, db bun.IDB, id int64) error {
	res, err := r.resolveDB(db).NewDelete().
		Model((*Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func toDomainList(rows []Event) []*eventdomain.Event {
	out := make([]*eventdomain.Event, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out
}

func joinViolations(v []eventdomain.Violation) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = string(x)
	}
	return strings.Join(s, ", ")
}
