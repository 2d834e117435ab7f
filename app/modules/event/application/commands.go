package eventservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	"github.com/Black-And-White-Club/osrs-event-bot/pkg/results"
)

type eventResult = results.OperationResult[*eventdomain.Event, error]

func idString(id int64) string { return strconv.FormatInt(id, 10) }

// CreateEvent validates and stores a new event owned by the actor's guild.
func (s *EventService) CreateEvent(ctx context.Context, actor Actor, req CreateEventRequest) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "CreateEvent", actor.GuildID, func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			return s.createEventLogic(ctx, db, actor, req)
		})
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, TopicDidAdd, signalFor(saved))
	return saved, nil
}

func (s *EventService) createEventLogic(ctx context.Context, db bun.IDB, actor Actor, req CreateEventRequest) (eventResult, error) {
	e := &eventdomain.Event{
		Name: strings.TrimSpace(req.Name),
		Window: eventdomain.Window{
			Start: req.Start.UTC(),
			End:   req.End.UTC(),
		},
		Guilds: eventdomain.Guilds{
			Creator: eventdomain.GuildRef{GuildID: actor.GuildID, ChannelID: actor.ChannelID},
		},
		Tracking: eventdomain.Tracking{Category: req.Category, What: req.What},
		Global:   req.Global,
	}
	if violations := e.Validate(s.clock.Now()); len(violations) > 0 {
		return classify[*eventdomain.Event](&ValidationError{Violations: violations})
	}

	s.emit(ctx, TopicWillAdd, Signal{Event: e, UserID: actor.UserID})
	saved, err := s.save(ctx, db, e)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}
	return results.SuccessResult[*eventdomain.Event, error](saved), nil
}

// Signup verifies rsn against the hiscores and adds it to the actor's team.
func (s *EventService) Signup(ctx context.Context, actor Actor, eventID int64, rsn, team string) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "Signup", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return s.signupLogic(ctx, actor, eventID, rsn, team)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, TopicDidSignup, Signal{EventID: eventID, Event: saved, UserID: actor.UserID})
	s.RequestUpdate(ctx, Signal{EventID: eventID})
	return saved, nil
}

func (s *EventService) signupLogic(ctx context.Context, actor Actor, eventID int64, rsn, team string) (eventResult, error) {
	// Cheap checks first so obviously invalid signups never reach the hiscores.
	e, err := s.loadForGuild(ctx, nil, eventID, actor.GuildID)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}
	if _, err := e.Signup(s.clock.Now(), actor.UserID, actor.GuildID, rsn, team); err != nil {
		return classify[*eventdomain.Event](err)
	}

	fetched := s.stats.Fetch(ctx, rsn, false)
	if fetched.Unavailable() {
		switch {
		case errors.Is(fetched.Err, statsource.ErrPlayerNotFound):
			return classify[*eventdomain.Event](statsource.ErrPlayerNotFound)
		case errors.Is(fetched.Err, statsource.ErrInvalidName):
			return classify[*eventdomain.Event](statsource.ErrInvalidName)
		default:
			return classify[*eventdomain.Event](ErrPlayerUnavailable)
		}
	}

	s.emit(ctx, TopicWillSignup, Signal{EventID: eventID, Event: e, UserID: actor.UserID})

	return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
		latest, err := s.loadForGuild(ctx, db, eventID, actor.GuildID)
		if err != nil {
			return classify[*eventdomain.Event](err)
		}
		now := s.clock.Now()
		next, err := latest.Signup(now, actor.UserID, actor.GuildID, rsn, team)
		if err != nil {
			return classify[*eventdomain.Event](err)
		}
		if next.Started(now) {
			// Joining late: score only what is gained from now on.
			seedAccount(next, rsn, fetched.Snapshot)
		}
		saved, err := s.save(ctx, db, next)
		if err != nil {
			return classify[*eventdomain.Event](err)
		}
		return results.SuccessResult[*eventdomain.Event, error](saved), nil
	})
}

// seedAccount sets both snapshots of rsn's account to snap.
func seedAccount(e *eventdomain.Event, rsn string, snap *eventdomain.Snapshot) {
	key := eventdomain.NormalizeRSN(rsn)
	for ti := range e.Teams {
		for pi := range e.Teams[ti].Participants {
			accounts := e.Teams[ti].Participants[pi].Accounts
			for ai := range accounts {
				if eventdomain.NormalizeRSN(accounts[ai].RSN) == key {
					accounts[ai].Starting = snap.Clone()
					accounts[ai].Ending = snap.Clone()
					return
				}
			}
		}
	}
}

// Unsignup removes the actor from the event.
func (s *EventService) Unsignup(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "Unsignup", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			return s.mutate(ctx, db, eventID, actor.GuildID, func(e *eventdomain.Event) (*eventdomain.Event, error) {
				next, err := e.Unsignup(actor.UserID)
				if err == nil {
					s.emit(ctx, TopicWillUnsignup, Signal{EventID: eventID, Event: e, UserID: actor.UserID})
				}
				return next, err
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, TopicDidUnsignup, Signal{EventID: eventID, Event: saved, UserID: actor.UserID})
	s.RequestUpdate(ctx, Signal{EventID: eventID})
	return saved, nil
}

// AddScore adjusts userID's manual score by delta.
func (s *EventService) AddScore(ctx context.Context, actor Actor, eventID int64, userID string, delta int64) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "AddScore", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			return s.mutate(ctx, db, eventID, actor.GuildID, func(e *eventdomain.Event) (*eventdomain.Event, error) {
				next, ok := e.AddCustomScore(userID, delta)
				if !ok {
					return nil, eventdomain.ErrNotSignedUp
				}
				return next, nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.RequestUpdate(ctx, Signal{EventID: eventID})
	return saved, nil
}

// EndEvent ends a running event now and runs the final update.
func (s *EventService) EndEvent(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "EndEvent", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			return s.mutate(ctx, db, eventID, actor.GuildID, func(e *eventdomain.Event) (*eventdomain.Event, error) {
				now := s.clock.Now()
				switch e.Status(now) {
				case eventdomain.StatusScheduled:
					return nil, eventdomain.ErrNotStarted
				case eventdomain.StatusEnded:
					return nil, eventdomain.ErrEventEnded
				}
				return e.End(now), nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	if err := s.scheduler.Disarm(ctx, eventID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to disarm ended event", attrEventID(eventID), attrError(err))
	}
	s.emit(ctx, TopicWillEnd, signalFor(saved))
	return saved, nil
}

// DeleteEvent removes an event that has not started along with its scoreboards.
func (s *EventService) DeleteEvent(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error) {
	deleted, err := execute(s, ctx, "DeleteEvent", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			e, err := s.loadForGuild(ctx, db, eventID, actor.GuildID)
			if err != nil {
				return classify[*eventdomain.Event](err)
			}
			if err := e.CanDelete(s.clock.Now()); err != nil {
				return classify[*eventdomain.Event](err)
			}
			s.emit(ctx, TopicWillDelete, signalFor(e))
			if err := s.repo.Delete(ctx, db, eventID); err != nil {
				return classify[*eventdomain.Event](fmt.Errorf("failed to delete event: %w", err))
			}
			return results.SuccessResult[*eventdomain.Event, error](e), nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, g := range deleted.Guilds.All() {
		s.deleteMessages(ctx, g.Scoreboard)
	}
	s.emit(ctx, TopicDidDelete, signalFor(deleted))
	return deleted, nil
}

// SetLocked locks or unlocks signups on a standard event.
func (s *EventService) SetLocked(ctx context.Context, actor Actor, eventID int64, locked bool) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "SetLocked", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			return s.mutate(ctx, db, eventID, actor.GuildID, func(e *eventdomain.Event) (*eventdomain.Event, error) {
				next, ok := e.Unlock()
				if locked {
					next, ok = e.Lock()
				}
				if !ok {
					return nil, ErrNotLockable
				}
				return next, nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.RequestUpdate(ctx, Signal{EventID: eventID})
	return saved, nil
}

// JoinGlobal adds the actor's guild to a global event, posting its scoreboard in
// the actor's channel.
func (s *EventService) JoinGlobal(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error) {
	saved, err := execute(s, ctx, "JoinGlobal", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			e, err := s.load(ctx, db, eventID)
			if err != nil {
				return classify[*eventdomain.Event](err)
			}
			next, err := e.JoinGuild(s.clock.Now(), eventdomain.GuildRef{GuildID: actor.GuildID, ChannelID: actor.ChannelID})
			if err != nil {
				return classify[*eventdomain.Event](err)
			}
			saved, err := s.save(ctx, db, next)
			if err != nil {
				return classify[*eventdomain.Event](err)
			}
			return results.SuccessResult[*eventdomain.Event, error](saved), nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.RequestUpdate(ctx, Signal{EventID: eventID})
	return saved, nil
}

// LeaveGlobal removes the actor's guild and its teams from a global event.
func (s *EventService) LeaveGlobal(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error) {
	var left eventdomain.GuildRef
	saved, err := execute(s, ctx, "LeaveGlobal", idString(eventID), func(ctx context.Context) (eventResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
			return s.mutate(ctx, db, eventID, actor.GuildID, func(e *eventdomain.Event) (*eventdomain.Event, error) {
				next, ref, err := e.LeaveGuild(s.clock.Now(), actor.GuildID)
				left = ref
				return next, err
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.deleteMessages(ctx, left.Scoreboard)
	s.RequestUpdate(ctx, Signal{EventID: eventID})
	return saved, nil
}

// ForceUpdate asks for an immediate forced refresh. At most one request per
// event is accepted per window; the rest get ErrForceUpdateDropped.
func (s *EventService) ForceUpdate(ctx context.Context, actor Actor, eventID int64) error {
	_, err := execute(s, ctx, "ForceUpdate", idString(eventID), func(ctx context.Context) (eventResult, error) {
		e, err := s.loadForGuild(ctx, nil, eventID, actor.GuildID)
		if err != nil {
			return classify[*eventdomain.Event](err)
		}
		if !s.throttle.Allow(eventID) {
			return classify[*eventdomain.Event](ErrForceUpdateDropped)
		}
		s.emit(ctx, TopicWillForceUpdate, Signal{EventID: eventID, Event: e, UserID: actor.UserID})
		return results.SuccessResult[*eventdomain.Event, error](e), nil
	})
	return err
}

// GetEvent returns one event of the actor's guild.
func (s *EventService) GetEvent(ctx context.Context, actor Actor, eventID int64) (*eventdomain.Event, error) {
	return execute(s, ctx, "GetEvent", idString(eventID), func(ctx context.Context) (eventResult, error) {
		e, err := s.loadForGuild(ctx, nil, eventID, actor.GuildID)
		if err != nil {
			return classify[*eventdomain.Event](err)
		}
		return results.SuccessResult[*eventdomain.Event, error](e), nil
	})
}

// ListGuildEvents lists the events guildID created or joined.
func (s *EventService) ListGuildEvents(ctx context.Context, guildID string) ([]*eventdomain.Event, error) {
	return execute(s, ctx, "ListGuildEvents", guildID, func(ctx context.Context) (results.OperationResult[[]*eventdomain.Event, error], error) {
		events, err := s.repo.ListByGuild(ctx, nil, guildID)
		if err != nil {
			return results.OperationResult[[]*eventdomain.Event, error]{}, fmt.Errorf("failed to list events: %w", err)
		}
		return results.SuccessResult[[]*eventdomain.Event, error](events), nil
	})
}

// mutate reloads the event, applies fn and persists the result.
func (s *EventService) mutate(
	ctx context.Context,
	db bun.IDB,
	eventID int64,
	guildID string,
	fn func(e *eventdomain.Event) (*eventdomain.Event, error),
) (eventResult, error) {
	e, err := s.loadForGuild(ctx, db, eventID, guildID)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}
	next, err := fn(e)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}
	saved, err := s.save(ctx, db, next)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}
	return results.SuccessResult[*eventdomain.Event, error](saved), nil
}
