// Package eventdomain holds the event entity graph and the rules for mutating it.
//
// Every mutator is copy-on-write: it returns a fresh *Event and never touches the
// receiver, so callers holding an older reference keep a consistent view.
package eventdomain

import (
	"strings"
	"time"
)

// InfiniteEnd marks a long-running event that never ends on its own.
var InfiniteEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Status is derived from the window and never stored.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
)

// Event is a time-boxed competition between teams of players.
type Event struct {
	ID          *int64   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Window      Window   `json:"window"`
	Guilds      Guilds   `json:"guilds"`
	Teams       []Team   `json:"teams"`
	Tracking    Tracking `json:"tracking"`
	AdminLocked bool     `json:"admin_locked"`
	Global      bool     `json:"global"`
}

// Window is the [Start, End) interval during which scores count.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Guilds lists the creator guild and, for global events, the invited ones.
type Guilds struct {
	Creator GuildRef   `json:"creator"`
	Others  []GuildRef `json:"others,omitempty"`
}

// All returns the creator first, then the others in join order.
func (g Guilds) All() []GuildRef {
	out := make([]GuildRef, 0, 1+len(g.Others))
	out = append(out, g.Creator)
	return append(out, g.Others...)
}

// Contains reports whether guildID takes part in the event.
func (g Guilds) Contains(guildID string) bool {
	if g.Creator.GuildID == guildID {
		return true
	}
	for _, o := range g.Others {
		if o.GuildID == guildID {
			return true
		}
	}
	return false
}

// GuildRef is a participating guild and where its scoreboard is posted.
type GuildRef struct {
	GuildID    string       `json:"guild_id"`
	ChannelID  string       `json:"channel_id"`
	Scoreboard []MessageRef `json:"scoreboard,omitempty"`
}

// MessageRef locates a posted chat message.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Team is an ordered group of participants.
type Team struct {
	Name         string        `json:"name"`
	GuildID      string        `json:"guild_id,omitempty"`
	Participants []Participant `json:"participants"`
}

// Participant is a chat user with one or more game accounts.
type Participant struct {
	UserID      string    `json:"user_id"`
	CustomScore int64     `json:"custom_score"`
	Accounts    []Account `json:"accounts"`
}

// Account is a tracked game account with its boundary snapshots.
type Account struct {
	RSN      string    `json:"rsn"`
	Starting *Snapshot `json:"starting,omitempty"`
	Ending   *Snapshot `json:"ending,omitempty"`
}

// Snapshot is a captured set of hiscore values keyed by category then metric.
type Snapshot map[Category]map[string]Stat

// Stat is one hiscore row. Skills populate XP and Level, everything else Score.
type Stat struct {
	Rank  int64 `json:"rank"`
	Level int64 `json:"level,omitempty"`
	XP    int64 `json:"xp,omitempty"`
	Score int64 `json:"score,omitempty"`
}

// Lookup returns the stat for category/metric and whether it was present.
func (s *Snapshot) Lookup(category Category, metric string) (Stat, bool) {
	if s == nil {
		return Stat{}, false
	}
	metrics, ok := (*s)[category]
	if !ok {
		return Stat{}, false
	}
	st, ok := metrics[metric]
	return st, ok
}

// Status derives the lifecycle state at now.
func (e *Event) Status(now time.Time) Status {
	switch {
	case now.Before(e.Window.Start):
		return StatusScheduled
	case !now.Before(e.Window.End):
		return StatusEnded
	default:
		return StatusActive
	}
}

// Started reports whether now is at or after the start.
func (e *Event) Started(now time.Time) bool { return !now.Before(e.Window.Start) }

// Infinite reports whether the event uses the long-running sentinel end.
func (e *Event) Infinite() bool { return !e.Window.End.Before(InfiniteEnd) }

// IDValue returns the persisted id or 0 when the event is not yet created.
func (e *Event) IDValue() int64 {
	if e.ID == nil {
		return 0
	}
	return *e.ID
}

// FindParticipant returns the team and participant index of userID.
func (e *Event) FindParticipant(userID string) (team, participant int, ok bool) {
	for ti, t := range e.Teams {
		for pi, p := range t.Participants {
			if p.UserID == userID {
				return ti, pi, true
			}
		}
	}
	return -1, -1, false
}

// FindTeam returns the index of the team with the given name, compared case-insensitively.
func (e *Event) FindTeam(name string) (int, bool) {
	for i, t := range e.Teams {
		if strings.EqualFold(t.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// HasRSN reports whether any account in the event already tracks rsn.
func (e *Event) HasRSN(rsn string) bool {
	key := NormalizeRSN(rsn)
	for _, t := range e.Teams {
		for _, p := range t.Participants {
			for _, a := range p.Accounts {
				if NormalizeRSN(a.RSN) == key {
					return true
				}
			}
		}
	}
	return false
}

// RSNs lists every tracked account name in team, participant, account order.
func (e *Event) RSNs() []string {
	var out []string
	for _, t := range e.Teams {
		for _, p := range t.Participants {
			for _, a := range p.Accounts {
				out = append(out, a.RSN)
			}
		}
	}
	return out
}

// NormalizeRSN folds the cosmetic differences the hiscores ignore: case,
// surrounding space, and '_' or '-' used in place of a space.
func NormalizeRSN(rsn string) string {
	s := strings.ToLower(strings.TrimSpace(rsn))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.ID != nil {
		id := *e.ID
		c.ID = &id
	}
	c.Guilds.Creator = e.Guilds.Creator.clone()
	if e.Guilds.Others != nil {
		c.Guilds.Others = make([]GuildRef, len(e.Guilds.Others))
		for i, g := range e.Guilds.Others {
			c.Guilds.Others[i] = g.clone()
		}
	}
	if e.Teams != nil {
		c.Teams = make([]Team, len(e.Teams))
		for i, t := range e.Teams {
			c.Teams[i] = t.clone()
		}
	}
	if e.Tracking.What != nil {
		c.Tracking.What = append([]string(nil), e.Tracking.What...)
	}
	return &c
}

func (g GuildRef) clone() GuildRef {
	if g.Scoreboard != nil {
		g.Scoreboard = append([]MessageRef(nil), g.Scoreboard...)
	}
	return g
}

func (t Team) clone() Team {
	if t.Participants != nil {
		ps := make([]Participant, len(t.Participants))
		for i, p := range t.Participants {
			ps[i] = p.clone()
		}
		t.Participants = ps
	}
	return t
}

func (p Participant) clone() Participant {
	if p.Accounts != nil {
		as := make([]Account, len(p.Accounts))
		for i, a := range p.Accounts {
			as[i] = Account{RSN: a.RSN, Starting: a.Starting.Clone(), Ending: a.Ending.Clone()}
		}
		p.Accounts = as
	}
	return p
}

// Clone deep-copies the snapshot. A nil snapshot stays nil.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(*s))
	for cat, metrics := range *s {
		m := make(map[string]Stat, len(metrics))
		for k, v := range metrics {
			m[k] = v
		}
		out[cat] = m
	}
	return &out
}
