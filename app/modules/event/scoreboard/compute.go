// Package scoreboard turns an event's snapshots into a ranked tree and renders it.
package scoreboard

import (
	"cmp"
	"slices"
	"time"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// Board is the ranked Team → Participant → Account → Metric tree.
type Board struct {
	EventName string
	Category  eventdomain.Category
	Window    eventdomain.Window
	Infinite  bool
	Teams     []TeamScore
}

type TeamScore struct {
	Name         string
	Score        int64
	Participants []ParticipantScore
}

type ParticipantScore struct {
	UserID      string
	CustomScore int64
	Score       int64
	Accounts    []AccountScore
}

type AccountScore struct {
	RSN     string
	Score   int64
	Metrics []MetricScore
}

type MetricScore struct {
	Key   string
	Score int64
}

// Compute scores every account of e and ranks each level descending.
// Equal scores keep their insertion order.
func Compute(e *eventdomain.Event) Board {
	b := Board{
		EventName: e.Name,
		Category:  e.Tracking.Category,
		Window:    e.Window,
		Infinite:  e.Infinite(),
		Teams:     make([]TeamScore, 0, len(e.Teams)),
	}

	for _, t := range e.Teams {
		ts := TeamScore{Name: t.Name, Participants: make([]ParticipantScore, 0, len(t.Participants))}
		for _, p := range t.Participants {
			ps := ParticipantScore{UserID: p.UserID, CustomScore: p.CustomScore, Score: p.CustomScore}
			for _, a := range p.Accounts {
				as := scoreAccount(e.Tracking, a)
				ps.Score += as.Score
				ps.Accounts = append(ps.Accounts, as)
			}
			sortDesc(ps.Accounts, func(a AccountScore) int64 { return a.Score })
			ts.Score += ps.Score
			ts.Participants = append(ts.Participants, ps)
		}
		sortDesc(ts.Participants, func(p ParticipantScore) int64 { return p.Score })
		b.Teams = append(b.Teams, ts)
	}
	sortDesc(b.Teams, func(t TeamScore) int64 { return t.Score })
	return b
}

func scoreAccount(tr eventdomain.Tracking, a eventdomain.Account) AccountScore {
	as := AccountScore{RSN: a.RSN}
	for _, key := range tr.What {
		s := MetricDelta(tr.Category, key, a.Starting, a.Ending)
		as.Score += s
		as.Metrics = append(as.Metrics, MetricScore{Key: key, Score: s})
	}
	sortDesc(as.Metrics, func(m MetricScore) int64 { return m.Score })
	return as
}

// MetricDelta is the gain of one metric between the two snapshots. A metric that
// is absent from the starting snapshot but present at the end counts in full.
// Without an ending value there is nothing to score yet.
func MetricDelta(category eventdomain.Category, key string, starting, ending *eventdomain.Snapshot) int64 {
	end, ok := ending.Lookup(category, key)
	if !ok {
		return 0
	}
	endVal := max(statValue(category, end), 0)
	start, ok := starting.Lookup(category, key)
	if !ok {
		return endVal
	}
	return endVal - max(statValue(category, start), 0)
}

func statValue(category eventdomain.Category, s eventdomain.Stat) int64 {
	if category.UsesXP() {
		return s.XP
	}
	return s.Score
}

func sortDesc[T any](s []T, score func(T) int64) {
	slices.SortStableFunc(s, func(a, b T) int { return cmp.Compare(score(b), score(a)) })
}

// StatusAt reports the derived status of the board's window.
func (b Board) StatusAt(now time.Time) eventdomain.Status {
	e := eventdomain.Event{Window: b.Window}
	return e.Status(now)
}

// UserIDs lists participants in rendered order.
func (b Board) UserIDs() []string {
	var out []string
	for _, t := range b.Teams {
		for _, p := range t.Participants {
			out = append(out, p.UserID)
		}
	}
	return out
}
