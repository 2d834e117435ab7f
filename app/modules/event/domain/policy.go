package eventdomain

import (
	"strings"
	"time"
)

// policy carries the behavior that differs between standard and global events.
type policy interface {
	validate(e *Event, now time.Time) []Violation
	checkSignupWindow(e *Event, now time.Time) error
	resolveTeam(e *Event, guildID, teamName string) (int, Team, error)
	lockable() bool
}

func (e *Event) policy() policy {
	if e.Global {
		return globalPolicy{}
	}
	return standardPolicy{}
}

type standardPolicy struct{}

func (standardPolicy) validate(e *Event, _ time.Time) []Violation {
	var out []Violation
	if e.Window.Start.Before(e.Window.End) && !e.Infinite() && e.Window.Duration() > MaxStandardDuration {
		out = append(out, ViolationWindowTooLong)
	}
	if len(e.Guilds.Others) > 0 {
		out = append(out, ViolationOthersOnStandard)
	}
	return out
}

func (standardPolicy) checkSignupWindow(*Event, time.Time) error { return nil }

func (standardPolicy) resolveTeam(e *Event, _ string, teamName string) (int, Team, error) {
	name := strings.TrimSpace(teamName)
	if name == "" {
		return -1, Team{}, ErrTeamNameRequired
	}
	if i, ok := e.FindTeam(name); ok {
		return i, e.Teams[i], nil
	}
	return -1, Team{Name: name}, nil
}

func (standardPolicy) lockable() bool { return true }

type globalPolicy struct{}

func (globalPolicy) validate(e *Event, now time.Time) []Violation {
	var out []Violation
	if e.Window.Start.Before(e.Window.End) && e.Window.Duration() > MaxGlobalDuration {
		out = append(out, ViolationWindowTooLong)
	}
	if e.Window.Start.Before(now.Add(GlobalMinLeadTime)) {
		out = append(out, ViolationGlobalStartTooSoon)
	}
	if e.Window.Start.After(now.Add(GlobalMaxLeadTime)) {
		out = append(out, ViolationGlobalStartTooFar)
	}
	return out
}

func (globalPolicy) checkSignupWindow(e *Event, now time.Time) error {
	if !now.Before(e.Window.Start.Add(-GlobalSignupCutoff)) {
		return ErrLockedBeforeGlobalStart
	}
	return nil
}

// resolveTeam forces each guild onto the single team it owns. The first signup
// from a guild names that team.
func (globalPolicy) resolveTeam(e *Event, guildID, teamName string) (int, Team, error) {
	if !e.Guilds.Contains(guildID) {
		return -1, Team{}, ErrGuildNotParticipating
	}
	for i, t := range e.Teams {
		if t.GuildID == guildID {
			return i, t, nil
		}
	}
	name := strings.TrimSpace(teamName)
	if name == "" {
		return -1, Team{}, ErrTeamNameRequired
	}
	if _, ok := e.FindTeam(name); ok {
		return -1, Team{}, ErrTeamNameTaken
	}
	return -1, Team{Name: name, GuildID: guildID}, nil
}

func (globalPolicy) lockable() bool { return false }
