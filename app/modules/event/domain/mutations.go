package eventdomain

import (
	"strings"
	"time"
)

// Signup adds rsn for userID, creating the team when needed. A participant who is
// already on the resolved team gains an extra account.
func (e *Event) Signup(now time.Time, userID, guildID, rsn, teamName string) (*Event, error) {
	if e.AdminLocked {
		return nil, ErrLockedByAdmin
	}
	if !now.Before(e.Window.End) {
		return nil, ErrEventEnded
	}
	pol := e.policy()
	if err := pol.checkSignupWindow(e, now); err != nil {
		return nil, err
	}
	rsn = strings.TrimSpace(rsn)
	if rsn == "" {
		return nil, ErrRSNRequired
	}
	if e.HasRSN(rsn) {
		return nil, ErrRSNAlreadyUsed
	}

	next := e.Clone()
	if ti, pi, ok := next.FindParticipant(userID); ok {
		team := next.Teams[ti]
		if strings.TrimSpace(teamName) != "" && !strings.EqualFold(strings.TrimSpace(teamName), team.Name) && !e.Global {
			return nil, ErrAlreadySignedUp
		}
		if e.Global && team.GuildID != guildID {
			return nil, ErrAlreadySignedUp
		}
		p := &next.Teams[ti].Participants[pi]
		p.Accounts = append(p.Accounts, Account{RSN: rsn})
		return next, nil
	}

	idx, team, err := pol.resolveTeam(next, guildID, teamName)
	if err != nil {
		return nil, err
	}
	team.Participants = append(team.Participants, Participant{UserID: userID, Accounts: []Account{{RSN: rsn}}})
	if idx < 0 {
		next.Teams = append(next.Teams, team)
	} else {
		next.Teams[idx] = team
	}
	return next, nil
}

// Unsignup removes userID and drops the team if it becomes empty.
func (e *Event) Unsignup(userID string) (*Event, error) {
	if e.AdminLocked {
		return nil, ErrLockedByAdmin
	}
	ti, pi, ok := e.FindParticipant(userID)
	if !ok {
		return nil, ErrNotSignedUp
	}
	next := e.Clone()
	team := &next.Teams[ti]
	team.Participants = append(team.Participants[:pi], team.Participants[pi+1:]...)
	if len(team.Participants) == 0 {
		next.Teams = append(next.Teams[:ti], next.Teams[ti+1:]...)
	}
	return next, nil
}

// AddCustomScore adjusts userID's manual score. It reports false when the user
// is not a participant.
func (e *Event) AddCustomScore(userID string, delta int64) (*Event, bool) {
	ti, pi, ok := e.FindParticipant(userID)
	if !ok {
		return e, false
	}
	next := e.Clone()
	next.Teams[ti].Participants[pi].CustomScore += delta
	return next, true
}

// minEndedWindow is the window left to an event ended at its start instant.
const minEndedWindow = time.Second

// End pulls the end of the window back to now. An event ended at its start
// instant keeps minEndedWindow, so start stays before end. Ending an event that
// has already ended, or has not yet started, leaves the window unchanged.
func (e *Event) End(now time.Time) *Event {
	next := e.Clone()
	if now.Before(e.Window.Start) || !now.Before(e.Window.End) {
		return next
	}
	next.Window.End = now
	if !now.After(e.Window.Start) {
		next.Window.End = e.Window.Start.Add(minEndedWindow)
		if next.Window.End.After(e.Window.End) {
			next.Window.End = e.Window.End
		}
	}
	return next
}

// Lock blocks signup and unsignup. Global events cannot be locked manually and
// come back unchanged with false.
func (e *Event) Lock() (*Event, bool) { return e.setLocked(true) }

// Unlock reverses Lock. Global events come back unchanged with false.
func (e *Event) Unlock() (*Event, bool) { return e.setLocked(false) }

func (e *Event) setLocked(locked bool) (*Event, bool) {
	if !e.policy().lockable() {
		return e, false
	}
	next := e.Clone()
	next.AdminLocked = locked
	return next, true
}

// JoinGuild invites another guild into a global event.
func (e *Event) JoinGuild(now time.Time, ref GuildRef) (*Event, error) {
	if !e.Global {
		return nil, ErrNotGlobal
	}
	if e.Guilds.Contains(ref.GuildID) {
		return nil, ErrGuildAlreadyJoined
	}
	if !now.Before(e.Window.Start.Add(-GlobalMembershipLock)) {
		return nil, ErrLeaveLocked
	}
	next := e.Clone()
	next.Guilds.Others = append(next.Guilds.Others, GuildRef{GuildID: ref.GuildID, ChannelID: ref.ChannelID})
	return next, nil
}

// LeaveGuild removes guildID from a global event along with every team it owns.
// The returned GuildRef is the departed guild, whose scoreboard messages the
// caller may want to clean up.
func (e *Event) LeaveGuild(now time.Time, guildID string) (*Event, GuildRef, error) {
	if !e.Global {
		return nil, GuildRef{}, ErrNotGlobal
	}
	if !e.Guilds.Contains(guildID) {
		return nil, GuildRef{}, ErrGuildNotParticipating
	}
	if len(e.Guilds.Others) == 0 {
		return nil, GuildRef{}, ErrOnlyGuild
	}
	if e.Guilds.Creator.GuildID == guildID {
		return nil, GuildRef{}, ErrCreatorCannotLeave
	}
	if !now.Before(e.Window.Start.Add(-GlobalMembershipLock)) {
		return nil, GuildRef{}, ErrLeaveLocked
	}

	next := e.Clone()
	var left GuildRef
	others := next.Guilds.Others[:0]
	for _, g := range next.Guilds.Others {
		if g.GuildID == guildID {
			left = g
			continue
		}
		others = append(others, g)
	}
	next.Guilds.Others = others

	teams := next.Teams[:0]
	for _, t := range next.Teams {
		if t.GuildID != guildID {
			teams = append(teams, t)
		}
	}
	next.Teams = teams
	return next, left, nil
}

// CanDelete reports whether the event may still be deleted at now.
func (e *Event) CanDelete(now time.Time) error {
	if e.Started(now) {
		return ErrAlreadyStarted
	}
	return nil
}

// SetScoreboard records where guildID's scoreboard now lives.
func (e *Event) SetScoreboard(guildID string, refs []MessageRef) *Event {
	next := e.Clone()
	if next.Guilds.Creator.GuildID == guildID {
		next.Guilds.Creator.Scoreboard = refs
		return next
	}
	for i := range next.Guilds.Others {
		if next.Guilds.Others[i].GuildID == guildID {
			next.Guilds.Others[i].Scoreboard = refs
		}
	}
	return next
}
