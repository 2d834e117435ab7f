package eventdomain

import "errors"

// Domain failures. Their messages are shown to users verbatim, so handlers
// should treat these as normal outcomes rather than infrastructure errors.
var (
	ErrRSNAlreadyUsed          = errors.New("that RSN is already signed up for this event")
	ErrRSNRequired             = errors.New("an RSN is required")
	ErrLockedByAdmin           = errors.New("signups for this event are locked by an admin")
	ErrTeamNameRequired        = errors.New("a team name is required")
	ErrTeamNameTaken           = errors.New("another guild already owns a team with that name")
	ErrLockedBeforeGlobalStart = errors.New("global event signups close 10 minutes before the start")
	ErrAlreadySignedUp         = errors.New("you are already signed up on a different team")
	ErrNotSignedUp             = errors.New("you are not signed up for this event")
	ErrGuildNotParticipating   = errors.New("this server is not participating in the event")
	ErrGuildAlreadyJoined      = errors.New("this server is already participating in the event")
	ErrLeaveLocked             = errors.New("servers cannot join or leave a global event within 30 minutes of the start")
	ErrOnlyGuild               = errors.New("the only participating server cannot leave the event")
	ErrCreatorCannotLeave      = errors.New("the server that created the event cannot leave it")
	ErrNotGlobal               = errors.New("this is not a global event")
	ErrAlreadyStarted          = errors.New("the event has already started")
	ErrNotStarted              = errors.New("the event has not started yet")
	ErrEventEnded              = errors.New("the event has already ended")
)
