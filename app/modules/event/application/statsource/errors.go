package statsource

import "errors"

var (
	// ErrPlayerNotFound means the hiscores have no entry for the name. Not retried.
	ErrPlayerNotFound = errors.New("player not found on the hiscores")
	// ErrInvalidName means the name can never be a valid RSN. Not retried.
	ErrInvalidName = errors.New("that is not a valid RSN")
	// ErrUnavailable wraps every terminal failure returned in a Result.
	ErrUnavailable = errors.New("hiscores unavailable")
)
