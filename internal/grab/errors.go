package grab

import "errors"

// Grab and release failures are expected under concurrent input. The
// manager reports them as a false result and logs the reason at debug level.
var (
	ErrNoTarget         = errors.New("no grabbable target in reach")
	ErrAlreadyGrabbing  = errors.New("actor is already grabbing")
	ErrNothingToRelease = errors.New("actor holds nothing")
	ErrTargetHeld       = errors.New("target is held by another actor")
	ErrTargetInvalid    = errors.New("target is no longer in the world")
)
