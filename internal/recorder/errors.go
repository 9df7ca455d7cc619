package recorder

import "errors"

var (
	ErrSessionActive  = errors.New("recorder: session already in progress")
	ErrNoSession      = errors.New("recorder: no session in progress")
	ErrSessionEnded   = errors.New("recorder: session already ended")
	ErrResumeMismatch = errors.New("recorder: stored steps do not replay")
)
