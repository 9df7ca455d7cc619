package journal

import "errors"

var (
	ErrClosed             = errors.New("journal: closed")
	ErrCorrupt            = errors.New("journal: corrupt")
	ErrUnsupportedVersion = errors.New("journal: unsupported version")
)
