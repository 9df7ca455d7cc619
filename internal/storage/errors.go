package storage

import "errors"

var (
	ErrSessionNotFound = errors.New("storage: session not found")
	ErrSchemaTooNew    = errors.New("storage: schema newer than this build")
)
