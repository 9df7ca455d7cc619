package command

import "errors"

var (
	ErrSyntax      = errors.New("command: syntax error")
	ErrUnknownWord = errors.New("command: unknown command")
	ErrTooLong     = errors.New("command: script expands to too many commands")
)
