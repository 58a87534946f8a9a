package ofd

import "errors"

var (
	ErrInvalidArgument = errors.New("ofd: invalid argument")
	ErrNotFound        = errors.New("ofd: entry not found")
	ErrMalformed       = errors.New("ofd: malformed xml")
	ErrInvalidPath     = errors.New("ofd: invalid container path")
	ErrLimitExceeded   = errors.New("ofd: limit exceeded")
)
