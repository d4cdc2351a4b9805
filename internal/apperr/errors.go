package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownPolicy = errors.New("unknown equivalence policy")
	ErrInvalidRule   = errors.New("invalid detection rule")
)
