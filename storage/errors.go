package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidCID  = errors.New("storage: invalid blob id")
	ErrCIDMismatch = errors.New("storage: blob id mismatch")
	ErrImmutable   = errors.New("storage: immutable blob mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
