package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidOrder       = errors.New("invalid order parameters")
	ErrUnknownVenue       = errors.New("unknown venue")
	ErrAdapterNotResolved = errors.New("venue adapter not resolved")
	ErrSigningFailed      = errors.New("signing failed")
)
