package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrUnknownTable = errors.New("unknown table")
	ErrForbidden    = errors.New("record belongs to another user")
	ErrInvalidInput = errors.New("invalid input")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
