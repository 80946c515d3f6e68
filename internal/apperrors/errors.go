package apperrors

import (
	"errors"
)

var (
	ErrShutdown = errors.New("shutdown error")

	ErrConfiguration = errors.New("configuration error")

	// ErrConnection marks a store that could not be reached.
	ErrConnection  = errors.New("store connection error")
	ErrPersistence = errors.New("persistence error")

	ErrDecode     = errors.New("decode error")
	ErrValidation = errors.New("validation error")

	ErrUnauthorized = errors.New("unauthorized")
)
