package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIndexOutOfRange = errors.New("chat index out of range")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrTurnInProgress  = errors.New("another turn is in progress for this workspace")
	ErrConflict        = errors.New("concurrent update conflict")
	ErrUnavailable     = errors.New("stored history temporarily unavailable")

	ErrInvalidExecContext = errors.New("invalid execution context (tx/conn/pool)")

	// Inference response errors
	ErrMalformedResponse = errors.New("malformed inference response")
	ErrEmptyResponse     = errors.New("inference response field missing or empty")
)
