package runner

import "errors"

// Sentinel errors for the runner service layer.
var (
	ErrUnknownKind    = errors.New("unknown campaign kind")
	ErrAlreadyRunning = errors.New("a run for this kind is already in progress")
	ErrRunNotFound    = errors.New("campaign run not found")
)
