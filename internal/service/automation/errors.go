package automation

import "errors"

// Sentinel errors for the automation service layer.
var (
	ErrUnknownKind      = errors.New("unknown campaign kind")
	ErrBadStartTime     = errors.New("start time must be HH:MM")
	ErrScheduleInPast   = errors.New("scheduled time is in the past")
	ErrScheduleNotFound = errors.New("scheduled run not found")
)
