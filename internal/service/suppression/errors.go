package suppression

import "errors"

// Sentinel errors for the suppression service layer.
var (
	ErrNotFound       = errors.New("suppression entry not found")
	ErrInvalidAddress = errors.New("address is not a valid email or phone")
)
