package dedupe

import "errors"

// Sentinel errors for the dedupe service layer.
var (
	ErrEmptyRecipient = errors.New("recipient identifier is required")
)
