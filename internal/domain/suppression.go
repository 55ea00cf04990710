package domain

import "time"

// SuppressionReason enumerates why an address was suppressed.
type SuppressionReason string

const (
	ReasonHardBounce   SuppressionReason = "hard_bounce"
	ReasonSoftBounce   SuppressionReason = "soft_bounce"
	ReasonManualImport SuppressionReason = "manual_import"
	ReasonOptOut       SuppressionReason = "opt_out"
)

// SuppressionEntry is a standing exclusion of an address or phone from all
// future sends. Creation and reactivation (unsuppress) are the only
// mutation paths.
type SuppressionEntry struct {
	ID        string            `json:"id" db:"id"`
	Address   string            `json:"address" db:"address"` // email or normalized phone
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Detail    string            `json:"detail,omitempty" db:"detail"`
	Active    bool              `json:"active" db:"active"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}
