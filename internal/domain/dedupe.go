package domain

import "time"

// DedupeMark records that a recipient was already contacted for a campaign
// kind within a reference period. It blocks re-contact until ExpiresAt,
// regardless of which run created it.
type DedupeMark struct {
	Recipient string       `json:"recipient" db:"recipient"` // document identifier
	Kind      CampaignKind `json:"kind" db:"kind"`
	Reference string       `json:"reference" db:"reference"` // scope year, or "all"
	RunID     string       `json:"run_id" db:"run_id"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	ExpiresAt time.Time    `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the mark no longer blocks sends at the given time.
func (m DedupeMark) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
