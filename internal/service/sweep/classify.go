package sweep

import (
	"strings"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// SMTP reply markers used to grade bounce signals. Unknown signals grade
// hard: a probe that produced an unclassifiable rejection is treated as
// permanent rather than retried forever.
var (
	hardMarkers = []string{
		"550", "551", "552", "553", "554",
		"user unknown", "mailbox unavailable", "no such user",
		"blocked", "blacklist", "policy rejection",
	}
	softMarkers = []string{
		"421", "450", "451", "452",
		"temporarily", "temporary", "rate limit", "greylist", "mailbox full",
	}
)

// Classify grades a bounce signal as a hard or soft suppression reason.
func Classify(signal string) domain.SuppressionReason {
	s := strings.ToLower(signal)
	for _, m := range hardMarkers {
		if strings.Contains(s, m) {
			return domain.ReasonHardBounce
		}
	}
	for _, m := range softMarkers {
		if strings.Contains(s, m) {
			return domain.ReasonSoftBounce
		}
	}
	return domain.ReasonHardBounce
}
