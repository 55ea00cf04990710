// Package suppression implements the standing exclusion list service.
//
// This is the single source of truth for whether an address or phone may
// be contacted. Entries flow in from the bounce sweep, manual imports, and
// opt-outs, and are checked by the candidate selector before every run and
// defensively re-checked before each dispatch.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package suppression
