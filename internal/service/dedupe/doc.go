// Package dedupe implements the "already contacted" ledger.
//
// A mark records that a recipient received an outreach of a given kind
// within a reference period, and blocks further sends of that kind until
// the mark expires. The ledger is the single source of truth for
// re-contact decisions; any UI cache of marked state is a read-through
// hint only.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package dedupe
