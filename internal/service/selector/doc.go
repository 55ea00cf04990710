// Package selector decides who receives an outreach run.
//
// For a given campaign kind, scope and as-of date it pulls date-matching
// contacts from the CRM source and filters them through the suppression
// list and the dedupe ledger, classifying every considered-but-excluded
// contact with a skip reason so run counters reconcile. Selection is
// deterministic for a fixed as-of date and store snapshot, which is what
// makes dry runs trustworthy previews of real runs.
package selector
