// Package runner executes one campaign run end to end.
//
// A run moves pending → running → completed/failed. While running, the
// runner walks the paced schedule serially — one send at a time, in dedupe
// write order — recording an immutable log entry per candidate. Item
// failures never abort a run; only a selection failure does, and then the
// partial log is preserved.
//
// Dry runs traverse the exact same selection and pacing code but never
// touch the gateway, the cooldown, or the dedupe ledger.
package runner
