// Package sweep walks the contact base in batches probing deliverability,
// feeding confirmed-bad addresses to the suppression list.
//
// The engine is deliberately request/response shaped: each Process call
// advances exactly one batch and returns, leaving looping to an external
// driver. The cursor is persisted before a batch is probed, so a crash
// loses at most the one in-flight batch and a resume never re-probes
// finished ground.
package sweep
