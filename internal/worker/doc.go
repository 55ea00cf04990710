// Package worker hosts the background loops: the automation scheduler
// that fires daily and one-off campaign runs, drives running bounce
// sweeps forward, and prunes the expired dedupe marks.
package worker
