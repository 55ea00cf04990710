// Package automation owns the per-kind auto-run configuration and the
// one-off scheduled runs.
//
// Configuration is explicit state: loaded on every scheduler tick,
// persisted on every mutation. The evaluation here answers "what is due
// right now"; actually firing runs is the worker's job.
package automation
