// Package task runs durable background jobs. Jobs are persisted through a
// Store before they are acknowledged, claimed by per-type worker pools in
// priority order, and survive process restarts. Jobs stuck in the active
// state past a configurable age are returned to the queue, so handlers must
// tolerate being run more than once.
package task
