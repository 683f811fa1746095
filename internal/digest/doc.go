// Package digest sends the daily and weekly notification digest emails.
//
// The driver is invoked externally, from the cron endpoint or storiesctl,
// and decides per frequency whether a digest is due at the given instant.
// A Redis key per frequency and period guarantees at most one send per
// period when invocations overlap.
package digest
