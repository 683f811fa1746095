// Package export builds personal data export archives.
//
// A request is recorded synchronously and processed in a tracked background
// goroutine, so the caller gets the request ID immediately. The archive is a
// zip of seven JSON category files plus a README, stored under the
// configured directory until it expires.
package export
