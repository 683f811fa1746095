// Package gemini implements generation.Completer on top of Google's Gemini
// API (google.golang.org/genai).
//
// Requests are retried with exponential backoff and jitter when the failure
// looks transient: rate limiting, server errors and network errors. Safety
// blocks and malformed replies are permanent and returned immediately so the
// caller can degrade without waiting out the retry budget.
package gemini
