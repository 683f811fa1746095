// Package ai is the adapter between the platform and text and speech
// providers. Each operation validates its input, builds a localized prompt,
// calls the configured generation.Completer or SpeechSynthesizer and
// normalizes the reply.
//
// Provider failures are part of the contract rather than errors: they come
// back as an Outcome in the DegradedFailure state with a user-facing message
// in the caller's language.
package ai
