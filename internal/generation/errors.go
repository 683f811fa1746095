package generation

import "errors"

// Common errors returned by providers.
var (
	// ErrGenerationFailed is returned when a provider fails for any general reason.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidResponse is returned when the provider response cannot be parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the provider blocks the content due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry.
	ErrTransientFailure = errors.New("transient error calling language model")

	// ErrInvalidConfig is returned when a provider is constructed with invalid configuration.
	ErrInvalidConfig = errors.New("invalid provider configuration")

	// ErrEmptyPrompt is returned when a request carries no user message.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrNotConfigured is returned by placeholders for providers that have no credentials.
	ErrNotConfigured = errors.New("provider not configured")
)
