package ai

// OutcomeKind tags which branch of an Outcome is populated.
type OutcomeKind int

const (
	KindSucceeded OutcomeKind = iota
	KindDegraded
)

// String returns the metrics label for k.
func (k OutcomeKind) String() string {
	if k == KindDegraded {
		return "degraded"
	}
	return "succeeded"
}

// Outcome is the result of an AI call that reached a provider. It is either
// Succeeded with data, or DegradedFailure carrying a localized message fit
// for end users and the underlying cause for logs.
type Outcome[T any] struct {
	kind    OutcomeKind
	data    T
	message string
	cause   error
}

// Succeeded wraps a usable provider result.
func Succeeded[T any](data T) Outcome[T] {
	return Outcome[T]{kind: KindSucceeded, data: data}
}

// DegradedFailure records that the provider could not produce a result.
func DegradedFailure[T any](message string, cause error) Outcome[T] {
	return Outcome[T]{kind: KindDegraded, message: message, cause: cause}
}

// Kind reports which branch is populated.
func (o Outcome[T]) Kind() OutcomeKind { return o.kind }

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool { return o.kind == KindSucceeded }

// Data returns the result. It is the zero value for a degraded outcome.
func (o Outcome[T]) Data() T { return o.data }

// FallbackMessage returns the user-facing message of a degraded outcome.
func (o Outcome[T]) FallbackMessage() string { return o.message }

// Cause returns the error behind a degraded outcome.
func (o Outcome[T]) Cause() error { return o.cause }
