package ai

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input validation errors. Provider failures never surface as errors; they
// become a DegradedFailure outcome.
var (
	// ErrEmptyInput is returned when required text is empty or whitespace.
	ErrEmptyInput = errors.New("input cannot be empty")

	// ErrInputTooLong is returned when text exceeds the operation's limit.
	ErrInputTooLong = errors.New("input exceeds maximum length")

	// ErrInvalidVoice is returned for a TTS voice outside the supported set.
	ErrInvalidVoice = errors.New("unsupported voice")
)

// Input limits in characters.
const (
	MaxGrammarLength           = 10000
	MaxWritingHelpLength       = 10000
	MaxQuestionLength          = 1000
	MaxSpeechLength            = 5000
	MaxAdaptLength             = 20000
	MaxReviewLength            = 50000
	MaxReadingMessageLength    = 500
	MaxReadingHistory          = 10
	maxReadingExcerptTokens    = 600
	maxWritingHelpContextChars = 4000
)

// checkText validates a required input field.
func checkText(field, text string, limit int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyInput, field)
	}
	return checkLength(field, text, limit)
}

// checkLength validates an optional input field.
func checkLength(field, text string, limit int) error {
	if n := utf8.RuneCountInString(text); n > limit {
		return fmt.Errorf("%w: %s has %d characters, maximum is %d", ErrInputTooLong, field, n, limit)
	}
	return nil
}
