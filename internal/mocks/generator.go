package mocks

import (
	"context"
	"sync"

	"github.com/1001stories/stories-api/internal/generation"
)

// MockCompleter implements generation.Completer for testing
type MockCompleter struct {
	// CompleteFn allows test cases to mock the Complete behavior
	CompleteFn func(ctx context.Context, req generation.Request) (*generation.Response, error)

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Default response values
	Text string
	Err  error

	// Call tracking for verification
	CompleteCalls struct {
		mu sync.Mutex

		// Count tracks how many times Complete was called
		Count int

		// Requests contains every request passed to Complete
		Requests []generation.Request
	}
}

var _ generation.Completer = (*MockCompleter)(nil)

// Name implements the generation.Completer interface
func (m *MockCompleter) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Complete implements the generation.Completer interface
func (m *MockCompleter) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	m.CompleteCalls.mu.Lock()
	m.CompleteCalls.Count++
	m.CompleteCalls.Requests = append(m.CompleteCalls.Requests, req)
	m.CompleteCalls.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &generation.Response{Text: m.Text, Provider: m.Name(), Model: "mock-model"}, nil
}

// Calls returns the number of Complete calls so far.
func (m *MockCompleter) Calls() int {
	m.CompleteCalls.mu.Lock()
	defer m.CompleteCalls.mu.Unlock()
	return m.CompleteCalls.Count
}

// LastRequest returns the most recent request, or the zero Request.
func (m *MockCompleter) LastRequest() generation.Request {
	m.CompleteCalls.mu.Lock()
	defer m.CompleteCalls.mu.Unlock()
	if len(m.CompleteCalls.Requests) == 0 {
		return generation.Request{}
	}
	return m.CompleteCalls.Requests[len(m.CompleteCalls.Requests)-1]
}

// NewMockCompleterWithText creates a MockCompleter that always replies with text
func NewMockCompleterWithText(text string) *MockCompleter {
	return &MockCompleter{Text: text}
}

// MockCompleterWithTransientFailure creates a MockCompleter that simulates a transient failure
func MockCompleterWithTransientFailure() *MockCompleter {
	return &MockCompleter{Err: generation.ErrTransientFailure}
}

// MockCompleterWithContentBlocked creates a MockCompleter that simulates content being blocked
func MockCompleterWithContentBlocked() *MockCompleter {
	return &MockCompleter{Err: generation.ErrContentBlocked}
}

// MockSpeechSynthesizer implements generation.SpeechSynthesizer for testing
type MockSpeechSynthesizer struct {
	SynthesizeFn func(ctx context.Context, req generation.SpeechRequest) (*generation.Speech, error)

	Audio []byte
	Err   error
}

var _ generation.SpeechSynthesizer = (*MockSpeechSynthesizer)(nil)

// Name implements the generation.SpeechSynthesizer interface
func (m *MockSpeechSynthesizer) Name() string { return "mock" }

// Synthesize implements the generation.SpeechSynthesizer interface
func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, req generation.SpeechRequest) (*generation.Speech, error) {
	if m.SynthesizeFn != nil {
		return m.SynthesizeFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &generation.Speech{Audio: m.Audio, MIMEType: "audio/mpeg", Provider: "mock"}, nil
}
