package generation

import (
	"context"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request.
type Request struct {
	// System is the instruction prompt. It may be empty.
	System string

	// Messages is the conversation, oldest first. The last message must come
	// from the user.
	Messages []Message

	// JSON asks the provider for a single JSON object reply.
	JSON bool

	Temperature float32
	MaxTokens   int
}

// Prompt returns the content of the final user message.
func (r Request) Prompt() string {
	if len(r.Messages) == 0 {
		return ""
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return ""
	}
	return last.Content
}

// Validate checks that the request ends with a non-empty user message.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt()) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Response is a provider-neutral completion reply.
type Response struct {
	Text         string
	Provider     string
	Model        string
	PromptTokens int
}

// Completer generates text from a Request.
type Completer interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete sends req to the provider. Implementations return an error
	// wrapping one of the package errors when the reply is unusable.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// SpeechRequest asks for text to be read aloud.
type SpeechRequest struct {
	Text  string
	Voice string
}

// Speech is synthesized audio.
type Speech struct {
	Audio    []byte
	MIMEType string
	Provider string
}

// SpeechSynthesizer converts text to audio.
type SpeechSynthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SpeechRequest) (*Speech, error)
}
