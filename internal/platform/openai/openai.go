// Package openai implements generation.Completer and
// generation.SpeechSynthesizer with the official OpenAI Go SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/generation"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "openai"

// DefaultVoice is used when a request names none.
const DefaultVoice = "alloy"

type chatFunc func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)

type speechFunc func(ctx context.Context, params openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)

// NewClient builds an SDK client from cfg. The SDK retries 429 and 5xx
// responses itself.
func NewClient(cfg config.AIConfig) (openai.Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return openai.Client{}, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	return openai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
	), nil
}

// Completer implements generation.Completer with Chat Completions.
type Completer struct {
	chat   chatFunc
	model  string
	logger *slog.Logger
}

var _ generation.Completer = (*Completer)(nil)

// NewCompleter returns a Completer using client and model.
func NewCompleter(client openai.Client, model string, logger *slog.Logger) *Completer {
	return newCompleter(client.Chat.Completions.New, model, logger)
}

func newCompleter(chat chatFunc, model string, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{
		chat:   chat,
		model:  model,
		logger: logger.With(slog.String("component", "openai")),
	}
}

// Name implements generation.Completer.
func (c *Completer) Name() string { return ProviderName }

// Complete implements generation.Completer.
func (c *Completer) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == generation.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.chat(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", generation.ErrInvalidResponse)
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, generation.ErrContentBlocked
	}
	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)
	}

	model := completion.Model
	if model == "" {
		model = c.model
	}
	return &generation.Response{
		Text:         text,
		Provider:     ProviderName,
		Model:        model,
		PromptTokens: int(completion.Usage.PromptTokens),
	}, nil
}

// Speech implements generation.SpeechSynthesizer with the audio speech API.
type Speech struct {
	speech speechFunc
	model  string
	logger *slog.Logger
}

var _ generation.SpeechSynthesizer = (*Speech)(nil)

// NewSpeech returns a Speech synthesizer using client and the TTS model.
func NewSpeech(client openai.Client, model string, logger *slog.Logger) *Speech {
	return newSpeech(client.Audio.Speech.New, model, logger)
}

func newSpeech(fn speechFunc, model string, logger *slog.Logger) *Speech {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speech{
		speech: fn,
		model:  model,
		logger: logger.With(slog.String("component", "openai_speech")),
	}
}

// Name implements generation.SpeechSynthesizer.
func (s *Speech) Name() string { return ProviderName }

// Synthesize implements generation.SpeechSynthesizer. Audio is MP3.
func (s *Speech) Synthesize(ctx context.Context, req generation.SpeechRequest) (*generation.Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, generation.ErrEmptyPrompt
	}
	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := s.speech(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, classify(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.WarnContext(ctx, "failed to close speech response body", slog.String("error", cerr.Error()))
		}
	}()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", generation.ErrTransientFailure, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", generation.ErrInvalidResponse)
	}

	return &generation.Speech{Audio: audio, MIMEType: "audio/mpeg", Provider: ProviderName}, nil
}

// classify wraps SDK errors in the generation error set.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		default:
			return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}
	}
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}
