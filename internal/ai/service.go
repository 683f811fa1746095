package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/generation"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/metrics"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/redact"
)

// Operation names used in logs and metrics.
const (
	OpGrammar     = "grammar"
	OpStructure   = "structure"
	OpWritingHelp = "writing_help"
	OpSpeech      = "speech"
	OpAdapt       = "adapt"
	OpReading     = "reading"
	OpReview      = "review"
)

// Voices accepted by SynthesizeSpeech.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// AgeBands accepted by AdaptText.
var AgeBands = []string{"3-5", "6-8", "9-12", "13-15"}

// ErrInvalidAgeBand is returned by AdaptText for an unknown age band.
var ErrInvalidAgeBand = errors.New("unsupported age band")

// Config bounds provider calls.
type Config struct {
	// RequestTimeout bounds one call including queueing for a slot.
	RequestTimeout time.Duration

	// MaxConcurrent caps in-flight provider calls. Zero means unlimited.
	MaxConcurrent int
}

// ConfigFrom derives a Config from the application AI settings.
func ConfigFrom(cfg config.AIConfig) Config {
	return Config{
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		MaxConcurrent:  cfg.MaxConcurrent,
	}
}

// ReadingRequest is a question about a published story.
type ReadingRequest struct {
	BookTitle   string
	BookContent string
	Message     string
	History     []generation.Message
	Language    string
}

// Service is the AI adapter used by HTTP handlers and queue workers. Every
// method validates its input first and returns ErrEmptyInput or
// ErrInputTooLong for bad input. Provider, transport and parse failures are
// returned as a DegradedFailure outcome with a localized message, never as
// an error.
type Service struct {
	completer generation.Completer
	speech    generation.SpeechSynthesizer
	catalog   *i18n.Catalog
	tokens    *TokenCounter
	limiter   *limiter
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService wires the adapter. speech and tokens may be nil: speech
// requests then always degrade and token counts are estimated.
func NewService(
	completer generation.Completer,
	speech generation.SpeechSynthesizer,
	catalog *i18n.Catalog,
	tokens *TokenCounter,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	if completer == nil {
		return nil, errors.New("completer cannot be nil")
	}
	if catalog == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Service{
		completer: completer,
		speech:    speech,
		catalog:   catalog,
		tokens:    tokens,
		limiter:   newLimiter(cfg.MaxConcurrent),
		timeout:   cfg.RequestTimeout,
		logger:    logger.With(slog.String("component", "ai_service")),
	}, nil
}

// CheckGrammar finds grammar problems in text.
func (s *Service) CheckGrammar(ctx context.Context, text, lang string) (Outcome[GrammarResult], error) {
	if err := checkText("content", text, MaxGrammarLength); err != nil {
		return Outcome[GrammarResult]{}, err
	}
	req := generation.Request{
		System:      s.catalog.T(lang, "grammar.system"),
		Messages:    userMessage(s.catalog.T(lang, "grammar.user", text)),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   1500,
	}
	return run(ctx, s, OpGrammar, lang, "grammar.fallback", req, func(resp *generation.Response) (GrammarResult, error) {
		return parseGrammar(resp.Text)
	}), nil
}

// AnalyzeStructure reviews the beginning, middle and end of a story.
func (s *Service) AnalyzeStructure(ctx context.Context, text, lang string) (Outcome[StructureResult], error) {
	if err := checkText("content", text, MaxGrammarLength); err != nil {
		return Outcome[StructureResult]{}, err
	}
	req := generation.Request{
		System:      s.catalog.T(lang, "structure.system"),
		Messages:    userMessage(s.catalog.T(lang, "structure.user", text)),
		JSON:        true,
		Temperature: 0.5,
		MaxTokens:   1500,
	}
	return run(ctx, s, OpStructure, lang, "structure.fallback", req, func(resp *generation.Response) (StructureResult, error) {
		return parseStructure(resp.Text)
	}), nil
}

// WritingHelp answers question about an optional story draft.
func (s *Service) WritingHelp(ctx context.Context, content, question, lang string) (Outcome[WritingHelp], error) {
	if err := checkText("question", question, MaxQuestionLength); err != nil {
		return Outcome[WritingHelp]{}, err
	}
	if err := checkLength("content", content, MaxWritingHelpLength); err != nil {
		return Outcome[WritingHelp]{}, err
	}

	draft := strings.TrimSpace(content)
	if draft == "" {
		draft = "-"
	} else if runes := []rune(draft); len(runes) > maxWritingHelpContextChars {
		draft = string(runes[:maxWritingHelpContextChars])
	}

	req := generation.Request{
		System:      s.catalog.T(lang, "writing_help.system"),
		Messages:    userMessage(s.catalog.T(lang, "writing_help.user", draft, question)),
		Temperature: 0.7,
		MaxTokens:   800,
	}
	return run(ctx, s, OpWritingHelp, lang, "writing_help.fallback", req, func(resp *generation.Response) (WritingHelp, error) {
		return WritingHelp{Answer: strings.TrimSpace(resp.Text)}, nil
	}), nil
}

// SynthesizeSpeech reads text aloud with voice. An empty voice selects the
// provider default.
func (s *Service) SynthesizeSpeech(ctx context.Context, text, voice, lang string) (Outcome[Speech], error) {
	if err := checkText("text", text, MaxSpeechLength); err != nil {
		return Outcome[Speech]{}, err
	}
	if voice != "" && !contains(Voices, voice) {
		return Outcome[Speech]{}, fmt.Errorf("%w: %s", ErrInvalidVoice, voice)
	}

	fallback := s.catalog.T(lang, "tts.fallback")
	if s.speech == nil {
		metrics.ObserveAICall(OpSpeech, "none", KindDegraded.String(), 0)
		return DegradedFailure[Speech](fallback, generation.ErrNotConfigured), nil
	}

	start := time.Now()
	speech, err := s.synthesize(ctx, generation.SpeechRequest{Text: text, Voice: voice})
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveAICall(OpSpeech, s.speech.Name(), KindDegraded.String(), elapsed)
		s.logDegraded(ctx, OpSpeech, s.speech.Name(), err)
		return DegradedFailure[Speech](fallback, err), nil
	}

	metrics.ObserveAICall(OpSpeech, speech.Provider, KindSucceeded.String(), elapsed)
	return Succeeded(Speech{AudioData: speech.Audio, MIMEType: speech.MIMEType}), nil
}

// AdaptText rewrites a story for readers in ageBand.
func (s *Service) AdaptText(ctx context.Context, text, ageBand, title, lang string) (Outcome[Adaptation], error) {
	if err := checkText("text", text, MaxAdaptLength); err != nil {
		return Outcome[Adaptation]{}, err
	}
	if !contains(AgeBands, ageBand) {
		return Outcome[Adaptation]{}, fmt.Errorf("%w: %q", ErrInvalidAgeBand, ageBand)
	}
	if err := checkLength("title", title, domain.MaxTitleLength); err != nil {
		return Outcome[Adaptation]{}, err
	}

	req := generation.Request{
		System:      s.catalog.T(lang, "adapt.system", ageBand, title),
		Messages:    userMessage(s.catalog.T(lang, "adapt.user", text)),
		Temperature: 0.7,
		MaxTokens:   4000,
	}
	return run(ctx, s, OpAdapt, lang, "adapt.fallback", req, func(resp *generation.Response) (Adaptation, error) {
		adapted := strings.TrimSpace(resp.Text)
		return Adaptation{
			AdaptedText:   adapted,
			AgeBand:       ageBand,
			Title:         title,
			OriginalWords: domain.WordCount(text),
			AdaptedWords:  domain.WordCount(adapted),
		}, nil
	}), nil
}

// ReadingAssistant answers a learner's question about a story. Only the
// most recent MaxReadingHistory turns of history are sent.
func (s *Service) ReadingAssistant(ctx context.Context, in ReadingRequest) (Outcome[ReadingReply], error) {
	if err := checkText("message", in.Message, MaxReadingMessageLength); err != nil {
		return Outcome[ReadingReply]{}, err
	}

	history := in.History
	if len(history) > MaxReadingHistory {
		history = history[len(history)-MaxReadingHistory:]
	}
	messages := make([]generation.Message, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != generation.RoleAssistant {
			m.Role = generation.RoleUser
		}
		messages = append(messages, m)
	}
	messages = append(messages, generation.Message{Role: generation.RoleUser, Content: in.Message})

	excerpt := s.tokens.Truncate(in.BookContent, maxReadingExcerptTokens)
	req := generation.Request{
		System:      s.catalog.T(in.Language, "reading.system", in.BookTitle, excerpt),
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   300,
	}
	return run(ctx, s, OpReading, in.Language, "reading.fallback", req, func(resp *generation.Response) (ReadingReply, error) {
		return ReadingReply{Response: strings.TrimSpace(resp.Text)}, nil
	}), nil
}

// Review runs one queued review pass over a submission body.
func (s *Service) Review(ctx context.Context, reviewType domain.ReviewType, text, lang string) (Outcome[ReviewResult], error) {
	if !reviewType.IsValid() {
		return Outcome[ReviewResult]{}, domain.ErrInvalidReviewType
	}
	if err := checkText("content", text, MaxReviewLength); err != nil {
		return Outcome[ReviewResult]{}, err
	}

	req := generation.Request{
		System:      s.catalog.T(lang, "review."+string(reviewType)),
		Messages:    userMessage(text),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   2000,
	}
	return run(ctx, s, OpReview, lang, "review.fallback", req, func(resp *generation.Response) (ReviewResult, error) {
		result, err := parseReview(resp.Text)
		result.Model = resp.Model
		return result, err
	}), nil
}

// run sends req and parses the reply, degrading on any failure.
func run[T any](
	ctx context.Context,
	s *Service,
	op, lang, fallbackKey string,
	req generation.Request,
	parse func(*generation.Response) (T, error),
) Outcome[T] {
	start := time.Now()
	provider := s.completer.Name()

	resp, err := s.complete(ctx, req)
	if err == nil {
		provider = resp.Provider
		var data T
		if data, err = parse(resp); err == nil {
			metrics.ObserveAICall(op, provider, KindSucceeded.String(), time.Since(start))
			return Succeeded(data)
		}
	}

	metrics.ObserveAICall(op, provider, KindDegraded.String(), time.Since(start))
	s.logDegraded(ctx, op, provider, err)
	return DegradedFailure[T](s.catalog.T(lang, fallbackKey), err)
}

func (s *Service) complete(ctx context.Context, req generation.Request) (resp *generation.Response, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	release, err := s.limiter.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for a provider slot: %v", generation.ErrTransientFailure, err)
	}
	defer release()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: provider panicked: %v", generation.ErrGenerationFailed, p)
		}
	}()

	metrics.AddPromptTokens(s.completer.Name(), s.tokens.Count(req.System)+s.tokens.Count(req.Prompt()))

	resp, err = s.completer.Complete(ctx, req)
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	return resp, err
}

func (s *Service) synthesize(ctx context.Context, req generation.SpeechRequest) (speech *generation.Speech, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	release, err := s.limiter.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for a provider slot: %v", generation.ErrTransientFailure, err)
	}
	defer release()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: provider panicked: %v", generation.ErrGenerationFailed, p)
		}
	}()

	speech, err = s.speech.Synthesize(ctx, req)
	if err == nil && (speech == nil || len(speech.Audio) == 0) {
		err = fmt.Errorf("%w: no audio", generation.ErrInvalidResponse)
	}
	return speech, err
}

func (s *Service) logDegraded(ctx context.Context, op, provider string, err error) {
	logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "ai call degraded",
		slog.String("operation", op),
		slog.String("provider", provider),
		slog.String("error", redact.Error(err)))
}

func userMessage(content string) []generation.Message {
	return []generation.Message{{Role: generation.RoleUser, Content: content}}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
