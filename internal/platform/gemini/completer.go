package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/generation"
	"google.golang.org/genai"
)

// ProviderName identifies this provider in logs and metrics.
const ProviderName = "gemini"

// generateFunc matches (*genai.Models).GenerateContent so tests can stub the API.
type generateFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error)

// Completer implements generation.Completer using the Gemini API.
type Completer struct {
	generate   generateFunc
	model      string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

var _ generation.Completer = (*Completer)(nil)

// NewCompleter creates a Gemini client from cfg.
func NewCompleter(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (*Completer, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.GeminiModel == "" {
		return nil, fmt.Errorf("%w: gemini model cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newCompleter(client.Models.GenerateContent, cfg.GeminiModel, cfg.MaxRetries,
		time.Duration(cfg.RetryDelaySeconds)*time.Second, logger), nil
}

func newCompleter(
	generate generateFunc,
	model string,
	maxRetries int,
	baseDelay time.Duration,
	logger *slog.Logger,
) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Completer{
		generate:   generate,
		model:      model,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger.With(slog.String("component", "gemini")),
		sleep:      sleepContext,
	}
}

// Name implements generation.Completer.
func (c *Completer) Name() string { return ProviderName }

// Complete implements generation.Completer. It makes up to maxRetries+1
// attempts, backing off between transient failures.
func (c *Completer) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contents := toContents(req.Messages)
	cfg := toConfig(req)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		resp, err := c.generate(ctx, c.model, contents, cfg)
		if err == nil {
			var out *generation.Response
			out, err = c.parse(resp)
			if err == nil {
				if attempt > 0 {
					c.logger.InfoContext(ctx, "gemini call succeeded after retry",
						slog.Int("attempt", attempt+1))
				}
				return out, nil
			}
		}

		if !isTransient(err) {
			c.logger.WarnContext(ctx, "permanent gemini error, not retrying",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			return nil, err
		}
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, c.maxRetries, err)
		}

		// delay = base * 2^attempt * [0.5, 1.0)
		backoff := float64(c.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		c.logger.InfoContext(ctx, "retrying gemini call",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
	}
}

func (c *Completer) parse(resp *genai.GenerateContentResponse) (*generation.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, generation.ErrContentBlocked
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w: empty text", generation.ErrInvalidResponse)
	}

	out := &generation.Response{
		Text:     text.String(),
		Provider: ProviderName,
		Model:    c.model,
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
	}
	return out, nil
}

func toContents(messages []generation.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == generation.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return out
}

func toConfig(req generation.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, generation.ErrContentBlocked) ||
		errors.Is(err, generation.ErrInvalidResponse) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	// Network and unknown errors.
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
