package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/generation"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/store"
)

// AIService is the AI adapter surface used over HTTP. *ai.Service
// implements it.
type AIService interface {
	CheckGrammar(ctx context.Context, text, lang string) (ai.Outcome[ai.GrammarResult], error)
	WritingHelp(ctx context.Context, content, question, lang string) (ai.Outcome[ai.WritingHelp], error)
	SynthesizeSpeech(ctx context.Context, text, voice, lang string) (ai.Outcome[ai.Speech], error)
	AdaptText(ctx context.Context, text, ageBand, title, lang string) (ai.Outcome[ai.Adaptation], error)
	ReadingAssistant(ctx context.Context, in ai.ReadingRequest) (ai.Outcome[ai.ReadingReply], error)
}

// LanguageMatcher picks a supported language for an Accept-Language
// header. *i18n.Catalog implements it.
type LanguageMatcher interface {
	Match(acceptLanguage string) string
	Normalize(lang string) string
}

// AIHandler serves the interactive AI endpoints. Provider failures never
// surface as errors here: the adapter returns a degraded outcome that is
// rendered as a success:false envelope with a localized message.
type AIHandler struct {
	ai          AIService
	submissions SubmissionService
	languages   LanguageMatcher
	logger      *slog.Logger
}

// NewAIHandler creates an AIHandler.
func NewAIHandler(svc AIService, submissions SubmissionService, languages LanguageMatcher, logger *slog.Logger) *AIHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AIHandler")
	}
	return &AIHandler{
		ai:          svc,
		submissions: submissions,
		languages:   languages,
		logger:      logger.With(slog.String("component", "ai_handler")),
	}
}

// CheckGrammar handles POST /api/ai/check-grammar. A degraded check is a
// 500 whose data still carries the fallback message as a suggestion.
func (h *AIHandler) CheckGrammar(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req GrammarRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lang, ok := h.language(w, r, actor, req.SubmissionID)
	if !ok {
		return
	}

	out, err := h.ai.CheckGrammar(r.Context(), req.Content, lang)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if !out.OK() {
		shared.RespondWithJSON(w, r, http.StatusInternalServerError, shared.Envelope{
			Success: false,
			Data:    GrammarFallback{Suggestions: []string{out.FallbackMessage()}},
			Message: out.FallbackMessage(),
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, shared.Envelope{Success: true, Data: out.Data()})
}

// WritingHelp handles POST /api/ai/writing-help.
func (h *AIHandler) WritingHelp(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req WritingHelpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lang, ok := h.language(w, r, actor, req.SubmissionID)
	if !ok {
		return
	}

	out, err := h.ai.WritingHelp(r.Context(), req.Content, req.Question, lang)
	respondOutcome(w, r, out, err)
}

// SynthesizeSpeech handles POST /api/ai/tts.
func (h *AIHandler) SynthesizeSpeech(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	var req SpeechRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lang := h.languages.Match(r.Header.Get("Accept-Language"))
	out, err := h.ai.SynthesizeSpeech(r.Context(), req.Text, req.Voice, lang)
	respondOutcome(w, r, out, err)
}

// AdaptText handles POST /api/ai/adapt-text.
func (h *AIHandler) AdaptText(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	var req AdaptTextRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lang := h.languages.Match(r.Header.Get("Accept-Language"))
	out, err := h.ai.AdaptText(r.Context(), req.Text, req.AgeBand, req.Title, lang)
	respondOutcome(w, r, out, err)
}

// ReadingAssistant handles POST /api/ai/reading-assistant. The book must
// be a published story.
func (h *AIHandler) ReadingAssistant(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req ReadingAssistantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	book, err := h.submissions.Get(r.Context(), actor, uuid.MustParse(req.BookID))
	if err == nil && book.Status != domain.SubmissionStatusPublished {
		err = store.ErrSubmissionNotFound
	}
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	history := make([]generation.Message, len(req.History))
	for i, m := range req.History {
		history[i] = generation.Message{Role: generation.Role(m.Role), Content: m.Content}
	}

	out, err := h.ai.ReadingAssistant(r.Context(), ai.ReadingRequest{
		BookTitle:   book.Title,
		BookContent: book.Content,
		Message:     req.Message,
		History:     history,
		Language:    h.languages.Match(r.Header.Get("Accept-Language")),
	})
	respondOutcome(w, r, out, err)
}

// language resolves the reply language: the story's language when a
// submission is referenced, otherwise Accept-Language.
func (h *AIHandler) language(w http.ResponseWriter, r *http.Request, actor service.Actor, submissionID string) (string, bool) {
	if submissionID == "" {
		return h.languages.Match(r.Header.Get("Accept-Language")), true
	}
	sub, err := h.submissions.Get(r.Context(), actor, uuid.MustParse(submissionID))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return "", false
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Debug("using submission language",
		slog.String("submission_id", sub.ID.String()),
		slog.String("language", sub.Language))
	return h.languages.Normalize(sub.Language), true
}

// respondOutcome writes 200 with the envelope for both outcome branches.
// Input errors are mapped by HandleAPIError.
func respondOutcome[T any](w http.ResponseWriter, r *http.Request, out ai.Outcome[T], err error) {
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if !out.OK() {
		shared.RespondWithJSON(w, r, http.StatusOK, shared.Envelope{
			Success: false,
			Message: out.FallbackMessage(),
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, shared.Envelope{Success: true, Data: out.Data()})
}
