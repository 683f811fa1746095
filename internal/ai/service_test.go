package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/generation"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/mocks"
)

func newService(t *testing.T, completer generation.Completer, speech generation.SpeechSynthesizer) *ai.Service {
	t.Helper()
	catalog, err := i18n.New()
	require.NoError(t, err)
	svc, err := ai.NewService(completer, speech, catalog, &ai.TokenCounter{}, ai.Config{RequestTimeout: time.Second}, nil)
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresDependencies(t *testing.T) {
	catalog, err := i18n.New()
	require.NoError(t, err)

	_, err = ai.NewService(nil, nil, catalog, nil, ai.Config{}, nil)
	assert.Error(t, err)

	_, err = ai.NewService(&mocks.MockCompleter{}, nil, nil, nil, ai.Config{}, nil)
	assert.Error(t, err)
}

func TestCheckGrammar(t *testing.T) {
	t.Run("parses fenced JSON", func(t *testing.T) {
		completer := mocks.NewMockCompleterWithText("```json\n" +
			`{"grammarScore": 104, "grammarIssues": [{"line": 1, "issue": "tense", "suggestion": "use went"}], "suggestions": ["Read it aloud"]}` +
			"\n```")
		svc := newService(t, completer, nil)

		out, err := svc.CheckGrammar(context.Background(), "Yesterday I go to school.", "en")
		require.NoError(t, err)
		require.True(t, out.OK())
		assert.Equal(t, 100, out.Data().GrammarScore)
		require.Len(t, out.Data().Issues, 1)
		assert.Equal(t, "use went", out.Data().Issues[0].Suggestion)
		assert.Equal(t, []string{"Read it aloud"}, out.Data().Suggestions)

		req := completer.LastRequest()
		assert.True(t, req.JSON)
		assert.Contains(t, req.Prompt(), "Yesterday I go to school.")
	})

	t.Run("rejects blank input without calling the provider", func(t *testing.T) {
		completer := mocks.NewMockCompleterWithText("{}")
		svc := newService(t, completer, nil)

		_, err := svc.CheckGrammar(context.Background(), "   \n\t", "en")
		assert.ErrorIs(t, err, ai.ErrEmptyInput)
		assert.Zero(t, completer.Calls())
	})

	t.Run("rejects input over the limit", func(t *testing.T) {
		completer := mocks.NewMockCompleterWithText("{}")
		svc := newService(t, completer, nil)

		_, err := svc.CheckGrammar(context.Background(), strings.Repeat("a", ai.MaxGrammarLength+1), "en")
		assert.ErrorIs(t, err, ai.ErrInputTooLong)
		assert.Zero(t, completer.Calls())
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		svc := newService(t, mocks.NewMockCompleterWithText(`{"grammarScore": 90}`), nil)

		out, err := svc.CheckGrammar(context.Background(), strings.Repeat("가", ai.MaxGrammarLength), "ko")
		require.NoError(t, err)
		assert.True(t, out.OK())
	})

	t.Run("provider failure degrades with localized fallback", func(t *testing.T) {
		completer := mocks.MockCompleterWithTransientFailure()
		svc := newService(t, completer, nil)

		out, err := svc.CheckGrammar(context.Background(), "Some text.", "ko")
		require.NoError(t, err)
		assert.False(t, out.OK())
		assert.Equal(t, ai.KindDegraded, out.Kind())
		assert.Equal(t, "AI 문법 검사에 실패했습니다. 나중에 다시 시도해주세요.", out.FallbackMessage())
		assert.ErrorIs(t, out.Cause(), generation.ErrTransientFailure)
	})

	t.Run("unparseable reply degrades", func(t *testing.T) {
		svc := newService(t, mocks.NewMockCompleterWithText("I am not JSON"), nil)

		out, err := svc.CheckGrammar(context.Background(), "Some text.", "en")
		require.NoError(t, err)
		assert.False(t, out.OK())
		assert.Equal(t, "AI grammar check failed. Please try again later.", out.FallbackMessage())
		assert.ErrorIs(t, out.Cause(), generation.ErrInvalidResponse)
	})

	t.Run("unknown language falls back to English", func(t *testing.T) {
		svc := newService(t, mocks.MockCompleterWithTransientFailure(), nil)

		out, err := svc.CheckGrammar(context.Background(), "Some text.", "xx")
		require.NoError(t, err)
		assert.Equal(t, "AI grammar check failed. Please try again later.", out.FallbackMessage())
	})

	t.Run("provider panic degrades", func(t *testing.T) {
		completer := &mocks.MockCompleter{
			CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
				panic("boom")
			},
		}
		svc := newService(t, completer, nil)

		out, err := svc.CheckGrammar(context.Background(), "Some text.", "en")
		require.NoError(t, err)
		assert.False(t, out.OK())
		assert.ErrorIs(t, out.Cause(), generation.ErrGenerationFailed)
	})
}

func TestCheckGrammar_Timeout(t *testing.T) {
	completer := &mocks.MockCompleter{
		CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	catalog, err := i18n.New()
	require.NoError(t, err)
	svc, err := ai.NewService(completer, nil, catalog, nil, ai.Config{RequestTimeout: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	out, err := svc.CheckGrammar(context.Background(), "Some text.", "en")
	require.NoError(t, err)
	assert.False(t, out.OK())
	assert.ErrorIs(t, out.Cause(), context.DeadlineExceeded)
}

func TestAnalyzeStructure(t *testing.T) {
	svc := newService(t, mocks.NewMockCompleterWithText(
		`Here you go: {"structureAnalysis": "Clear arc", "strengths": ["hook"], "improvements": ["longer ending", {"suggestion": "name the dog"}], "structureScore": 72.6}`,
	), nil)

	out, err := svc.AnalyzeStructure(context.Background(), "Once upon a time.", "en")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, "Clear arc", out.Data().Analysis)
	assert.Equal(t, 73, out.Data().Score)
	assert.Equal(t, []string{"longer ending", "name the dog"}, out.Data().Improvements)
}

func TestWritingHelp(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		question string
		wantErr  error
	}{
		{name: "question only", question: "How do I start?"},
		{name: "with draft", content: "My story", question: "Is this good?"},
		{name: "missing question", content: "My story", wantErr: ai.ErrEmptyInput},
		{name: "long question", question: strings.Repeat("q", ai.MaxQuestionLength+1), wantErr: ai.ErrInputTooLong},
		{name: "long draft", content: strings.Repeat("c", ai.MaxWritingHelpLength+1), question: "Why?", wantErr: ai.ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := mocks.NewMockCompleterWithText("  Start with a character.  ")
			svc := newService(t, completer, nil)

			out, err := svc.WritingHelp(context.Background(), tt.content, tt.question, "en")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, completer.Calls())
				return
			}
			require.NoError(t, err)
			require.True(t, out.OK())
			assert.Equal(t, "Start with a character.", out.Data().Answer)
			assert.Contains(t, completer.LastRequest().Prompt(), tt.question)
		})
	}
}

func TestSynthesizeSpeech(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		speech := &mocks.MockSpeechSynthesizer{Audio: []byte("mp3")}
		svc := newService(t, &mocks.MockCompleter{}, speech)

		out, err := svc.SynthesizeSpeech(context.Background(), "Hello", "nova", "en")
		require.NoError(t, err)
		require.True(t, out.OK())
		assert.Equal(t, []byte("mp3"), out.Data().AudioData)
		assert.Equal(t, "audio/mpeg", out.Data().MIMEType)
	})

	t.Run("unknown voice", func(t *testing.T) {
		svc := newService(t, &mocks.MockCompleter{}, &mocks.MockSpeechSynthesizer{Audio: []byte("x")})

		_, err := svc.SynthesizeSpeech(context.Background(), "Hello", "robot", "en")
		assert.ErrorIs(t, err, ai.ErrInvalidVoice)
	})

	t.Run("not configured degrades", func(t *testing.T) {
		svc := newService(t, &mocks.MockCompleter{}, nil)

		out, err := svc.SynthesizeSpeech(context.Background(), "Hello", "", "en")
		require.NoError(t, err)
		assert.False(t, out.OK())
		assert.ErrorIs(t, out.Cause(), generation.ErrNotConfigured)
		assert.NotEmpty(t, out.FallbackMessage())
	})

	t.Run("provider error degrades", func(t *testing.T) {
		speech := &mocks.MockSpeechSynthesizer{Err: errors.New("quota")}
		svc := newService(t, &mocks.MockCompleter{}, speech)

		out, err := svc.SynthesizeSpeech(context.Background(), "Hello", "", "en")
		require.NoError(t, err)
		assert.False(t, out.OK())
	})

	t.Run("too long", func(t *testing.T) {
		svc := newService(t, &mocks.MockCompleter{}, &mocks.MockSpeechSynthesizer{Audio: []byte("x")})

		_, err := svc.SynthesizeSpeech(context.Background(), strings.Repeat("a", ai.MaxSpeechLength+1), "", "en")
		assert.ErrorIs(t, err, ai.ErrInputTooLong)
	})
}

func TestAdaptText(t *testing.T) {
	completer := mocks.NewMockCompleterWithText("The cat sat.")
	svc := newService(t, completer, nil)

	out, err := svc.AdaptText(context.Background(), "The feline reclined upon the mat today.", "6-8", "Cat", "en")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, "The cat sat.", out.Data().AdaptedText)
	assert.Equal(t, 7, out.Data().OriginalWords)
	assert.Equal(t, 3, out.Data().AdaptedWords)
	assert.Contains(t, completer.LastRequest().System, "6-8")

	_, err = svc.AdaptText(context.Background(), "text", "99", "Cat", "en")
	assert.ErrorIs(t, err, ai.ErrInvalidAgeBand)
}

func TestReadingAssistant_TrimsHistory(t *testing.T) {
	completer := mocks.NewMockCompleterWithText("The fox is clever.")
	svc := newService(t, completer, nil)

	history := make([]generation.Message, 0, 14)
	for i := 0; i < 7; i++ {
		history = append(history,
			generation.Message{Role: generation.RoleUser, Content: "question"},
			generation.Message{Role: generation.RoleAssistant, Content: "answer"})
	}

	out, err := svc.ReadingAssistant(context.Background(), ai.ReadingRequest{
		BookTitle:   "The Fox",
		BookContent: strings.Repeat("word ", 5000),
		Message:     "Why is the fox clever?",
		History:     history,
		Language:    "en",
	})
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, "The fox is clever.", out.Data().Response)

	req := completer.LastRequest()
	assert.Len(t, req.Messages, ai.MaxReadingHistory+1)
	assert.Equal(t, "Why is the fox clever?", req.Prompt())
	assert.Contains(t, req.System, "The Fox")
	assert.Less(t, len(req.System), 5000)
}

func TestReadingAssistant_MessageLimit(t *testing.T) {
	svc := newService(t, &mocks.MockCompleter{}, nil)

	_, err := svc.ReadingAssistant(context.Background(), ai.ReadingRequest{
		Message: strings.Repeat("m", ai.MaxReadingMessageLength+1),
	})
	assert.ErrorIs(t, err, ai.ErrInputTooLong)
}

func TestReview(t *testing.T) {
	t.Run("success keeps model and score", func(t *testing.T) {
		completer := &mocks.MockCompleter{
			CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
				return &generation.Response{
					Text:     `{"score": 81, "summary": "Lovely", "strengths": ["voice"], "improvements": [{"text": "big dog", "suggestion": "huge dog"}]}`,
					Provider: "gemini",
					Model:    "gemini-test",
				}, nil
			},
		}
		svc := newService(t, completer, nil)

		out, err := svc.Review(context.Background(), domain.ReviewTypeGrammar, "A big dog.", "en")
		require.NoError(t, err)
		require.True(t, out.OK())
		result := out.Data()
		assert.Equal(t, "gemini-test", result.Model)
		require.NotNil(t, result.Score)
		assert.Equal(t, 81, *result.Score)
		assert.Equal(t, []ai.Improvement{{Text: "big dog", Suggestion: "huge dog"}}, result.Improvements)
		assert.JSONEq(t,
			`{"summary":"Lovely","score":81,"strengths":["voice"],"improvements":[{"text":"big dog","suggestion":"huge dog"}]}`,
			string(result.Feedback()))
	})

	t.Run("invalid type", func(t *testing.T) {
		svc := newService(t, &mocks.MockCompleter{}, nil)

		_, err := svc.Review(context.Background(), domain.ReviewType("SPELLING"), "text", "en")
		assert.ErrorIs(t, err, domain.ErrInvalidReviewType)
	})

	t.Run("blocked content degrades", func(t *testing.T) {
		svc := newService(t, mocks.MockCompleterWithContentBlocked(), nil)

		out, err := svc.Review(context.Background(), domain.ReviewTypeStructure, "text", "es")
		require.NoError(t, err)
		assert.False(t, out.OK())
		assert.ErrorIs(t, out.Cause(), generation.ErrContentBlocked)
	})
}

func TestMaxConcurrent(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	completer := &mocks.MockCompleter{
		CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
			entered <- struct{}{}
			<-release
			return &generation.Response{Text: "ok", Provider: "mock"}, nil
		},
	}
	catalog, err := i18n.New()
	require.NoError(t, err)
	svc, err := ai.NewService(completer, nil, catalog, nil,
		ai.Config{RequestTimeout: 200 * time.Millisecond, MaxConcurrent: 1}, nil)
	require.NoError(t, err)

	done := make(chan ai.Outcome[ai.WritingHelp], 1)
	go func() {
		out, _ := svc.WritingHelp(context.Background(), "", "first?", "en")
		done <- out
	}()
	<-entered

	// The only slot is held, so the second call times out waiting.
	out, err := svc.WritingHelp(context.Background(), "", "second?", "en")
	require.NoError(t, err)
	assert.False(t, out.OK())
	assert.Equal(t, 1, completer.Calls())

	close(release)
	<-done
}
