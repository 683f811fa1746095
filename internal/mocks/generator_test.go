package mocks

import (
	"context"
	"testing"

	"github.com/1001stories/stories-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCompleter(t *testing.T) {
	t.Parallel()

	t.Run("default text", func(t *testing.T) {
		m := NewMockCompleterWithText(`{"ok":true}`)
		resp, err := m.Complete(context.Background(), generation.Request{
			Messages: []generation.Message{{Role: generation.RoleUser, Content: "hi"}},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, resp.Text)
		assert.Equal(t, "mock", resp.Provider)
		assert.Equal(t, 1, m.Calls())
		assert.Equal(t, "hi", m.LastRequest().Prompt())
	})

	t.Run("error", func(t *testing.T) {
		m := MockCompleterWithTransientFailure()
		_, err := m.Complete(context.Background(), generation.Request{})
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
	})

	t.Run("custom function wins", func(t *testing.T) {
		m := &MockCompleter{
			Err: generation.ErrGenerationFailed,
			CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
				return &generation.Response{Text: "custom"}, nil
			},
		}
		resp, err := m.Complete(context.Background(), generation.Request{})
		require.NoError(t, err)
		assert.Equal(t, "custom", resp.Text)
	})
}

func TestMockSpeechSynthesizer(t *testing.T) {
	t.Parallel()

	m := &MockSpeechSynthesizer{Audio: []byte{1, 2, 3}}
	speech, err := m.Synthesize(context.Background(), generation.SpeechRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, speech.Audio)
	assert.Equal(t, "audio/mpeg", speech.MIMEType)
}
