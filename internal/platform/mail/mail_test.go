package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/platform/logger"
)

func testConfig() config.MailConfig {
	return config.MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "noreply@1001stories.org",
		FromName: "1001 Stories",
	}
}

func TestNewSender_DisabledWithoutHost(t *testing.T) {
	log, buf := logger.NewTestLogger(t)
	cfg := testConfig()
	cfg.Host = ""

	sender, err := NewSender(cfg, log)
	require.NoError(t, err)
	require.IsType(t, &LogSender{}, sender)

	err = sender.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Text: "Body"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "email delivery disabled")
}

func TestSMTPSender_Build(t *testing.T) {
	sender, err := NewSMTPSender(testConfig(), nil)
	require.NoError(t, err)

	msg, err := sender.build(Message{
		To:      "reader@example.com",
		ToName:  "Reader",
		Subject: "Your daily digest",
		Text:    "You have 2 unread notifications.",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = msg.WriteTo(&out)
	require.NoError(t, err)

	raw := out.String()
	assert.Contains(t, raw, "Subject: Your daily digest")
	assert.Contains(t, raw, "reader@example.com")
	assert.Contains(t, raw, "noreply@1001stories.org")
	assert.Contains(t, raw, "You have 2 unread notifications.")
}

func TestMessageValidation(t *testing.T) {
	sender, err := NewSMTPSender(testConfig(), nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  Message
	}{
		{name: "no recipient", msg: Message{Subject: "s"}},
		{name: "no subject", msg: Message{To: "a@example.com"}},
		{name: "bad address", msg: Message{To: "not-an-address", Subject: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sender.build(tt.msg)
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}
