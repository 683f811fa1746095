package digest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/digest"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/mocks"
	"github.com/1001stories/stories-api/internal/platform/mail"
)

var (
	monday8  = time.Date(2026, 10, 12, 8, 15, 0, 0, time.UTC)
	tuesday8 = time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)
	tuesday9 = time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	driver        *digest.Driver
	users         *mocks.MockUserStore
	notifications *mocks.MockNotificationStore
	sender        *mocks.MockMailSender
	locker        *mocks.MockLocker
}

func newFixture(t *testing.T, cfg digest.Config) *fixture {
	t.Helper()
	catalog, err := i18n.New()
	require.NoError(t, err)

	f := &fixture{
		users:         mocks.NewMockUserStore(),
		notifications: mocks.NewMockNotificationStore(),
		sender:        &mocks.MockMailSender{},
		locker:        mocks.NewMockLocker(),
	}
	f.driver = digest.NewDriver(f.users, f.notifications, f.sender, f.locker, catalog, cfg, nil)
	return f
}

func defaultConfig() digest.Config {
	return digest.Config{TriggerHour: 8, WeeklyDay: time.Monday, MaxNotifications: 20}
}

// addRecipient stores a user on freq with one unread notification created
// at created.
func (f *fixture) addRecipient(t *testing.T, email string, freq domain.DigestFrequency, created time.Time) *domain.User {
	t.Helper()
	u, err := domain.NewUser(email, "correct horse battery", domain.RoleLearner)
	require.NoError(t, err)
	u.DigestFrequency = freq
	u.Name = "Reader"
	require.NoError(t, f.users.Create(context.Background(), u))

	n, err := domain.NewNotification(u.ID, domain.NotificationReviewReady, "AI feedback is ready", "New GRAMMAR feedback")
	require.NoError(t, err)
	n.CreatedAt = created
	require.NoError(t, f.notifications.Create(context.Background(), n))
	return u
}

func TestEvaluate_NotDueOutsideTriggerHour(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addRecipient(t, "daily@example.com", domain.DigestDaily, tuesday9.Add(-20*time.Hour))

	summary := f.driver.Evaluate(context.Background(), tuesday9)

	assert.Equal(t, digest.Result{Status: digest.StateNotDue}, summary.Daily)
	assert.Equal(t, digest.Result{Status: digest.StateNotDue}, summary.Weekly)
	assert.Empty(t, f.sender.Sent())
}

func TestEvaluate_DailyOnly(t *testing.T) {
	f := newFixture(t, defaultConfig())
	yesterday := tuesday8.Add(-12 * time.Hour)
	daily := f.addRecipient(t, "daily@example.com", domain.DigestDaily, yesterday)
	f.addRecipient(t, "weekly@example.com", domain.DigestWeekly, yesterday)
	f.addRecipient(t, "stale@example.com", domain.DigestDaily, tuesday8.Add(-72*time.Hour))
	f.addRecipient(t, "today@example.com", domain.DigestDaily, tuesday8.Add(-time.Minute))

	summary := f.driver.Evaluate(context.Background(), tuesday8)

	assert.Equal(t, digest.StateSent, summary.Daily.Status)
	assert.Equal(t, "2026-10-13", summary.Daily.Period)
	assert.Equal(t, 1, summary.Daily.Sent)
	assert.Zero(t, summary.Daily.Failed)
	assert.Equal(t, digest.StateNotDue, summary.Weekly.Status)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, daily.Email, sent[0].To)
	assert.Equal(t, "Your daily 1001 Stories update", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "Hello Reader,")
	assert.Contains(t, sent[0].Text, "You have 1 unread notifications.")
	assert.Contains(t, sent[0].Text, "AI feedback is ready")

	assert.True(t, f.locker.Held("digest:daily:2026-10-13"))
	assert.Equal(t, 24*time.Hour, f.locker.TTL("digest:daily:2026-10-13"))
}

func TestEvaluate_WeeklyDay(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addRecipient(t, "daily@example.com", domain.DigestDaily, monday8.Add(-10*time.Hour))
	f.addRecipient(t, "weekly@example.com", domain.DigestWeekly, monday8.Add(-5*24*time.Hour))

	summary := f.driver.Evaluate(context.Background(), monday8)

	assert.Equal(t, digest.StateSent, summary.Daily.Status)
	assert.Equal(t, 1, summary.Daily.Sent)
	assert.Equal(t, digest.StateSent, summary.Weekly.Status)
	assert.Equal(t, "2026-W42", summary.Weekly.Period)
	assert.Equal(t, 1, summary.Weekly.Sent)
	assert.Equal(t, 7*24*time.Hour, f.locker.TTL("digest:weekly:2026-W42"))
	assert.Len(t, f.sender.Sent(), 2)
}

func TestEvaluate_DuplicateInvocation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addRecipient(t, "daily@example.com", domain.DigestDaily, tuesday8.Add(-12*time.Hour))
	ctx := context.Background()

	first := f.driver.Evaluate(ctx, tuesday8)
	second := f.driver.Evaluate(ctx, tuesday8.Add(20*time.Minute))

	assert.Equal(t, digest.StateSent, first.Daily.Status)
	assert.Equal(t, digest.StateDuplicate, second.Daily.Status)
	assert.Zero(t, second.Daily.Sent)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestEvaluate_FailureIsolatedPerFrequency(t *testing.T) {
	f := newFixture(t, defaultConfig())
	weekly := f.addRecipient(t, "weekly@example.com", domain.DigestWeekly, monday8.Add(-3*24*time.Hour))
	f.users.ListDigestRecipientsFn = func(_ context.Context, freq domain.DigestFrequency) ([]*domain.User, error) {
		if freq == domain.DigestDaily {
			return nil, errors.New("connection reset")
		}
		return []*domain.User{weekly}, nil
	}

	summary := f.driver.Evaluate(context.Background(), monday8)

	assert.Equal(t, digest.StateFailed, summary.Daily.Status)
	assert.NotEmpty(t, summary.Daily.Error)
	assert.False(t, f.locker.Held("digest:daily:2026-10-12"), "failed run releases its key")

	assert.Equal(t, digest.StateSent, summary.Weekly.Status)
	assert.Equal(t, 1, summary.Weekly.Sent)
}

func TestEvaluate_CountsDeliveryFailures(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addRecipient(t, "ok@example.com", domain.DigestDaily, tuesday8.Add(-6*time.Hour))
	f.addRecipient(t, "bounce@example.com", domain.DigestDaily, tuesday8.Add(-6*time.Hour))
	f.sender.SendFn = func(_ context.Context, msg mail.Message) error {
		if msg.To == "bounce@example.com" {
			return errors.New("550 mailbox unavailable")
		}
		return nil
	}

	summary := f.driver.Evaluate(context.Background(), tuesday8)

	assert.Equal(t, digest.StateSent, summary.Daily.Status)
	assert.Equal(t, 1, summary.Daily.Sent)
	assert.Equal(t, 1, summary.Daily.Failed)
}

func TestEvaluate_LockerUnavailable(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addRecipient(t, "daily@example.com", domain.DigestDaily, tuesday8.Add(-6*time.Hour))
	f.locker.TryLockFn = func(context.Context, string, time.Duration) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}

	summary := f.driver.Evaluate(context.Background(), tuesday8)

	assert.Equal(t, digest.StateFailed, summary.Daily.Status)
	assert.Empty(t, f.sender.Sent())
}

func TestEvaluate_DryRun(t *testing.T) {
	cfg := defaultConfig()
	cfg.DryRun = true
	f := newFixture(t, cfg)
	f.addRecipient(t, "daily@example.com", domain.DigestDaily, tuesday8.Add(-6*time.Hour))

	summary := f.driver.Evaluate(context.Background(), tuesday8)

	assert.Equal(t, digest.StateDue, summary.Daily.Status)
	assert.Empty(t, f.sender.Sent())
	assert.False(t, f.locker.Held(digest.Key(domain.DigestDaily, summary.Daily.Period)))
}

func TestPeriodAndKey(t *testing.T) {
	newYear := time.Date(2027, 1, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, "2027-01-01", digest.Period(domain.DigestDaily, newYear))
	assert.Equal(t, "2026-W53", digest.Period(domain.DigestWeekly, newYear))
	assert.Equal(t, "digest:weekly:2026-W53", digest.Key(domain.DigestWeekly, "2026-W53"))
}

func TestConfigFrom(t *testing.T) {
	cfg, err := digest.ConfigFrom(config.DigestConfig{TriggerHour: 6, WeeklyDay: "Friday", MaxNotifications: 5})
	require.NoError(t, err)
	assert.Equal(t, time.Friday, cfg.WeeklyDay)
	assert.Equal(t, 6, cfg.TriggerHour)

	_, err = digest.ConfigFrom(config.DigestConfig{WeeklyDay: "someday"})
	assert.Error(t, err)
}

func TestIsDue(t *testing.T) {
	f := newFixture(t, defaultConfig())
	nonUTC := time.FixedZone("KST", 9*60*60)

	assert.True(t, f.driver.IsDue(domain.DigestDaily, tuesday8))
	assert.False(t, f.driver.IsDue(domain.DigestWeekly, tuesday8))
	assert.True(t, f.driver.IsDue(domain.DigestWeekly, monday8.In(nonUTC)))
	assert.False(t, f.driver.IsDue(domain.DigestNone, monday8))
	assert.False(t, f.driver.IsDue(domain.DigestDaily, time.Date(2026, 10, 13, 8, 0, 0, 0, nonUTC)))
}
