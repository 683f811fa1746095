package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/metrics"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/platform/mail"
	"github.com/1001stories/stories-api/internal/platform/redis"
	"github.com/1001stories/stories-api/internal/redact"
	"github.com/1001stories/stories-api/internal/store"
)

// State is the result of evaluating one digest frequency.
type State string

const (
	StateNotDue    State = "not-due"
	StateDue       State = "due"
	StateSent      State = "sent"
	StateFailed    State = "failed"
	StateDuplicate State = "duplicate"
)

// Result reports one frequency's evaluation.
type Result struct {
	Status State  `json:"status"`
	Period string `json:"period,omitempty"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
}

// Summary reports both frequencies of one evaluation.
type Summary struct {
	At     time.Time `json:"at"`
	Daily  Result    `json:"daily"`
	Weekly Result    `json:"weekly"`
}

// Config sets when digests are due.
type Config struct {
	// TriggerHour is the UTC hour in which digests go out.
	TriggerHour int

	// WeeklyDay is the weekday weekly digests go out on.
	WeeklyDay time.Weekday

	// MaxNotifications caps the notifications listed in one email.
	MaxNotifications int

	// DryRun reports due frequencies as StateDue without claiming keys or
	// sending mail.
	DryRun bool
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ConfigFrom converts the application digest settings.
func ConfigFrom(cfg config.DigestConfig) (Config, error) {
	day, ok := weekdays[strings.ToLower(cfg.WeeklyDay)]
	if !ok {
		return Config{}, fmt.Errorf("unknown weekly digest day %q", cfg.WeeklyDay)
	}
	return Config{
		TriggerHour:      cfg.TriggerHour,
		WeeklyDay:        day,
		MaxNotifications: cfg.MaxNotifications,
	}, nil
}

// Driver evaluates and sends digests.
type Driver struct {
	users         store.UserStore
	notifications store.NotificationStore
	sender        mail.Sender
	locker        redis.Locker
	catalog       *i18n.Catalog
	config        Config
	logger        *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(
	users store.UserStore,
	notifications store.NotificationStore,
	sender mail.Sender,
	locker redis.Locker,
	catalog *i18n.Catalog,
	cfg Config,
	logger *slog.Logger,
) *Driver {
	if cfg.MaxNotifications <= 0 {
		cfg.MaxNotifications = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		users:         users,
		notifications: notifications,
		sender:        sender,
		locker:        locker,
		catalog:       catalog,
		config:        cfg,
		logger:        logger.With(slog.String("component", "digest_driver")),
	}
}

// Evaluate sends whichever digests are due at now. The two frequencies are
// independent: a failure in one never prevents the other.
func (d *Driver) Evaluate(ctx context.Context, now time.Time) Summary {
	now = now.UTC()
	return Summary{
		At:     now,
		Daily:  d.evaluate(ctx, domain.DigestDaily, now),
		Weekly: d.evaluate(ctx, domain.DigestWeekly, now),
	}
}

// IsDue reports whether freq is due at now.
func (d *Driver) IsDue(freq domain.DigestFrequency, now time.Time) bool {
	now = now.UTC()
	if now.Hour() != d.config.TriggerHour {
		return false
	}
	switch freq {
	case domain.DigestDaily:
		return true
	case domain.DigestWeekly:
		return now.Weekday() == d.config.WeeklyDay
	}
	return false
}

// Period identifies the digest window now falls in: a date for daily
// digests and an ISO week for weekly ones.
func Period(freq domain.DigestFrequency, now time.Time) string {
	now = now.UTC()
	if freq == domain.DigestWeekly {
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return now.Format("2006-01-02")
}

// Key is the idempotency key claimed for freq during period.
func Key(freq domain.DigestFrequency, period string) string {
	return "digest:" + strings.ToLower(string(freq)) + ":" + period
}

func periodLength(freq domain.DigestFrequency) time.Duration {
	if freq == domain.DigestWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// window is the span of notifications a digest covers, aligned to UTC
// midnight: yesterday for daily, the previous seven days for weekly.
func window(freq domain.DigestFrequency, now time.Time) (from, to time.Time) {
	to = now.UTC().Truncate(24 * time.Hour)
	if freq == domain.DigestWeekly {
		return to.AddDate(0, 0, -7), to
	}
	return to.AddDate(0, 0, -1), to
}

func (d *Driver) evaluate(ctx context.Context, freq domain.DigestFrequency, now time.Time) (res Result) {
	log := logger.FromContextOrDefault(ctx, d.logger).With(slog.String("frequency", string(freq)))

	if !d.IsDue(freq, now) {
		return Result{Status: StateNotDue}
	}

	res.Period = Period(freq, now)
	if d.config.DryRun {
		res.Status = StateDue
		return res
	}

	key := Key(freq, res.Period)
	token, err := d.locker.TryLock(ctx, key, periodLength(freq))
	if errors.Is(err, redis.ErrLockHeld) {
		log.Info("digest already claimed for period", slog.String("period", res.Period))
		res.Status = StateDuplicate
		metrics.CronRun("digest", string(res.Status))
		return res
	}
	if err != nil {
		return d.fail(log, res, fmt.Errorf("failed to claim digest key: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			res = d.fail(log, res, fmt.Errorf("digest panicked: %v", p))
		}
		if res.Status == StateFailed {
			if uerr := d.locker.Unlock(context.WithoutCancel(ctx), key, token); uerr != nil {
				log.Error("failed to release digest key",
					slog.String("key", key),
					slog.String("error", redact.Error(uerr)))
			}
		}
	}()

	sent, failed, err := d.send(ctx, freq, now)
	res.Sent, res.Failed = sent, failed
	if err != nil {
		return d.fail(log, res, err)
	}

	res.Status = StateSent
	metrics.DigestEmails(string(freq), sent, failed)
	metrics.CronRun("digest", string(res.Status))
	log.Info("digest run complete",
		slog.String("period", res.Period),
		slog.Int("sent", sent),
		slog.Int("failed", failed))
	return res
}

func (d *Driver) fail(log *slog.Logger, res Result, err error) Result {
	res.Status = StateFailed
	res.Error = redact.Error(err)
	metrics.CronRun("digest", string(res.Status))
	log.Error("digest run failed", slog.String("error", res.Error))
	return res
}

// send emails every recipient with unread notifications in the window.
// Individual delivery failures are counted, not returned.
func (d *Driver) send(ctx context.Context, freq domain.DigestFrequency, now time.Time) (sent, failed int, err error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	recipients, err := d.users.ListDigestRecipients(ctx, freq)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list digest recipients: %w", err)
	}

	from, to := window(freq, now)
	for _, u := range recipients {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}

		items, err := d.notifications.ListUnread(ctx, u.ID, from, to, d.config.MaxNotifications)
		if err != nil {
			log.Warn("failed to load notifications for digest",
				slog.String("user_id", u.ID.String()),
				slog.String("error", redact.Error(err)))
			failed++
			continue
		}
		if len(items) == 0 {
			continue
		}

		if err := d.sender.Send(ctx, d.compose(u, freq, items)); err != nil {
			log.Warn("failed to send digest",
				slog.String("user_id", u.ID.String()),
				slog.String("error", redact.Error(err)))
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}

func (d *Driver) compose(u *domain.User, freq domain.DigestFrequency, items []*domain.Notification) mail.Message {
	lang := u.Language
	name := u.Name
	if name == "" {
		name, _, _ = strings.Cut(u.Email, "@")
	}

	var b strings.Builder
	b.WriteString(d.catalog.T(lang, "email.digest.greeting", name))
	b.WriteString("\n\n")
	b.WriteString(d.catalog.T(lang, "email.digest.intro", len(items)))
	b.WriteString("\n\n")
	for _, n := range items {
		fmt.Fprintf(&b, "* %s (%s)\n", n.Title, n.CreatedAt.Format("Jan 2 15:04"))
		if n.Message != "" {
			fmt.Fprintf(&b, "  %s\n", n.Message)
		}
	}
	b.WriteString("\n")
	b.WriteString(d.catalog.T(lang, "email.digest.footer"))
	b.WriteString("\n\n-- \n")
	b.WriteString(d.catalog.T(lang, "email.signature"))

	return mail.Message{
		To:      u.Email,
		ToName:  u.Name,
		Subject: d.catalog.T(lang, "email.digest.subject."+string(freq)),
		Text:    b.String(),
	}
}
