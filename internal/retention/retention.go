// Package retention enforces data retention: hard deletion of accounts past
// their recovery deadline, expiry of export archives, recovery of abandoned
// export requests and removal of old read notifications. Every task writes a
// cleanup log row.
package retention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/metrics"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/redact"
	"github.com/1001stories/stories-api/internal/store"
)

// Task names recorded in cleanup logs and metrics.
const (
	TaskHardDelete        = "hard_delete_users"
	TaskExpireExports     = "expire_exports"
	TaskStaleExports      = "fail_stale_exports"
	TaskReadNotifications = "delete_read_notifications"
)

// maxArchivesPerUser bounds the export history scanned for files when an
// account is hard-deleted.
const maxArchivesPerUser = 1000

// Config sets retention windows.
type Config struct {
	// ReadNotificationAge is how long read notifications are kept.
	ReadNotificationAge time.Duration

	// StaleExportAge is how long an export request may stay PENDING or
	// PROCESSING before it is marked FAILED.
	StaleExportAge time.Duration
}

// ConfigFrom converts the application retention settings.
func ConfigFrom(cfg config.RetentionConfig) Config {
	return Config{
		ReadNotificationAge: time.Duration(cfg.ReadNotificationDays) * 24 * time.Hour,
		StaleExportAge:      time.Duration(cfg.StaleExportMinutes) * time.Minute,
	}
}

// Report summarizes a full retention pass.
type Report struct {
	HardDeleted          int      `json:"hardDeleted"`
	ExportsExpired       int      `json:"exportsExpired"`
	StaleExportsFailed   int      `json:"staleExportsFailed"`
	NotificationsDeleted int      `json:"notificationsDeleted"`
	Errors               []string `json:"errors,omitempty"`
}

// Driver runs retention tasks.
type Driver struct {
	users         store.UserStore
	deletions     store.DeletionStore
	exports       store.ExportStore
	notifications store.NotificationStore
	logs          store.CleanupLogStore
	tx            store.Transactor
	config        Config
	logger        *slog.Logger

	now func() time.Time
}

// NewDriver creates a Driver.
func NewDriver(
	users store.UserStore,
	deletions store.DeletionStore,
	exports store.ExportStore,
	notifications store.NotificationStore,
	logs store.CleanupLogStore,
	tx store.Transactor,
	cfg Config,
	logger *slog.Logger,
) *Driver {
	if cfg.ReadNotificationAge <= 0 {
		cfg.ReadNotificationAge = 180 * 24 * time.Hour
	}
	if cfg.StaleExportAge <= 0 {
		cfg.StaleExportAge = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		users:         users,
		deletions:     deletions,
		exports:       exports,
		notifications: notifications,
		logs:          logs,
		tx:            tx,
		config:        cfg,
		logger:        logger.With(slog.String("component", "retention_driver")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HardDelete permanently removes every account whose deletion request is
// past its recovery deadline. The batch runs in one transaction: any error
// rolls back every deletion and zero is returned.
func (d *Driver) HardDelete(ctx context.Context) (int, error) {
	start := d.now()
	var (
		processed int
		files     []string
	)

	err := d.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		deletions := d.deletions.WithTx(tx)
		users := d.users.WithTx(tx)
		exports := d.exports.WithTx(tx)

		due, err := deletions.ListDue(ctx, start)
		if err != nil {
			return fmt.Errorf("failed to list due deletions: %w", err)
		}
		processed = len(due)

		for _, req := range due {
			history, err := exports.ListByUser(ctx, req.UserID, maxArchivesPerUser)
			if err != nil {
				return fmt.Errorf("failed to list exports of %s: %w", req.UserID, err)
			}
			for _, e := range history {
				if e.FilePath != "" {
					files = append(files, e.FilePath)
				}
			}

			if err := users.Delete(ctx, req.UserID); err != nil && !errors.Is(err, store.ErrUserNotFound) {
				return fmt.Errorf("failed to delete user %s: %w", req.UserID, err)
			}
			if err := deletions.MarkHardDeleted(ctx, req.ID, start); err != nil {
				return fmt.Errorf("failed to mark deletion %s: %w", req.ID, err)
			}
		}
		return nil
	})

	deleted := processed
	if err != nil {
		deleted = 0
	} else {
		// Archive rows went with the users; the files are removed once the
		// deletion is committed.
		for _, path := range files {
			d.removeFile(ctx, path)
		}
	}

	d.record(ctx, TaskHardDelete, start, processed, deleted, err)
	return deleted, err
}

// ExpireExports deletes archives past their expiry and marks their
// requests EXPIRED. It continues past individual failures.
func (d *Driver) ExpireExports(ctx context.Context) (int, error) {
	start := d.now()

	expired, err := d.exports.ListExpired(ctx, start)
	if err != nil {
		err = fmt.Errorf("failed to list expired exports: %w", err)
		d.record(ctx, TaskExpireExports, start, 0, 0, err)
		return 0, err
	}

	var (
		count int
		errs  []error
	)
	for _, req := range expired {
		if req.FilePath != "" {
			d.removeFile(ctx, req.FilePath)
		}
		if err := d.exports.MarkExpired(ctx, req.ID); err != nil {
			errs = append(errs, fmt.Errorf("export %s: %w", req.ID, err))
			continue
		}
		count++
	}

	err = errors.Join(errs...)
	d.record(ctx, TaskExpireExports, start, len(expired), count, err)
	return count, err
}

// FailStaleExports marks export requests stuck in PENDING or PROCESSING
// past the stale age as FAILED, which frees the user to request again.
func (d *Driver) FailStaleExports(ctx context.Context) (int, error) {
	start := d.now()
	n, err := d.exports.FailStale(ctx, start.Add(-d.config.StaleExportAge), domain.ExportStaleMessage)
	if err != nil {
		err = fmt.Errorf("failed to fail stale exports: %w", err)
	}
	d.record(ctx, TaskStaleExports, start, int(n), int(n), err)
	return int(n), err
}

// DeleteReadNotifications removes read notifications older than the
// configured age.
func (d *Driver) DeleteReadNotifications(ctx context.Context) (int, error) {
	start := d.now()
	n, err := d.notifications.DeleteReadBefore(ctx, start.Add(-d.config.ReadNotificationAge))
	if err != nil {
		err = fmt.Errorf("failed to delete read notifications: %w", err)
	}
	d.record(ctx, TaskReadNotifications, start, int(n), int(n), err)
	return int(n), err
}

// RunAll runs every retention task. Tasks are independent; a failure is
// reported in the Report and does not stop the remaining tasks.
func (d *Driver) RunAll(ctx context.Context) Report {
	var report Report
	collect := func(task string, n int, err error) int {
		if err != nil {
			report.Errors = append(report.Errors, task+": "+redact.Error(err))
		}
		return n
	}

	n, err := d.HardDelete(ctx)
	report.HardDeleted = collect(TaskHardDelete, n, err)

	n, err = d.ExpireExports(ctx)
	report.ExportsExpired = collect(TaskExpireExports, n, err)

	n, err = d.FailStaleExports(ctx)
	report.StaleExportsFailed = collect(TaskStaleExports, n, err)

	n, err = d.DeleteReadNotifications(ctx)
	report.NotificationsDeleted = collect(TaskReadNotifications, n, err)

	return report
}

func (d *Driver) removeFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.FromContextOrDefault(ctx, d.logger).Warn("failed to remove export archive",
			slog.String("error", redact.Error(err)))
	}
}

// record writes the cleanup log row and metrics for one task run.
func (d *Driver) record(ctx context.Context, task string, start time.Time, processed, deleted int, runErr error) {
	log := logger.FromContextOrDefault(ctx, d.logger).With(slog.String("task", task))

	completed := d.now()
	entry := &domain.CleanupLog{
		ID:               uuid.New(),
		Task:             task,
		RecordsProcessed: processed,
		RecordsDeleted:   deleted,
		StartedAt:        start,
		CompletedAt:      &completed,
	}

	result := "ok"
	if runErr != nil {
		result = "error"
		entry.ErrorMessage = redact.Error(runErr)
		log.Error("retention task failed", slog.String("error", entry.ErrorMessage))
	} else {
		log.Info("retention task complete",
			slog.Int("processed", processed),
			slog.Int("deleted", deleted),
			slog.Duration("duration", completed.Sub(start)))
	}
	metrics.CronRun(task, result)
	metrics.RetentionDeleted(task, deleted)

	// The log row is written outside the task's transaction so failed runs
	// are recorded too.
	if err := d.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("failed to write cleanup log", slog.String("error", redact.Error(err)))
	}
}
