package export_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/export"
	"github.com/1001stories/stories-api/internal/mocks"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/store"
)

type notified struct {
	userID  uuid.UUID
	typ     domain.NotificationType
	title   service.Text
	message service.Text
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notified
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, typ domain.NotificationType, title, message service.Text) (*domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notified{userID, typ, title, message})
	return &domain.Notification{ID: uuid.New(), UserID: userID, Type: typ}, nil
}

func (n *recordingNotifier) Calls() []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notified(nil), n.calls...)
}

type fixture struct {
	svc      *export.Service
	user     *domain.User
	exports  *mocks.MockExportStore
	limiter  *mocks.MockRateLimiter
	notifier *recordingNotifier
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	user := &domain.User{
		ID:                 uuid.New(),
		Email:              "amara@example.org",
		Name:               "Amara",
		Role:               domain.RoleWriter,
		Language:           "en",
		EmailNotifications: true,
		DigestFrequency:    domain.DigestWeekly,
		CreatedAt:          time.Now().UTC(),
	}
	sub, err := domain.NewSubmission(user.ID, "The Lost Kite", "Once upon a time a kite flew away.", "en")
	require.NoError(t, err)

	f := &fixture{
		user:     user,
		exports:  mocks.NewMockExportStore(),
		limiter:  &mocks.MockRateLimiter{},
		notifier: &recordingNotifier{},
		dir:      t.TempDir(),
	}
	log, _ := logger.NewTestLogger(t)

	f.svc, err = export.NewService(export.Sources{
		Users:         mocks.NewMockUserStore(user),
		Submissions:   mocks.NewMockSubmissionStore(sub),
		Reviews:       mocks.NewMockReviewStore(),
		Notifications: mocks.NewMockNotificationStore(),
		Exports:       f.exports,
		Deletions:     mocks.NewMockDeletionStore(),
	}, f.limiter, f.notifier, export.Config{
		Dir:            f.dir,
		TTL:            7 * 24 * time.Hour,
		RateLimit:      3,
		RateWindow:     time.Hour,
		ProcessTimeout: time.Minute,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.svc.Close(context.Background()) })
	return f
}

// completed writes an archive file and returns a COMPLETED request for it.
func (f *fixture) completed(t *testing.T, expiresAt time.Time) *domain.ExportRequest {
	t.Helper()
	path := filepath.Join(f.dir, "export-"+uuid.NewString()+".zip")
	require.NoError(t, os.WriteFile(path, []byte("zip"), 0o600))
	done := time.Now().UTC()
	return &domain.ExportRequest{
		ID:          uuid.New(),
		UserID:      f.user.ID,
		Status:      domain.ExportStatusCompleted,
		FilePath:    path,
		FileSize:    3,
		ExpiresAt:   expiresAt,
		CompletedAt: &done,
		CreatedAt:   done,
	}
}

func TestCreateProducesArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Create(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusPending, req.Status)
	f.svc.Wait()

	got, err := f.svc.Get(ctx, f.user.ID, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ExportStatusCompleted, got.Status, got.ErrorMessage)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "/api/user/export/"+req.ID.String()+"/download", export.DownloadPath(got))

	zr, err := zip.OpenReader(got.FilePath)
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"1-personal-info.json",
		"2-preferences.json",
		"3-submissions.json",
		"4-ai-reviews.json",
		"5-notifications.json",
		"6-export-history.json",
		"7-account-deletions.json",
		"README.txt",
	}, names)

	for _, zf := range zr.File {
		if zf.Name != "3-submissions.json" {
			continue
		}
		rc, err := zf.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Contains(t, string(body), "The Lost Kite")
	}

	calls := f.notifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, f.user.ID, calls[0].userID)
	assert.Equal(t, domain.NotificationExportReady, calls[0].typ)
	assert.Equal(t, "notification.export.title", calls[0].title.Key)
	assert.Equal(t, "notification.export.message", calls[0].message.Key)
}

func TestCreateRejections(t *testing.T) {
	t.Run("active request", func(t *testing.T) {
		f := newFixture(t)
		f = rebuild(t, f, &domain.ExportRequest{
			ID:        uuid.New(),
			UserID:    f.user.ID,
			Status:    domain.ExportStatusProcessing,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		})

		_, err := f.svc.Create(context.Background(), f.user.ID)
		assert.ErrorIs(t, err, export.ErrExportInProgress)
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t)
		f.limiter.AllowFn = func(context.Context, string, int, time.Duration) (bool, error) {
			return false, nil
		}

		_, err := f.svc.Create(context.Background(), f.user.ID)
		assert.ErrorIs(t, err, export.ErrRateLimited)
	})

	t.Run("limiter unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.limiter.AllowFn = func(context.Context, string, int, time.Duration) (bool, error) {
			return false, errors.New("redis: connection refused")
		}

		req, err := f.svc.Create(context.Background(), f.user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, req.ID)
	})

	t.Run("after close", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Close(context.Background()))

		_, err := f.svc.Create(context.Background(), f.user.ID)
		assert.ErrorIs(t, err, export.ErrClosed)
	})
}

func TestSecondRequestWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold := make(chan struct{})
	f.exports.MarkCompletedFn = func(context.Context, uuid.UUID, string, int64, time.Time) error {
		<-hold
		return errors.New("stopped")
	}

	_, err := f.svc.Create(ctx, f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.user.ID)
	assert.ErrorIs(t, err, export.ErrExportInProgress)

	close(hold)
	f.svc.Wait()
}

func TestProcessingFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exports.MarkCompletedFn = func(context.Context, uuid.UUID, string, int64, time.Time) error {
		return errors.New("disk full")
	}

	req, err := f.svc.Create(ctx, f.user.ID)
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.Get(ctx, f.user.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "disk full")
	assert.Empty(t, f.notifier.Calls())

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial archive should be removed")
}

func TestEarlyStoreFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exports.MarkProcessingFn = func(context.Context, uuid.UUID, time.Time) error {
		return errors.New("connection reset by peer")
	}

	req, err := f.svc.Create(ctx, f.user.ID)
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.Get(ctx, f.user.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "mark export processing")

	f.exports.MarkProcessingFn = nil
	again, err := f.svc.Create(ctx, f.user.ID)
	require.NoError(t, err, "a failed request must not block the next one")
	f.svc.Wait()

	got, err = f.svc.Get(ctx, f.user.ID, again.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCompleted, got.Status, got.ErrorMessage)
}

func TestFailStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stuck := &domain.ExportRequest{
		ID:        uuid.New(),
		UserID:    f.user.ID,
		Status:    domain.ExportStatusPending,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	f = rebuild(t, f, stuck)

	_, err := f.svc.Create(ctx, f.user.ID)
	require.ErrorIs(t, err, export.ErrExportInProgress)

	n, err := f.svc.FailStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.svc.Get(ctx, f.user.ID, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, got.Status)
	assert.Equal(t, domain.ExportStaleMessage, got.ErrorMessage)

	_, err = f.svc.Create(ctx, f.user.ID)
	assert.NoError(t, err)
	f.svc.Wait()
}

func TestFailStaleKeepsRecentRequests(t *testing.T) {
	f := newFixture(t)
	recent := &domain.ExportRequest{
		ID:        uuid.New(),
		UserID:    f.user.ID,
		Status:    domain.ExportStatusPending,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		CreatedAt: time.Now().Add(-time.Minute),
	}
	f = rebuild(t, f, recent)

	n, err := f.svc.FailStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetOtherUsersRequest(t *testing.T) {
	f := newFixture(t)
	req := f.completed(t, time.Now().Add(time.Hour))
	req.UserID = uuid.New()
	f = rebuild(t, f, req)

	_, err := f.svc.Get(context.Background(), f.user.ID, req.ID)
	assert.ErrorIs(t, err, store.ErrExportNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("marks downloaded", func(t *testing.T) {
		f := newFixture(t)
		req := f.completed(t, time.Now().Add(time.Hour))
		f = rebuild(t, f, req)

		dl, err := f.svc.Open(ctx, f.user.ID, req.ID)
		require.NoError(t, err)
		defer dl.File.Close()
		assert.Equal(t, int64(3), dl.Size)
		assert.Regexp(t, `^1001stories-data-export-\d{4}-\d{2}-\d{2}\.zip$`, dl.Filename)

		got, err := f.svc.Get(ctx, f.user.ID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExportStatusDownloaded, got.Status)
		assert.NotNil(t, got.DownloadedAt)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		req := f.completed(t, time.Now().Add(-time.Minute))
		path := req.FilePath
		f = rebuild(t, f, req)

		_, err := f.svc.Open(ctx, f.user.ID, req.ID)
		assert.ErrorIs(t, err, export.ErrExportExpired)

		got, err := f.svc.Get(ctx, f.user.ID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExportStatusExpired, got.Status)
		assert.NoFileExists(t, path)
	})

	t.Run("file missing", func(t *testing.T) {
		f := newFixture(t)
		req := f.completed(t, time.Now().Add(time.Hour))
		require.NoError(t, os.Remove(req.FilePath))
		f = rebuild(t, f, req)

		_, err := f.svc.Open(ctx, f.user.ID, req.ID)
		assert.ErrorIs(t, err, export.ErrExportExpired)
	})

	t.Run("path outside directory", func(t *testing.T) {
		f := newFixture(t)
		req := f.completed(t, time.Now().Add(time.Hour))
		req.FilePath = filepath.Join(f.dir, "..", "secrets.zip")
		f = rebuild(t, f, req)

		_, err := f.svc.Open(ctx, f.user.ID, req.ID)
		assert.ErrorIs(t, err, export.ErrInvalidPath)
	})

	t.Run("not ready", func(t *testing.T) {
		f := newFixture(t)
		req := &domain.ExportRequest{
			ID:        uuid.New(),
			UserID:    f.user.ID,
			Status:    domain.ExportStatusProcessing,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		}
		f = rebuild(t, f, req)

		_, err := f.svc.Open(ctx, f.user.ID, req.ID)
		assert.ErrorIs(t, err, export.ErrNotReady)
		assert.Empty(t, export.DownloadPath(req))
	})
}

// rebuild replaces f's service with one whose export store holds req, using
// the same archive directory and user.
func rebuild(t *testing.T, f *fixture, req *domain.ExportRequest) *fixture {
	t.Helper()
	f.exports = mocks.NewMockExportStore(req)
	log, _ := logger.NewTestLogger(t)

	svc, err := export.NewService(export.Sources{
		Users:         mocks.NewMockUserStore(f.user),
		Submissions:   mocks.NewMockSubmissionStore(),
		Reviews:       mocks.NewMockReviewStore(),
		Notifications: mocks.NewMockNotificationStore(),
		Exports:       f.exports,
		Deletions:     mocks.NewMockDeletionStore(),
	}, f.limiter, f.notifier, export.Config{Dir: f.dir}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	f.svc = svc
	return f
}

func TestList(t *testing.T) {
	f := newFixture(t)
	req := f.completed(t, time.Now().Add(time.Hour))
	f = rebuild(t, f, req)

	got, err := f.svc.List(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, req.ID, got[0].ID)
}
