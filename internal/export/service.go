package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/platform/redis"
	"github.com/1001stories/stories-api/internal/redact"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/store"
)

// historyLimit is how many requests List returns.
const historyLimit = 10

// Config configures archive production.
type Config struct {
	Dir            string
	TTL            time.Duration
	RateLimit      int
	RateWindow     time.Duration
	ProcessTimeout time.Duration

	// GatherConcurrency caps categories gathered at once.
	GatherConcurrency int
}

// ConfigFrom converts the application export settings.
func ConfigFrom(cfg config.ExportConfig) Config {
	return Config{
		Dir:               cfg.Dir,
		TTL:               time.Duration(cfg.ExpiryDays) * 24 * time.Hour,
		RateLimit:         cfg.RateLimit,
		RateWindow:        time.Hour,
		ProcessTimeout:    time.Duration(cfg.ProcessTimeoutMinutes) * time.Minute,
		GatherConcurrency: 3,
	}
}

// Download is an opened archive ready to stream.
type Download struct {
	File     *os.File
	Filename string
	Size     int64
}

// Service manages export requests and their archives.
type Service struct {
	exports  store.ExportStore
	src      Sources
	limiter  redis.RateLimiter
	notifier service.Notifier
	config   Config
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a Service and its archive directory.
func NewService(
	src Sources,
	limiter redis.RateLimiter,
	notifier service.Notifier,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	if src.Users == nil || src.Submissions == nil || src.Reviews == nil ||
		src.Notifications == nil || src.Exports == nil || src.Deletions == nil {
		return nil, errors.New("export: all source stores are required")
	}
	if cfg.Dir == "" {
		return nil, errors.New("export: directory is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Hour
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 10 * time.Minute
	}
	if cfg.GatherConcurrency <= 0 {
		cfg.GatherConcurrency = 3
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("export: resolve directory: %w", err)
	}
	cfg.Dir = dir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("export: create directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		exports:  src.Exports,
		src:      src,
		limiter:  limiter,
		notifier: notifier,
		config:   cfg,
		logger:   logger.With(slog.String("component", "export_service")),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Create records a PENDING request and starts producing the archive in the
// background. The returned request is the caller's tracking handle;
// processing failures are stored on it and never returned here.
func (s *Service) Create(ctx context.Context, userID uuid.UUID) (*domain.ExportRequest, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.limiter != nil && s.config.RateLimit > 0 {
		ok, err := s.limiter.Allow(ctx, "export:"+userID.String(), s.config.RateLimit, s.config.RateWindow)
		switch {
		case err != nil:
			log.Warn("export rate limiter unavailable", slog.String("error", redact.Error(err)))
		case !ok:
			return nil, ErrRateLimited
		}
	}

	req, err := domain.NewExportRequest(userID, s.config.TTL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	if err := s.exports.Create(ctx, req); err != nil {
		if errors.Is(err, store.ErrActiveExportExists) {
			return nil, ErrExportInProgress
		}
		return nil, fmt.Errorf("failed to create export request: %w", err)
	}

	log.Info("export requested", slog.String("export_id", req.ID.String()))
	s.dispatch(req.ID, log)
	return req, nil
}

// dispatch must be called with s.mu held.
func (s *Service) dispatch(id uuid.UUID, log *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.config.ProcessTimeout)
		defer cancel()
		ctx = logger.WithLogger(ctx, log.With(slog.String("export_id", id.String())))

		if err := s.process(ctx, id); err != nil {
			logger.FromContext(ctx).Error("export failed", slog.String("error", redact.Error(err)))
		}
	}()
}

// Get returns one of the user's requests. Requests of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*domain.ExportRequest, error) {
	req, err := s.exports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, store.ErrExportNotFound
	}
	return req, nil
}

// List returns the user's most recent requests.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*domain.ExportRequest, error) {
	return s.exports.ListByUser(ctx, userID, historyLimit)
}

// DownloadPath is the API path serving req's archive, or "" when there is
// nothing to download.
func DownloadPath(req *domain.ExportRequest) string {
	if !req.IsDownloadable() {
		return ""
	}
	return "/api/user/export/" + req.ID.String() + "/download"
}

// Open validates and opens the archive of one of the user's requests and
// marks it DOWNLOADED. An expired request is marked EXPIRED and its file
// removed. The caller closes Download.File.
func (s *Service) Open(ctx context.Context, userID, id uuid.UUID) (*Download, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Status == domain.ExportStatusExpired {
		return nil, ErrExportExpired
	}
	if !req.IsDownloadable() {
		return nil, ErrNotReady
	}

	path, err := s.resolve(req.FilePath)
	if err != nil {
		log.Error("export path outside export directory",
			slog.String("export_id", req.ID.String()))
		return nil, err
	}

	now := time.Now().UTC()
	if req.IsExpired(now) {
		if err := s.exports.MarkExpired(ctx, req.ID); err != nil {
			log.Error("failed to mark export expired", slog.String("error", redact.Error(err)))
		}
		removeQuietly(path)
		return nil, ErrExportExpired
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrExportExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open export archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat export archive: %w", err)
	}

	if err := s.exports.MarkDownloaded(ctx, req.ID, now); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mark export downloaded: %w", err)
	}

	return &Download{
		File:     f,
		Filename: "1001stories-data-export-" + req.CreatedAt.Format("2006-01-02") + ".zip",
		Size:     info.Size(),
	}, nil
}

// resolve checks that stored lies inside the export directory.
func (s *Service) resolve(stored string) (string, error) {
	path, err := filepath.Abs(stored)
	if err != nil {
		return "", ErrInvalidPath
	}
	if !strings.HasPrefix(path, s.config.Dir+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `<>:"|?*`) || filepath.Ext(name) != ".zip" {
		return "", ErrInvalidPath
	}
	return path, nil
}

// FailStale marks requests left PENDING or PROCESSING for longer than the
// processing timeout as FAILED.
func (s *Service) FailStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.config.ProcessTimeout)
	n, err := s.exports.FailStale(ctx, cutoff, domain.ExportStaleMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale exports: %w", err)
	}
	if n > 0 {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed stale export requests",
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff))
	}
	return n, nil
}

// Wait blocks until every in-flight archive is finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops accepting requests and waits for in-flight archives. If ctx
// ends first, they are cancelled and marked failed.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// process produces the archive for request id.
func (s *Service) process(ctx context.Context, id uuid.UUID) (err error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	start := time.Now()

	var path string
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("export panicked: %v", p)
		}
		if err == nil {
			return
		}
		if path != "" {
			removeQuietly(path)
		}
		if ferr := s.exports.MarkFailed(context.WithoutCancel(ctx), id, redact.Error(err)); ferr != nil {
			log.Error("failed to mark export failed", slog.String("error", redact.Error(ferr)))
		}
	}()

	req, err := s.exports.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load export request: %w", err)
	}
	if err := s.exports.MarkProcessing(ctx, id, start.UTC()); err != nil {
		return fmt.Errorf("failed to mark export processing: %w", err)
	}

	data, err := s.gather(ctx, req.UserID)
	if err != nil {
		return err
	}

	path = filepath.Join(s.config.Dir, "export-"+ulid.Make().String()+".zip")
	size, err := writeArchive(path, data)
	if err != nil {
		return err
	}

	if err := s.exports.MarkCompleted(ctx, id, path, size, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark export completed: %w", err)
	}

	log.Info("export completed",
		slog.Int64("size_bytes", size),
		slog.Duration("duration", time.Since(start)))

	if s.notifier != nil {
		_, nerr := s.notifier.Notify(ctx, req.UserID, domain.NotificationExportReady,
			service.T("notification.export.title"),
			service.T("notification.export.message", req.ExpiresAt.Format("2006-01-02")))
		if nerr != nil {
			log.Warn("failed to notify export ready", slog.String("error", redact.Error(nerr)))
		}
	}
	return nil
}

// gather collects every category concurrently.
func (s *Service) gather(ctx context.Context, userID uuid.UUID) ([]any, error) {
	out := make([]any, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.GatherConcurrency)
	for i, c := range categories {
		g.Go(func() error {
			v, err := c.gather(gctx, s.src, userID)
			if err != nil {
				return fmt.Errorf("gather %s: %w", c.file, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeArchive writes the category files and README to path through a
// temporary file and returns the archive size.
func writeArchive(path string, data []any) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer removeQuietly(tmp.Name())

	if err := fillArchive(tmp, data); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync archive: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return info.Size(), nil
}

func fillArchive(w io.Writer, data []any) error {
	zw := zip.NewWriter(w)

	for i, c := range categories {
		f, err := zw.Create(c.file)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", c.file, err)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data[i]); err != nil {
			return fmt.Errorf("failed to encode %s: %w", c.file, err)
		}
	}

	f, err := zw.Create("README.txt")
	if err != nil {
		return fmt.Errorf("failed to add README: %w", err)
	}
	if _, err := io.WriteString(f, readme(time.Now().UTC())); err != nil {
		return fmt.Errorf("failed to write README: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip: %w", err)
	}
	return nil
}

func readme(at time.Time) string {
	var b strings.Builder
	b.WriteString("1001 Stories personal data export\n")
	b.WriteString("Generated: " + at.Format(time.RFC3339) + "\n\n")
	b.WriteString("This archive contains the personal data held about your account:\n\n")
	for _, c := range categories {
		b.WriteString("- " + c.file + ": " + c.description + "\n")
	}
	b.WriteString("\nAll files are JSON encoded as UTF-8. The download link expires after seven days.\n")
	return b.String()
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
