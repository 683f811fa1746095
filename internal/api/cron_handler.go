package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/digest"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/platform/redis"
	"github.com/1001stories/stories-api/internal/redact"
	"github.com/1001stories/stories-api/internal/retention"
)

// hardDeleteRateKey is the rate limiter key shared by every caller of the
// hard delete endpoint.
const hardDeleteRateKey = "cron:hard-delete"

// DigestRunner evaluates the notification digests. *digest.Driver
// implements it.
type DigestRunner interface {
	Evaluate(ctx context.Context, now time.Time) digest.Summary
}

// RetentionRunner runs data retention tasks. *retention.Driver implements it.
type RetentionRunner interface {
	HardDelete(ctx context.Context) (int, error)
	RunAll(ctx context.Context) retention.Report
}

// CronConfig throttles the hard delete endpoint.
type CronConfig struct {
	HardDeleteLimit  int
	HardDeleteWindow time.Duration
}

// CronHandler serves the batch endpoints triggered by an external
// scheduler. Routes are expected behind middleware.CronAuth. Responses are
// terse JSON objects; failures are summarized, never raised.
type CronHandler struct {
	digests   DigestRunner
	retention RetentionRunner
	limiter   redis.RateLimiter
	config    CronConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewCronHandler creates a CronHandler. limiter may be nil to disable
// throttling.
func NewCronHandler(
	digests DigestRunner,
	retention RetentionRunner,
	limiter redis.RateLimiter,
	cfg CronConfig,
	logger *slog.Logger,
) *CronHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CronHandler")
	}
	return &CronHandler{
		digests:   digests,
		retention: retention,
		limiter:   limiter,
		config:    cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "cron_handler")),
	}
}

// NotificationDigest handles GET /api/cron/notification-digest.
func (h *CronHandler) NotificationDigest(w http.ResponseWriter, r *http.Request) {
	summary := h.digests.Evaluate(r.Context(), h.now())
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// HardDelete handles GET /api/cron/hard-delete.
func (h *CronHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if h.limiter != nil && h.config.HardDeleteLimit > 0 {
		allowed, err := h.limiter.Allow(r.Context(), hardDeleteRateKey, h.config.HardDeleteLimit, h.config.HardDeleteWindow)
		switch {
		case err != nil:
			log.Warn("cron rate limiter unavailable", slog.String("error", redact.Error(err)))
		case !allowed:
			log.Warn("hard delete rate limited")
			shared.RespondWithJSON(w, r, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
			return
		}
	}

	n, err := h.retention.HardDelete(r.Context())
	if err != nil {
		log.Error("hard delete failed", slog.String("error", redact.Error(err)))
		shared.RespondWithJSON(w, r, http.StatusInternalServerError, map[string]any{
			"error":   "Hard delete failed",
			"deleted": 0,
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int{"deleted": n})
}

// DataRetention handles GET /api/cron/data-retention.
func (h *CronHandler) DataRetention(w http.ResponseWriter, r *http.Request) {
	report := h.retention.RunAll(r.Context())
	status := http.StatusOK
	if len(report.Errors) > 0 {
		status = http.StatusInternalServerError
	}
	shared.RespondWithJSON(w, r, status, report)
}
