package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/digest"
	"github.com/1001stories/stories-api/internal/mocks"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/retention"
)

func TestNotificationDigest(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	digests := &fakeDigests{
		EvaluateFn: func(_ context.Context, now time.Time) digest.Summary {
			return digest.Summary{
				At:     now,
				Daily:  digest.Result{Status: digest.StateSent, Period: "2026-10-15", Sent: 3, Failed: 1},
				Weekly: digest.Result{Status: digest.StateNotDue},
			}
		},
	}
	h := NewCronHandler(digests, &fakeRetention{}, nil, CronConfig{}, log)

	rr := serve(h.NotificationDigest, request(t, http.MethodGet, "/api/cron/notification-digest", nil, nil, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[digest.Summary](t, rr)
	assert.Equal(t, 3, summary.Daily.Sent)
	assert.Equal(t, 1, summary.Daily.Failed)
	assert.Equal(t, digest.StateNotDue, summary.Weekly.Status)
}

func TestHardDelete(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	cfg := CronConfig{HardDeleteLimit: 2, HardDeleteWindow: time.Hour}

	t.Run("rate limited after limit", func(t *testing.T) {
		runs := 0
		ret := &fakeRetention{
			HardDeleteFn: func(context.Context) (int, error) {
				runs++
				return 4, nil
			},
		}
		h := NewCronHandler(&fakeDigests{}, ret, &mocks.MockRateLimiter{}, cfg, log)

		for i := 0; i < 2; i++ {
			rr := serve(h.HardDelete, request(t, http.MethodGet, "/api/cron/hard-delete", nil, nil, nil))
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, map[string]int{"deleted": 4}, decode[map[string]int](t, rr))
		}

		rr := serve(h.HardDelete, request(t, http.MethodGet, "/api/cron/hard-delete", nil, nil, nil))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "Too many requests", errorMessage(t, rr))
		assert.Equal(t, 2, runs)
	})

	t.Run("limiter unavailable", func(t *testing.T) {
		limiter := &mocks.MockRateLimiter{
			AllowFn: func(context.Context, string, int, time.Duration) (bool, error) {
				return false, errors.New("redis: connection refused")
			},
		}
		ret := &fakeRetention{
			HardDeleteFn: func(context.Context) (int, error) { return 0, nil },
		}
		h := NewCronHandler(&fakeDigests{}, ret, limiter, cfg, log)

		rr := serve(h.HardDelete, request(t, http.MethodGet, "/api/cron/hard-delete", nil, nil, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("failure is summarized", func(t *testing.T) {
		ret := &fakeRetention{
			HardDeleteFn: func(context.Context) (int, error) {
				return 0, errors.New("pq: deadlock detected on postgres://admin:hunter22@db/stories")
			},
		}
		h := NewCronHandler(&fakeDigests{}, ret, nil, cfg, log)

		rr := serve(h.HardDelete, request(t, http.MethodGet, "/api/cron/hard-delete", nil, nil, nil))
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Hard delete failed","deleted":0}`, rr.Body.String())
	})
}

func TestDataRetention(t *testing.T) {
	log, _ := logger.NewTestLogger(t)

	tests := []struct {
		name   string
		report retention.Report
		status int
	}{
		{"clean run", retention.Report{HardDeleted: 1, ExportsExpired: 2, NotificationsDeleted: 30}, http.StatusOK},
		{"partial failure", retention.Report{ExportsExpired: 2, Errors: []string{"hard delete failed"}}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret := &fakeRetention{
				RunAllFn: func(context.Context) retention.Report { return tt.report },
			}
			h := NewCronHandler(&fakeDigests{}, ret, nil, CronConfig{}, log)

			rr := serve(h.DataRetention, request(t, http.MethodGet, "/api/cron/data-retention", nil, nil, nil))
			require.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.report, decode[retention.Report](t, rr))
		})
	}
}
