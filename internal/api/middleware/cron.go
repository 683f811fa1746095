package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/platform/logger"
)

// CronAuth admits requests whose bearer token equals secret. The comparison
// takes the same time whether or not the token matches.
func CronAuth(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				logger.FromContextOrDefault(r.Context(), slog.Default()).
					Warn("rejected cron request", slog.String("path", r.URL.Path))
				shared.RespondWithJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
