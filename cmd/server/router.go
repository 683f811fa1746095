package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1001stories/stories-api/internal/api"
	apiMiddleware "github.com/1001stories/stories-api/internal/api/middleware"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/metrics"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(metrics.Middleware)

	authHandler := api.NewAuthHandler(app.userService, app.jwtService, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.notificationService, app.logger)
	submissionHandler := api.NewSubmissionHandler(app.submissionService, app.reviewService, app.logger)
	aiHandler := api.NewAIHandler(app.ai, app.submissionService, app.catalog, app.logger)
	exportHandler := api.NewExportHandler(app.exportService, app.logger)
	jobHandler := api.NewJobHandler(app.jobService, app.logger)
	cronHandler := api.NewCronHandler(app.digestDriver, app.retentionDriver, app.limiter, api.CronConfig{
		HardDeleteLimit:  app.config.Cron.HardDeleteLimit,
		HardDeleteWindow: time.Duration(app.config.Cron.HardDeleteWindowMinutes) * time.Minute,
	}, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)
		r.Post("/user/restore", authHandler.Restore)
		r.Get("/library", submissionHandler.Library)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/user", userHandler.Me)
			r.Delete("/user", userHandler.Delete)
			r.Patch("/user/preferences", userHandler.UpdatePreferences)
			r.Get("/notifications", userHandler.ListNotifications)
			r.Post("/notifications/{id}/read", userHandler.MarkNotificationRead)

			r.Get("/user/export", exportHandler.List)
			r.Post("/user/export", exportHandler.Create)
			r.Get("/user/export/{id}", exportHandler.Get)
			r.Get("/user/export/{id}/download", exportHandler.Download)

			r.Get("/jobs/{id}", jobHandler.Get)

			r.Route("/submissions", func(r chi.Router) {
				r.Get("/", submissionHandler.ListMine)
				r.Get("/{id}", submissionHandler.Get)
				r.Get("/{id}/reviews", submissionHandler.ListReviews)
				r.With(apiMiddleware.RequireRole(domain.RoleWriter, domain.RoleAdmin)).Group(func(r chi.Router) {
					r.Post("/", submissionHandler.Create)
					r.Post("/{id}/reviews", submissionHandler.RequestReviews)
				})
				r.With(apiMiddleware.RequireRole(domain.RoleAdmin)).
					Patch("/{id}/status", submissionHandler.UpdateStatus)
			})

			r.Route("/ai", func(r chi.Router) {
				r.With(apiMiddleware.RequireRole(domain.RoleWriter, domain.RoleAdmin)).Group(func(r chi.Router) {
					r.Post("/check-grammar", aiHandler.CheckGrammar)
					r.Post("/writing-help", aiHandler.WritingHelp)
				})
				r.With(apiMiddleware.RequireRole(domain.RoleTeacher, domain.RoleWriter, domain.RoleAdmin)).
					Post("/adapt-text", aiHandler.AdaptText)
				r.Post("/tts", aiHandler.SynthesizeSpeech)
				r.Post("/reading-assistant", aiHandler.ReadingAssistant)
			})
		})

		r.Route("/cron", func(r chi.Router) {
			r.Use(apiMiddleware.CronAuth(app.config.Cron.Secret))
			r.Get("/notification-digest", cronHandler.NotificationDigest)
			r.Get("/hard-delete", cronHandler.HardDelete)
			r.Get("/data-retention", cronHandler.DataRetention)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
