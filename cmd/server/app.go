package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/digest"
	"github.com/1001stories/stories-api/internal/export"
	"github.com/1001stories/stories-api/internal/generation"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/platform/gemini"
	"github.com/1001stories/stories-api/internal/platform/mail"
	"github.com/1001stories/stories-api/internal/platform/openai"
	"github.com/1001stories/stories-api/internal/platform/postgres"
	"github.com/1001stories/stories-api/internal/platform/redis"
	"github.com/1001stories/stories-api/internal/retention"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/service/auth"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
)

// application holds every shared dependency. It is built once at startup
// and passed explicitly to the router and the queue.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *goredis.Client

	userStore         store.UserStore
	submissionStore   store.SubmissionStore
	reviewStore       store.ReviewStore
	notificationStore store.NotificationStore
	exportStore       store.ExportStore
	deletionStore     store.DeletionStore

	jwtService auth.JWTService
	catalog    *i18n.Catalog
	limiter    redis.RateLimiter
	ai         *ai.Service
	queue      *task.Queue

	userService         *service.UserService
	submissionService   *service.SubmissionService
	reviewService       *service.ReviewService
	jobService          *service.JobService
	notificationService *service.NotificationService
	exportService       *export.Service
	digestDriver        *digest.Driver
	retentionDriver     *retention.Driver
}

// newApplication creates the application with all dependencies initialized.
// db and rdb must already be connected.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB, rdb *goredis.Client) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.catalog, err = i18n.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}

	app.userStore = postgres.NewPostgresUserStore(db, cfg.Auth.BCryptCost, logger)
	app.submissionStore = postgres.NewPostgresSubmissionStore(db, logger)
	app.reviewStore = postgres.NewPostgresReviewStore(db, logger)
	app.notificationStore = postgres.NewPostgresNotificationStore(db, logger)
	app.exportStore = postgres.NewPostgresExportStore(db, logger)
	app.deletionStore = postgres.NewPostgresDeletionStore(db, logger)
	tx := store.DBTransactor{DB: db}

	app.limiter = redis.NewRateLimiter(rdb, "stories:ratelimit:")
	locker := redis.NewLocker(rdb)

	sender, err := mail.NewSender(cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}

	completer, speech, err := newProviders(ctx, cfg.AI, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := ai.NewTokenCounter(ai.DefaultEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, using character estimates",
			slog.String("error", err.Error()))
	}
	app.ai, err = ai.NewService(completer, speech, app.catalog, tokens, ai.ConfigFrom(cfg.AI), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI service: %w", err)
	}

	app.queue = task.NewQueue(postgres.NewPostgresJobStore(db), task.Config{
		PollInterval:       time.Duration(cfg.Task.PollIntervalSeconds) * time.Second,
		StaleJobAge:        time.Duration(cfg.Task.StaleJobMinutes) * time.Minute,
		StaleCheckInterval: time.Duration(cfg.Task.StaleCheckIntervalMinutes) * time.Minute,
		JobTimeout:         time.Duration(cfg.Task.JobTimeoutMinutes) * time.Minute,
	}, logger)

	app.notificationService = service.NewNotificationService(
		app.notificationStore,
		app.userStore,
		app.queue,
		sender,
		app.catalog,
		logger,
	)
	app.userService = service.NewUserService(
		app.userStore,
		app.deletionStore,
		tx,
		auth.NewBcryptVerifier(),
		time.Duration(cfg.Retention.RecoveryDays)*24*time.Hour,
		logger,
	)
	app.submissionService = service.NewSubmissionService(app.submissionStore, app.notificationService, logger)
	app.reviewService = service.NewReviewService(
		app.submissionService,
		app.reviewStore,
		app.ai,
		app.queue,
		app.notificationService,
		logger,
	)

	app.jobService = service.NewJobService(app.queue, app.submissionService, logger)

	app.queue.Register(task.TypeAIReview, cfg.Task.AIReviewWorkers, app.reviewService.HandleReviewJob)
	app.queue.Register(task.TypeEmailNotifications, cfg.Task.EmailWorkers, app.notificationService.HandleEmailJob)

	app.exportService, err = export.NewService(export.Sources{
		Users:         app.userStore,
		Submissions:   app.submissionStore,
		Reviews:       app.reviewStore,
		Notifications: app.notificationStore,
		Exports:       app.exportStore,
		Deletions:     app.deletionStore,
	}, app.limiter, app.notificationService, export.ConfigFrom(cfg.Export), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create export service: %w", err)
	}

	digestCfg, err := digest.ConfigFrom(cfg.Digest)
	if err != nil {
		return nil, fmt.Errorf("invalid digest configuration: %w", err)
	}
	app.digestDriver = digest.NewDriver(app.userStore, app.notificationStore, sender, locker, app.catalog, digestCfg, logger)

	app.retentionDriver = retention.NewDriver(
		app.userStore,
		app.deletionStore,
		app.exportStore,
		app.notificationStore,
		postgres.NewPostgresCleanupLogStore(db),
		tx,
		retention.ConfigFrom(cfg.Retention),
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// newProviders builds the text completer chain and the speech synthesizer.
// The fallback provider, when configured, is tried after the primary. Speech
// needs an OpenAI key and is left nil without one.
func newProviders(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (generation.Completer, generation.SpeechSynthesizer, error) {
	build := func(name string) (generation.Completer, error) {
		switch name {
		case gemini.ProviderName:
			return gemini.NewCompleter(ctx, cfg, logger)
		case openai.ProviderName:
			client, err := openai.NewClient(cfg)
			if err != nil {
				return nil, err
			}
			return openai.NewCompleter(client, cfg.OpenAIModel, logger), nil
		}
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, name)
	}

	primary, err := build(cfg.Provider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s provider: %w", cfg.Provider, err)
	}

	var fallbacks []generation.Completer
	if cfg.FallbackProvider != "" {
		fb, err := build(cfg.FallbackProvider)
		if err != nil {
			logger.Warn("fallback AI provider unavailable",
				slog.String("provider", cfg.FallbackProvider),
				slog.String("error", err.Error()))
		} else {
			fallbacks = append(fallbacks, fb)
		}
	}

	var speech generation.SpeechSynthesizer
	if cfg.OpenAIAPIKey != "" {
		client, err := openai.NewClient(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize speech provider: %w", err)
		}
		speech = openai.NewSpeech(client, cfg.TTSModel, logger)
	} else {
		logger.Warn("OpenAI API key not set, text-to-speech will degrade")
	}

	logger.Info("AI providers initialized",
		slog.String("provider", cfg.Provider),
		slog.Int("fallbacks", len(fallbacks)))
	return generation.NewChain(primary, fallbacks...), speech, nil
}

// Run starts the job queue and serves HTTP until ctx is cancelled or a
// shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	if _, err := app.exportService.FailStale(ctx); err != nil {
		app.logger.Error("failed to recover stale export requests", slog.String("error", err.Error()))
	}

	if err := app.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops background work and releases connections.
func (app *application) cleanup() {
	if app.queue != nil {
		app.queue.Stop()
	}

	if app.exportService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := app.exportService.Close(ctx); err != nil {
			app.logger.Error("Export service did not stop cleanly", slog.String("error", err.Error()))
		}
		cancel()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis connection", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("Application shutdown completed")
}
