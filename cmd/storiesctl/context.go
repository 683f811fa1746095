package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql

	"github.com/1001stories/stories-api/internal/config"
	"github.com/1001stories/stories-api/internal/digest"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/platform/mail"
	"github.com/1001stories/stories-api/internal/platform/postgres"
	"github.com/1001stories/stories-api/internal/platform/redis"
	"github.com/1001stories/stories-api/internal/retention"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
)

// commandContext lazily opens the resources a subcommand needs and closes
// them after it runs.
type commandContext struct {
	jsonFlag *bool

	configOnce sync.Once
	config     *config.Config
	logger     *slog.Logger
	configErr  error

	db    *sql.DB
	redis *goredis.Client
}

func newCommandContext(jsonFlag *bool) *commandContext {
	return &commandContext{jsonFlag: jsonFlag}
}

func (c *commandContext) json() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureConfig() (*config.Config, *slog.Logger, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		c.logger, c.configErr = logger.Setup(cfg.Server)
		c.config = cfg
	})
	return c.config, c.logger, c.configErr
}

func (c *commandContext) database(ctx context.Context) (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, _, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	c.db = db
	return db, nil
}

func (c *commandContext) redisClient(ctx context.Context) (*goredis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}
	cfg, _, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	cli, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.redis = cli
	return cli, nil
}

func (c *commandContext) digestDriver(ctx context.Context) (*digest.Driver, error) {
	db, err := c.database(ctx)
	if err != nil {
		return nil, err
	}
	rdb, err := c.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	cfg, log, _ := c.ensureConfig()

	sender, err := mail.NewSender(cfg.Mail, log)
	if err != nil {
		return nil, err
	}
	catalog, err := i18n.New()
	if err != nil {
		return nil, err
	}
	digestCfg, err := digest.ConfigFrom(cfg.Digest)
	if err != nil {
		return nil, err
	}

	return digest.NewDriver(
		postgres.NewPostgresUserStore(db, cfg.Auth.BCryptCost, log),
		postgres.NewPostgresNotificationStore(db, log),
		sender,
		redis.NewLocker(rdb),
		catalog,
		digestCfg,
		log,
	), nil
}

func (c *commandContext) retentionDriver(ctx context.Context) (*retention.Driver, error) {
	db, err := c.database(ctx)
	if err != nil {
		return nil, err
	}
	cfg, log, _ := c.ensureConfig()

	return retention.NewDriver(
		postgres.NewPostgresUserStore(db, cfg.Auth.BCryptCost, log),
		postgres.NewPostgresDeletionStore(db, log),
		postgres.NewPostgresExportStore(db, log),
		postgres.NewPostgresNotificationStore(db, log),
		postgres.NewPostgresCleanupLogStore(db),
		store.DBTransactor{DB: db},
		retention.ConfigFrom(cfg.Retention),
		log,
	), nil
}

func (c *commandContext) jobQueue(ctx context.Context) (*task.Queue, error) {
	db, err := c.database(ctx)
	if err != nil {
		return nil, err
	}
	_, log, _ := c.ensureConfig()
	return task.NewQueue(postgres.NewPostgresJobStore(db), task.Config{}, log), nil
}

func (c *commandContext) close() {
	if c.redis != nil {
		_ = c.redis.Close()
		c.redis = nil
	}
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}
