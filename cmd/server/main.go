// Package main implements the 1001 Stories API server: accounts, story
// submissions, AI writing and reading assistance, background reviews,
// notification digests, data exports and retention.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/1001stories/stories-api/internal/metrics"
	"github.com/1001stories/stories-api/internal/platform/redis"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	metrics.MustRegister()

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app, err := newApplication(ctx, cfg, logger, db, rdb)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
