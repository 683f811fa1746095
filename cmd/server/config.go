package main

import (
	"fmt"
	"log/slog"

	"github.com/1001stories/stories-api/internal/config"
)

// loadAppConfig loads configuration from config.yaml and the environment.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"ai_provider", cfg.AI.Provider)

	if cfg.Database.URL != "" {
		slog.Debug("Database configuration", "url_present", true)
	}
	if cfg.Mail.Host == "" {
		slog.Debug("Mail configuration", "smtp_enabled", false)
	}

	return cfg, nil
}
