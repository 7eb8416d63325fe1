// Package main is the entry point for the QR Genius server.
//
// main() does three things: load configuration from the environment,
// build the server, start it. All real logic lives under internal/.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/qr-genius/internal/server"
)

// envInt reads an integer environment variable, falling back to def when
// unset. An unparseable value is a configuration mistake, so it's fatal.
func envInt(logger *slog.Logger, key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Error("invalid integer in environment",
			slog.String("key", key),
			slog.String("value", raw),
		)
		os.Exit(1)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// .env is a development convenience; in production the environment is
	// set by the process manager and the file simply doesn't exist.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded configuration from .env")
	}

	port := envInt(logger, "PORT", 8080)

	dbPath := envStr("DB_PATH", "data/qr_genius.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// The session secret signs every session and reset token. There is no
	// safe default; generate one with: openssl rand -hex 32
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		logger.Error("SESSION_SECRET is required")
		os.Exit(1)
	}

	githubCallbackURL := envStr("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/auth/github/callback", port))

	cfg := server.Config{
		Port:          port,
		DBPath:        dbPath,
		PublicURL:     os.Getenv("PUBLIC_URL"),
		SessionSecret: sessionSecret,
		SessionTTL:    time.Duration(envInt(logger, "SESSION_TTL_HOURS", 168)) * time.Hour,
		BcryptCost:    envInt(logger, "BCRYPT_COST", 0), // 0 → clamped to the default cost

		StorageBackend: envStr("STORAGE_BACKEND", "local"),
		StorageDir:     envStr("QR_STORAGE_DIR", "data/qr_codes"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       os.Getenv("S3_REGION"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),

		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  githubCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
