package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yashwanth22122002/QueueCTL/internal/cli"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// cobra prints the error to stderr before Execute returns.
	if err := cli.NewRootCmd(config).Execute(); err != nil {
		os.Exit(1)
	}
}

// initializeLogger sets up structured logging on stderr. The level comes
// from $QUEUECTL_LOG_LEVEL and defaults to info. Logs go to stderr so
// command output on stdout stays parseable.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("QUEUECTL_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvironmentConfig loads flag defaults from environment variables and
// an optional .env file.
func loadEnvironmentConfig() cli.Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := cli.Config{
		DBDSN:  os.Getenv("QUEUECTL_DB_DSN"),
		PIDDir: os.Getenv("QUEUECTL_PID_DIR"),
	}

	// Fall back to the generic variable for deployments that already
	// define one.
	if config.DBDSN == "" {
		config.DBDSN = os.Getenv("DATABASE_URL")
		if config.DBDSN != "" {
			slog.Debug("Using DATABASE_URL as the queue DSN", "dsn_set", true)
		}
	}

	slog.Debug("environment variables loaded",
		"QUEUECTL_DB_DSN_SET", config.DBDSN != "",
		"QUEUECTL_PID_DIR", config.PIDDir)

	return config
}
