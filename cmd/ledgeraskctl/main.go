package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledgerask/ledgerask/internal/cli/ledgeraskctl"
	"github.com/ledgerask/ledgerask/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "dotenv error: %v\n", err)
		os.Exit(2)
	}
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("LEDGERASK_CLI_TIMEOUT")), 60*time.Second)
	options := ledgeraskctl.Options{
		BaseURL: envOr("LEDGERASK_API_URL", "http://localhost:8000"),
		APIKey:  strings.TrimSpace(os.Getenv("LEDGERASK_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	os.Exit(ledgeraskctl.Run(context.Background(), os.Args[1:], options))
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid LEDGERASK_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
