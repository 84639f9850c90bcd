package voltaictesting

import (
	"log/slog"
	"os"
)

// NewLogger returns a logger for tests. Quiet by default so test output
// stays readable; set VOLTAIC_TEST_LOG=info or VOLTAIC_TEST_LOG=debug to
// see what a component under test is doing.
func NewLogger() *slog.Logger {
	level := slog.LevelError
	switch os.Getenv("VOLTAIC_TEST_LOG") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
